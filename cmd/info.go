package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-adexplorer/internal/services"
)

var infoCmd = &cobra.Command{
	Use:   "info [snapshot-path]",
	Short: "Print snapshot header details",
	Long: `Print the snapshot header: capture server, capture time, object count
and the file offsets of the schema tables and treeview block.

Examples:
  go-adexplorer info snapshot.dat`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(path string) error {
	snap, err := services.OpenSnapshot(path, log)
	if err != nil {
		return err
	}
	defer snap.Close()

	header := snap.Header()
	fmt.Printf("Server:           %s\n", header.Server)
	fmt.Printf("Snapshot time:    %s\n", snap.CaptureTime().Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("Objects:          %d\n", header.NumObjects)
	fmt.Printf("Properties:       %d\n", header.NumProperties)
	fmt.Printf("Classes:          %d\n", header.NumClasses)
	fmt.Printf("Mapping offset:   0x%x\n", header.MappingOffset)
	fmt.Printf("Treeview offset:  0x%x\n", header.TreeviewOffset)
	fmt.Printf("Treeview status:  %s\n", snap.TreeviewStatus())
	if !header.SignatureValid() {
		fmt.Println("Warning: snapshot signature is corrupted")
	}
	return nil
}
