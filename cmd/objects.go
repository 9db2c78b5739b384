package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-adexplorer/internal/services"
)

var objectsOutputDir string

var objectsCmd = &cobra.Command{
	Use:   "objects [snapshot-path]",
	Short: "Export all objects as NDJSON",
	Long: `Decode every object record and write it as one JSON document per line
to <server>_<timestamp>_objects.ndjson. Binary attribute values are base64
encoded.

Examples:
  go-adexplorer objects snapshot.dat
  go-adexplorer objects snapshot.dat --output-dir ./out`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjects(args[0])
	},
}

func init() {
	rootCmd.AddCommand(objectsCmd)
	objectsCmd.Flags().StringVar(&objectsOutputDir, "output-dir", "", "directory for the export file")
}

func runObjects(path string) error {
	config, err := loadConfig(objectsOutputDir)
	if err != nil {
		return err
	}

	snap, err := services.OpenSnapshot(path, log)
	if err != nil {
		return err
	}
	defer snap.Close()

	service := services.NewExportService(config, log)
	outputPath, err := service.ExportObjects(snap)
	if err != nil {
		return err
	}
	fmt.Printf("Output written to %s\n", outputPath)
	return nil
}
