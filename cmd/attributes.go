package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-adexplorer/internal/services"
)

var (
	attributesList      []string
	attributesOutputDir string
)

var attributesCmd = &cobra.Command{
	Use:   "attributes [snapshot-path]",
	Short: "Dump selected attributes for every object",
	Long: `Dump the chosen attributes of every object as "||"-delimited text, one
line per object. Attributes absent from a record render as empty fields.

Examples:
  go-adexplorer attributes snapshot.dat -a sAMAccountName -a distinguishedName
  go-adexplorer attributes snapshot.dat -a dNSHostName --output-dir ./out`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAttributes(args[0])
	},
}

func init() {
	rootCmd.AddCommand(attributesCmd)
	attributesCmd.Flags().StringArrayVarP(&attributesList, "attribute", "a", nil, "attribute to extract (repeatable)")
	attributesCmd.Flags().StringVar(&attributesOutputDir, "output-dir", "", "directory for the export file")
	attributesCmd.MarkFlagRequired("attribute")
}

func runAttributes(path string) error {
	config, err := loadConfig(attributesOutputDir)
	if err != nil {
		return err
	}

	snap, err := services.OpenSnapshot(path, log)
	if err != nil {
		return err
	}
	defer snap.Close()

	service := services.NewExportService(config, log)
	outputPath, err := service.ExportAttributes(snap, attributesList)
	if err != nil {
		return err
	}
	fmt.Printf("Output written to %s\n", outputPath)
	return nil
}
