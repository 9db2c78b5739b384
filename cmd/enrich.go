package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-adexplorer/internal/services"
)

var enrichNoCache bool

var enrichCmd = &cobra.Command{
	Use:   "enrich [snapshot-path]",
	Short: "Rebuild the treeview index into a .enriched copy",
	Long: `Reconstruct the treeview navigation index of a snapshot and write the
result to a new file with an .enriched infix (snapshot.dat ->
snapshot.enriched.dat). The input file is never modified.

A snapshot whose treeview is already populated is left alone and the
command reports success. An allocated-but-empty or truncated treeview is
rebuilt from scratch.

Examples:
  go-adexplorer enrich snapshot.dat
  go-adexplorer enrich --no-cache snapshot.dat`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrich(args[0])
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().BoolVar(&enrichNoCache, "no-cache", false, "skip the preprocessing side-cache")
}

func runEnrich(path string) error {
	config, err := loadConfig("")
	if err != nil {
		return err
	}
	if enrichNoCache {
		config.CacheEnabled = false
	}

	service := services.NewEnrichmentService(config, log)
	outputPath, err := service.Enrich(path)
	if err != nil {
		return err
	}
	if outputPath == "" {
		fmt.Println("Treeview already populated, no output written.")
		return nil
	}
	fmt.Printf("Enriched snapshot written to %s\n", outputPath)
	return nil
}
