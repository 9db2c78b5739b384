package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-adexplorer/internal/services"
)

var (
	// Global output flags only
	verbose bool
	quiet   bool

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "go-adexplorer",
	Short: "AD Explorer snapshot parser and treeview rebuilder",
	Long: `go-adexplorer parses binary snapshot files captured by the AD Explorer
directory browser and works with the tree-navigation index ("treeview")
embedded in them.

Snapshots produced by some collectors ship without a usable treeview, which
the native viewer needs to browse the directory. The enrich command rebuilds
it: the directory hierarchy is recovered from the flat object records,
absent intermediate containers are synthesized, and a fresh treeview block
is spliced into a copy of the file. The input snapshot is never modified.

Commands:
  info        Print snapshot header details
  enrich      Rebuild the treeview index into a .enriched copy
  objects     Export all objects as NDJSON
  attributes  Dump selected attributes for every object`,
	Version: "0.1.0-dev",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case quiet:
			log.SetLevel(logrus.ErrorLevel)
		case verbose:
			log.SetLevel(logrus.DebugLevel)
		default:
			log.SetLevel(logrus.InfoLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
}

// loadConfig loads tool configuration and applies command-line overrides.
func loadConfig(outputDir string) (*services.Config, error) {
	config, err := services.LoadConfig()
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		config.OutputDir = outputDir
	}
	return config, nil
}
