package cmd

import (
	"github.com/huangsam/cfpscan/core"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// taxonomyCmd prints the active movement taxonomy.
var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Show the movement categories, rules and weights in effect.",
	Long: `Print the active movement taxonomy after the config file's taxonomy and
weights sections have been applied. The categories appear in the same order as
the metric columns of estimate.

Examples:
  # Show the table
  cfpscan taxonomy --output text

  # Start a custom taxonomy from the built-in one
  cfpscan taxonomy --yaml > .cfpscan.yaml`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteTaxonomy(runContext(), cfg, viper.GetBool("yaml")); err != nil {
			contract.LogFatal("Cannot print taxonomy", err)
		}
	},
}
