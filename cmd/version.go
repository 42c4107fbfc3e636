package cmd

import (
	"runtime"

	"github.com/huangsam/cfpscan/core/taxonomy"
	"github.com/spf13/cobra"
)

// versionCmd prints build details along with the built-in taxonomy
// fingerprint, which keys cached scan results.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cfpscan.",
	Run: func(cmd *cobra.Command, _ []string) {
		tax := taxonomy.Default()
		cmd.Printf("cfpscan %s (commit %s, built %s, %s)\n", version, commit, date, runtime.Version())
		cmd.Printf("  Built-in taxonomy: %d categories, fingerprint %.12s\n", len(tax.Categories()), tax.Fingerprint())
	},
}
