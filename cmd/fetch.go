package cmd

import (
	"github.com/huangsam/cfpscan/core"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/gitclient"
	"github.com/spf13/cobra"
)

// fetchCmd clones the repositories of the inventory file.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Clone the repositories listed in the inventory file.",
	Long: `Make a shallow clone of every repository in --inventory-file whose
directory (full_name with '/' replaced by '_') is missing under --repos-dir.
Existing directories are left untouched, so fetch can be re-run to resume.

Examples:
  cfpscan fetch --inventory-file data/repos.json
  cfpscan fetch --inventory-file data/repos.json --repos-dir /data/repos --workers 8`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteFetch(runContext(), cfg, gitclient.NewLocalGitClient()); err != nil {
			contract.LogFatal("Cannot fetch repositories", err)
		}
	},
}
