package cmd

import (
	"runtime"

	"github.com/huangsam/apigrade/core/filestorage"
	"github.com/spf13/cobra"
)

// versionCmd prints build details and the built-in scenario.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of apigrade.",
	Long:  `Display the release, commit and build date along with the Go runtime and the built-in grading scenario.`,
	Run: func(cmd *cobra.Command, _ []string) {
		scenario := filestorage.Scenario()
		cmd.Printf("apigrade CLI\n")
		cmd.Printf("  Version:  %s\n", version)
		cmd.Printf("  Commit:   %s\n", commit)
		cmd.Printf("  Built:    %s\n", date)
		cmd.Printf("  Runtime:  %s\n", runtime.Version())
		cmd.Printf("  Scenario: %s (%d steps, weight %.0f)\n", scenario.Name, len(scenario.Steps), scenario.Weight())
	},
}
