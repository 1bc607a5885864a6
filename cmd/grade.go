package cmd

import (
	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/spf13/cobra"
)

// gradeCmd runs the scored scenario against one or more services.
var gradeCmd = &cobra.Command{
	Use:   "grade [repo...]",
	Short: "Run the scored scenario against services and report their ratings.",
	Long: `Fetch, install, start and grade each target, then stop it.

Every target is a git URL or a local directory. For each one apigrade:
- frees the port the service will listen on
- clones or refreshes the repository and checks its entry points
- installs its dependencies and starts it with PORT set
- runs every scenario step and scores the weighted checks
- stops the service, even when a step aborted the run

The rating is achieved points over total points, between 0 and 1.
Targets can also be listed under 'targets' in .apigrade.yaml.

Examples:
  # Grade a local checkout
  apigrade grade ./student-server

  # Grade several repositories, two at a time (ports 8080 and 8081)
  apigrade grade --workers 2 https://github.com/a/server.git https://github.com/b/server.git

  # Grade a service that is already running
  apigrade grade --attach --port 3000 --name local

  # Fail the CI job when the rating drops below 90%
  apigrade grade ./server --fail-under 0.9 --output json --output-file report.json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteGrade(rootCtx, cfg, runsManager, suite, logger); err != nil {
			contract.LogFatal("Cannot grade targets", err)
		}
	},
}
