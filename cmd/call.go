package cmd

import (
	"fmt"

	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// callCmd executes a single catalog operation.
var callCmd = &cobra.Command{
	Use:   "call <operation-id>",
	Short: "Execute one operation against a running service.",
	Long: `Execute one operation of the catalog and print the normalized response.

Values are given as key=value pairs and sent as strings. A key given more
than once is sent as a list.

Examples:
  # Upload a file
  apigrade call createFile --body filename=notes.txt --body content=hello

  # Fetch it back from another port
  apigrade call getFile --path filename=notes.txt --port 3000`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		// The operation id is not a grading target
		return sharedSetup(rootCtx, cmd, nil)
	},
	Run: func(_ *cobra.Command, args []string) {
		params, err := callParams()
		if err != nil {
			contract.LogFatal("Invalid call parameters", err)
		}
		if err := core.ExecuteCall(rootCtx, cfg, suite.Catalog, args[0], params, logger); err != nil {
			contract.LogFatal("Cannot call operation", err)
		}
	},
}

// callParams parses the --body, --query and --path flags.
func callParams() (schema.CallParams, error) {
	var params schema.CallParams
	for key, dst := range map[string]*map[string]any{"body": &params.Body, "query": &params.Query, "path": &params.Path} {
		values, err := contract.ParseKeyValues(viper.GetStringSlice(key))
		if err != nil {
			return schema.CallParams{}, fmt.Errorf("--%s: %w", key, err)
		}
		if len(values) > 0 {
			*dst = values
		}
	}
	return params, nil
}
