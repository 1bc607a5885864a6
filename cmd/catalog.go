package cmd

import (
	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/spf13/cobra"
)

// catalogCmd lists the operations of the OpenAPI document.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the operations of the OpenAPI document.",
	Long: `Build the operation catalog from the OpenAPI document and print it.

Each operation shows its method, path pattern, parameters and body.
Required parameters are marked with '*'.

Examples:
  # Catalog of the embedded file-storage document
  apigrade catalog

  # Catalog of another document as JSON
  apigrade catalog --spec ./openapi.yaml --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCatalog(rootCtx, cfg, suite); err != nil {
			contract.LogFatal("Cannot print catalog", err)
		}
	},
}
