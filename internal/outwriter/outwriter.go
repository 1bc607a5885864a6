// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteReports prints graded run reports using the configured output format.
func (ow *OutWriter) WriteReports(reports []schema.RunReport, cfg *contract.Config, duration time.Duration) error {
	return PrintReports(reports, cfg, duration)
}

// WriteCatalog prints an operation catalog using the configured output format.
func (ow *OutWriter) WriteCatalog(model schema.CatalogRenderModel, cfg *contract.Config) error {
	return PrintCatalog(model, cfg)
}

// WriteCall prints the result of an ad hoc operation call using the configured output format.
func (ow *OutWriter) WriteCall(result *schema.CallResult, cfg *contract.Config) error {
	return PrintCallResult(result, cfg)
}
