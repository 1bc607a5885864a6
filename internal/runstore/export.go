package runstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/parquet"
)

// ExportRuns writes the run history of store to two Parquet files:
// <outputFile>.runs.parquet and <outputFile>.checks.parquet.
func ExportRuns(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run history is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get runs status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total check records: %d\n", status.TableSizes[checksTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	checks, err := store.GetAllChecks()
	if err != nil {
		return fmt.Errorf("failed to retrieve checks: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	checksFile := outputFile + ".checks.parquet"
	if err := parquet.WriteChecksParquet(parquet.ConvertCheckRows(checks), checksFile); err != nil {
		return fmt.Errorf("failed to write checks: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d check records to: %s\n", len(checks), checksFile)

	return nil
}
