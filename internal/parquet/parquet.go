// Package parquet provides data structures and functions for exporting run
// history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/apigrade/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single graded run.
// This struct maps to the apigrade_runs database table.
type Run struct {
	// RunID is the store-assigned identifier of the run
	RunID int64 `parquet:"run_id,snappy"`

	// RunUUID is the identifier the run carried in its logs
	RunUUID string `parquet:"run_uuid,snappy"`

	// Name is the graded target
	Name string `parquet:"name,snappy"`

	// ProjectID identifies the submission the target belongs to
	ProjectID string `parquet:"project_id,snappy"`

	// Scenario is the name of the scenario that was run
	Scenario string `parquet:"scenario,snappy"`

	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`

	// Rating is the achieved share of the total weight, nil for unfinished runs
	Rating   *float64 `parquet:"rating,optional,snappy"`
	Achieved *float64 `parquet:"achieved,optional,snappy"`
	Total    *float64 `parquet:"total,optional,snappy"`

	Aborted    bool  `parquet:"aborted,snappy"`
	ErrorCount int32 `parquet:"error_count,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Check represents one check outcome of a run.
// This struct maps to the apigrade_checks database table.
type Check struct {
	RunID       int64   `parquet:"run_id,snappy"`
	Seq         int32   `parquet:"seq,snappy"`
	Step        string  `parquet:"step,snappy"`
	OperationID string  `parquet:"operation_id,snappy"`
	StatusCode  int32   `parquet:"status_code,snappy"`
	Weight      float64 `parquet:"weight,snappy"`
	ExpectPass  bool    `parquet:"expect_pass,snappy"`
	Passed      bool    `parquet:"passed,snappy"`

	// Message is the failure text, nil for credited checks
	Message *string `parquet:"message,optional,snappy"`
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteChecksParquet writes a slice of Check structs to a Parquet file.
func WriteChecksParquet(data []Check, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows with a schema inferred from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			RunUUID:       record.RunUUID,
			Name:          record.Name,
			ProjectID:     record.ProjectID,
			Scenario:      record.Scenario,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			Rating:        record.Rating,
			Achieved:      record.Achieved,
			Total:         record.Total,
			Aborted:       record.Aborted,
			ErrorCount:    record.ErrorCount,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertCheckRows converts schema.CheckRow to Check for Parquet export.
func ConvertCheckRows(records []schema.CheckRow) []Check {
	result := make([]Check, len(records))
	for i, record := range records {
		result[i] = Check{
			RunID:       record.RunID,
			Seq:         record.Seq,
			Step:        record.Step,
			OperationID: record.OperationID,
			StatusCode:  record.StatusCode,
			Weight:      record.Weight,
			ExpectPass:  record.ExpectPass,
			Passed:      record.Passed,
			Message:     record.Message,
		}
	}
	return result
}
