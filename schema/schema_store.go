package schema

import "time"

// RunRecord represents a row from the apigrade_runs table.
type RunRecord struct {
	RunID         int64
	RunUUID       string
	Name          string
	ProjectID     string
	Scenario      string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	Rating        *float64
	Achieved      *float64
	Total         *float64
	Aborted       bool
	ErrorCount    int32
	ConfigParams  *string
}

// CheckRow represents a row from the apigrade_checks table.
type CheckRow struct {
	RunID       int64
	Seq         int32
	Step        string
	OperationID string
	StatusCode  int32
	Weight      float64
	ExpectPass  bool
	Passed      bool
	Message     *string
}
