// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/apigrade/schema"
)

// GitClient defines the git operations needed to fetch a service under test.
// This allows lifecycle logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// Clone performs a shallow clone of source into dest.
	Clone(ctx context.Context, source, dest string) error

	// Refresh fetches the remote and hard-resets an existing checkout to it.
	Refresh(ctx context.Context, repoPath string) error

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// IsRepo reports whether the path is inside a git working tree.
	IsRepo(ctx context.Context, path string) bool
}

// Lifecycle controls one service under test. Every blocking call takes a context.
type Lifecycle interface {
	Name() string
	ProjectID() string

	// FetchRepo makes the service sources available locally.
	FetchRepo(ctx context.Context) error

	// ValidateMainFiles fails when a required entry point is missing.
	ValidateMainFiles(ctx context.Context) error

	// InstallDependencies resolves the service dependencies.
	InstallDependencies(ctx context.Context) error

	// Start launches the service and returns once it is reachable.
	Start(ctx context.Context) error

	// Stop releases the service. It must be safe to call after a failed Start.
	Stop(ctx context.Context) error
}

// PortController frees a TCP listening port before a run.
type PortController interface {
	Free(ctx context.Context, port int) error
}

// StoreManager gives access to the run history store.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetRunStore() RunStore
}

// RunStore defines the interface for tracking graded runs and their checks.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(startTime time.Time, report schema.RunReport, configParams map[string]any) (int64, error)

	// RecordCheck stores one check outcome of a run
	RecordCheck(runID int64, seq int, check schema.CheckRecord) error

	// EndRun updates the run with its final rating
	EndRun(runID int64, endTime time.Time, report schema.RunReport) error

	// GetStatus returns status information about the store
	GetStatus() (schema.RunStoreStatus, error)

	// GetAllRuns returns every stored run ordered by id
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllChecks returns every stored check ordered by run and sequence
	GetAllChecks() ([]schema.CheckRow, error)

	// Close closes the underlying connection
	Close() error
}
