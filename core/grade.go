package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/lifecycle"
	"github.com/huangsam/apigrade/internal/outwriter"
	"github.com/huangsam/apigrade/schema"
	"go.uber.org/zap"
)

// Suite is a scenario bound to the catalog it calls.
type Suite struct {
	Scenario Scenario
	Catalog  schema.Catalog
	Source   string // where the document came from
}

// ExecuteGrade grades every configured target, records the runs and prints the reports.
func ExecuteGrade(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, suite Suite, logger *zap.Logger) error {
	start := time.Now()
	reports, err := GradeTargets(ctx, cfg, mgr, suite, logger)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	if err := outwriter.NewOutWriter().WriteReports(reports, cfg, duration); err != nil {
		return err
	}
	return checkFailUnder(reports, cfg.FailUnder)
}

// GradeTargets runs the suite against every configured target with a bounded
// worker pool. Worker i owns port cfg.Port+i for all of its runs, so two runs
// never share a port. Reports come back in target order.
func GradeTargets(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, suite Suite, logger *zap.Logger) ([]schema.RunReport, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets to grade")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := min(max(cfg.Workers, 1), len(cfg.Targets))
	git := contract.NewLocalGitClient()

	type job struct {
		index  int
		target contract.Target
	}
	jobCh := make(chan job, len(cfg.Targets))
	reports := make([]schema.RunReport, len(cfg.Targets))
	var wg sync.WaitGroup

	// Start worker pool
	for w := range workers {
		port := cfg.Port + w
		workerCtx := withWorker(ctx, w)
		wg.Go(func() {
			for j := range jobCh {
				report := gradeTarget(workerCtx, cfg, suite, j.target, port, git, logger)
				recordRun(mgr, cfg, port, report)
				reports[j.index] = report
			}
		})
	}

	for i, t := range cfg.Targets {
		jobCh <- job{index: i, target: t}
	}
	close(jobCh)
	wg.Wait()

	return reports, nil
}

// gradeTarget runs the suite against one target on the given port.
func gradeTarget(ctx context.Context, cfg *contract.Config, suite Suite, target contract.Target, port int, git contract.GitClient, logger *zap.Logger) schema.RunReport {
	app, ports := lifecycle.New(cfg, target, port, git, logger)
	exec, err := NewExecutor(suite.Catalog, BaseURL(cfg.Host, port), WithTimeout(cfg.Timeout), WithLogger(logger))
	if err != nil {
		return schema.RunReport{
			RunID:     uuid.NewString(),
			Name:      target.Name,
			ProjectID: target.ProjectID,
			Scenario:  suite.Scenario.Name,
			Aborted:   true,
			Errors:    []string{err.Error()},
			StartedAt: time.Now(),
		}
	}
	return RunScenario(ctx, app, exec, suite.Scenario, RunOptions{
		Port:   port,
		Ports:  ports,
		Logger: logger,
	})
}

// recordRun persists a report and its checks when run history is enabled.
// Tracking failures are reported but never change the grade.
func recordRun(mgr contract.StoreManager, cfg *contract.Config, port int, report schema.RunReport) {
	if mgr == nil {
		return
	}
	store := mgr.GetRunStore()
	if store == nil {
		return
	}

	runID, err := store.BeginRun(report.StartedAt, report, runParams(cfg, port))
	if err != nil {
		logTrackingError("BeginRun", report.Name, err)
		return
	}
	for i, check := range report.Checks {
		if err := store.RecordCheck(runID, i+1, check); err != nil {
			logTrackingError("RecordCheck", report.Name, err)
		}
	}
	if err := store.EndRun(runID, report.StartedAt.Add(report.Duration), report); err != nil {
		logTrackingError("EndRun", report.Name, err)
	}
}

// runParams captures the settings that shaped a run.
func runParams(cfg *contract.Config, port int) map[string]any {
	spec := cfg.SpecPath
	if spec == "" {
		spec = "embedded"
	}
	return map[string]any{
		"spec":     spec,
		"host":     cfg.Host,
		"port":     port,
		"timeout":  cfg.Timeout.String(),
		"workers":  cfg.Workers,
		"attach":   cfg.Attach,
		"startCmd": cfg.StartCmd,
	}
}

// logTrackingError logs run history failures to stderr without disrupting grading.
func logTrackingError(operation, target string, err error) {
	contract.LogWarn(fmt.Sprintf("Run tracking failed for %s on %s", operation, target), err)
}

// checkFailUnder fails when any report is rated below the threshold.
// A zero threshold disables the gate.
func checkFailUnder(reports []schema.RunReport, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	var failed []string
	for _, r := range reports {
		if r.Rating < threshold {
			failed = append(failed, fmt.Sprintf("%s (%.2f)", r.Name, r.Rating))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w %.2f: %v", ErrBelowThreshold, threshold, failed)
	}
	return nil
}

// CatalogModel returns the operations of the suite in lexical order.
func CatalogModel(suite Suite) schema.CatalogRenderModel {
	ids := suite.Catalog.IDs()
	ops := make([]schema.OperationTemplate, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, suite.Catalog[id])
	}
	return schema.CatalogRenderModel{Source: suite.Source, Operations: ops}
}

// ExecuteCatalog prints the operation catalog of the suite.
func ExecuteCatalog(_ context.Context, cfg *contract.Config, suite Suite) error {
	return outwriter.NewOutWriter().WriteCatalog(CatalogModel(suite), cfg)
}

// CallOperation executes one catalog operation against cfg.Host and cfg.Port.
func CallOperation(ctx context.Context, cfg *contract.Config, catalog schema.Catalog, operationID string, params schema.CallParams, logger *zap.Logger) (*schema.CallResult, error) {
	exec, err := NewExecutor(catalog, BaseURL(cfg.Host, cfg.Port), WithTimeout(cfg.Timeout), WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, operationID, params)
}

// ExecuteCall executes one operation and prints its result.
func ExecuteCall(ctx context.Context, cfg *contract.Config, catalog schema.Catalog, operationID string, params schema.CallParams, logger *zap.Logger) error {
	res, err := CallOperation(ctx, cfg, catalog, operationID, params, logger)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteCall(res, cfg)
}
