package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"go.uber.org/zap"
)

// Defaults for run orchestration.
const (
	DefaultRetryInterval = 250 * time.Millisecond
	DefaultStopTimeout   = 15 * time.Second
)

// Check is one weighted validation of a step's response.
type Check struct {
	Name       string
	Weight     float64
	ExpectPass bool
	Assert     AssertionFunc
}

// Step is one operation call followed by its checks.
type Step struct {
	Name        string
	OperationID string
	Params      schema.CallParams
	Checks      []Check
	Retries     int // extra attempts on connection errors
}

// Weight returns the sum of the step's check weights.
func (s Step) Weight() float64 {
	total := 0.0
	for _, c := range s.Checks {
		total += c.Weight
	}
	return total
}

// HasNegativeCheck reports whether any check of the step expects a failure.
// Such steps are never retried.
func (s Step) HasNegativeCheck() bool {
	for _, c := range s.Checks {
		if !c.ExpectPass {
			return true
		}
	}
	return false
}

// Scenario is an ordered script of steps run against one service.
type Scenario struct {
	Name  string
	Steps []Step
}

// Weight returns the maximum achievable score of the scenario.
func (s Scenario) Weight() float64 {
	total := 0.0
	for _, step := range s.Steps {
		total += step.Weight()
	}
	return total
}

// Caller executes catalog operations. *Executor satisfies it.
type Caller interface {
	Execute(ctx context.Context, operationID string, params schema.CallParams) (*schema.CallResult, error)
}

var _ Caller = &Executor{} // Compile-time check

// RunOptions configures a scenario run.
type RunOptions struct {
	Port          int
	Ports         contract.PortController // nil skips freeing the port
	Logger        *zap.Logger             // nil disables run logs
	RetryInterval time.Duration
	StopTimeout   time.Duration
}

// RunBuilder drives one scenario run using a builder pattern.
// It owns a fresh ScoreState, so concurrent runs never share scores.
type RunBuilder struct {
	ctx       context.Context
	app       contract.Lifecycle
	caller    Caller
	scenario  Scenario
	opts      RunOptions
	logger    *zap.Logger
	runID     string
	startedAt time.Time
	started   bool
	state     *ScoreState
	report    schema.RunReport
}

// NewRunBuilder creates a new builder for one run.
func NewRunBuilder(ctx context.Context, app contract.Lifecycle, caller Caller, scenario Scenario, opts RunOptions) *RunBuilder {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()
	ctx = withRunID(ctx, runID)
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("target", app.Name()),
		zap.String("scenario", scenario.Name),
	}
	if worker := workerFromContext(ctx); worker >= 0 {
		fields = append(fields, zap.Int("worker", worker))
	}

	return &RunBuilder{
		ctx:       ctx,
		app:       app,
		caller:    caller,
		scenario:  scenario,
		opts:      opts,
		logger:    logger.With(fields...),
		runID:     runID,
		startedAt: time.Now(),
		state:     NewScoreState(),
	}
}

// FreePort releases the target port before anything else happens.
func (b *RunBuilder) FreePort() (*RunBuilder, error) {
	if b.opts.Ports == nil {
		return b, nil
	}
	if err := b.opts.Ports.Free(b.ctx, b.opts.Port); err != nil {
		return nil, fmt.Errorf("%w: failed to free port %d: %w", ErrLifecycle, b.opts.Port, err)
	}
	b.logger.Debug("port freed", zap.Int("port", b.opts.Port))
	return b, nil
}

// Prepare fetches the sources, checks the entry points and installs dependencies.
func (b *RunBuilder) Prepare() (*RunBuilder, error) {
	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"fetch repository", b.app.FetchRepo},
		{"validate main files", b.app.ValidateMainFiles},
		{"install dependencies", b.app.InstallDependencies},
	}
	for _, phase := range phases {
		if err := phase.fn(b.ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLifecycle, phase.name, err)
		}
		b.logger.Debug("lifecycle phase done", zap.String("phase", phase.name))
	}
	return b, nil
}

// Start launches the service. Stop must be called afterwards even when Start fails.
func (b *RunBuilder) Start() (*RunBuilder, error) {
	b.started = true
	if err := b.app.Start(b.ctx); err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrLifecycle, err)
	}
	b.logger.Info("service started", zap.Int("port", b.opts.Port))
	return b, nil
}

// Execute runs every step in order and scores its checks.
// A call that times out, or any executor error on a step holding a negative-path
// check, is scored by polarity and the run continues. Any other call error, or a
// non-assertion error from a check, aborts the run.
func (b *RunBuilder) Execute() (*RunBuilder, error) {
	for _, step := range b.scenario.Steps {
		if err := b.ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before %s: %w", step.OperationID, err)
		}

		res, err := b.call(step)
		if err != nil {
			if cerr := b.ctx.Err(); cerr != nil {
				return nil, fmt.Errorf("run cancelled during %s: %w", step.OperationID, cerr)
			}
			scored := errors.Is(err, ErrRequestTimeout) || (step.HasNegativeCheck() && isCallFailure(err))
			if !scored {
				return nil, err
			}
			b.logger.Warn("step call failed", zap.String("operation", step.OperationID), zap.String("step", step.Name), zap.Error(err))
			for _, check := range step.Checks {
				if ferr := b.state.FailCall(step.Name, step.OperationID, check.Weight, check.ExpectPass, err); ferr != nil {
					return nil, ferr
				}
			}
			continue
		}

		for _, check := range step.Checks {
			if verr := b.state.ValidateStep(step.Name, res, check.Assert, check.Weight, check.ExpectPass); verr != nil {
				return nil, fmt.Errorf("%s (%s): %w", step.OperationID, check.Name, verr)
			}
		}
		b.logger.Debug("step scored",
			zap.String("operation", step.OperationID),
			zap.Int("status", res.StatusCode),
			zap.Float64("weight", step.Weight()),
			zap.Duration("duration", res.Duration))
	}
	return b, nil
}

// call executes a step, retrying connection errors when the step allows it.
func (b *RunBuilder) call(step Step) (*schema.CallResult, error) {
	if step.Retries <= 0 || step.HasNegativeCheck() {
		return b.caller.Execute(b.ctx, step.OperationID, step.Params)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.opts.RetryInterval
	policy.MaxElapsedTime = 0
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(step.Retries)), b.ctx)

	operation := func() (*schema.CallResult, error) {
		res, err := b.caller.Execute(b.ctx, step.OperationID, step.Params)
		if err != nil && !errors.Is(err, ErrConnection) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		b.logger.Warn("retrying step", zap.String("operation", step.OperationID), zap.Duration("wait", wait), zap.Error(err))
	}
	return backoff.RetryNotifyWithData(operation, bounded, notify)
}

// Stop releases the service if Start was attempted. It ignores cancellation of
// the run context so an aborted run still cleans up.
func (b *RunBuilder) Stop() error {
	if !b.started {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), b.opts.StopTimeout)
	defer cancel()
	if err := b.app.Stop(ctx); err != nil {
		return fmt.Errorf("%w: stop: %w", ErrLifecycle, err)
	}
	b.logger.Info("service stopped")
	return nil
}

// Build constructs the final RunReport from the scored state.
func (b *RunBuilder) Build() *RunBuilder {
	b.report = b.baseReport()
	b.report.Rating = b.state.Rating()
	b.report.Achieved = b.state.Achieved
	b.report.Total = b.state.Total
	b.report.Errors = append([]string{}, b.state.Errors...)
	b.report.Checks = append([]schema.CheckRecord(nil), b.state.Checks...)
	b.logger.Info("run finished",
		zap.Float64("rating", b.report.Rating),
		zap.Int("errors", len(b.report.Errors)))
	return b
}

// Abort constructs a zero-rated RunReport whose only error is err. The
// weights scored before the abort stay in Achieved and Total.
func (b *RunBuilder) Abort(err error) *RunBuilder {
	b.report = b.baseReport()
	b.report.Aborted = true
	b.report.Achieved = b.state.Achieved
	b.report.Total = b.state.Total
	b.report.Errors = []string{err.Error()}
	b.report.Checks = append([]schema.CheckRecord(nil), b.state.Checks...)
	b.logger.Error("run aborted", zap.Error(err))
	return b
}

// GetReport returns the built RunReport.
func (b *RunBuilder) GetReport() schema.RunReport {
	return b.report
}

func (b *RunBuilder) baseReport() schema.RunReport {
	return schema.RunReport{
		RunID:     b.runID,
		Name:      b.app.Name(),
		ProjectID: b.app.ProjectID(),
		Scenario:  b.scenario.Name,
		Errors:    []string{},
		StartedAt: b.startedAt,
		Duration:  time.Since(b.startedAt),
	}
}

// RunScenario grades one service with the scenario and never returns an error:
// every failure is folded into the report. The port is freed first, and once
// Start has been attempted Stop always runs.
func RunScenario(ctx context.Context, app contract.Lifecycle, caller Caller, scenario Scenario, opts RunOptions) (report schema.RunReport) {
	b := NewRunBuilder(ctx, app, caller, scenario, opts)
	b.logger.Info("run started", zap.Int("port", opts.Port), zap.Float64("max_score", scenario.Weight()))

	if _, err := b.FreePort(); err != nil {
		return b.Abort(err).GetReport()
	}
	if _, err := b.Prepare(); err != nil {
		return b.Abort(err).GetReport()
	}

	defer func() {
		stopErr := b.Stop()
		if stopErr == nil {
			return
		}
		if report.Aborted {
			b.logger.Warn("stop failed after abort", zap.Error(stopErr))
			return
		}
		report.Errors = append(report.Errors, stopErr.Error())
	}()

	if _, err := b.Start(); err != nil {
		return b.Abort(err).GetReport()
	}
	if _, err := b.Execute(); err != nil {
		return b.Abort(err).GetReport()
	}
	return b.Build().GetReport()
}
