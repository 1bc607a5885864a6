package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/apigrade/internal/lifecycle"
	"github.com/huangsam/apigrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedCaller answers calls through a function and records them in order.
type scriptedCaller struct {
	mu      sync.Mutex
	calls   []string
	respond func(n int, operationID string) (*schema.CallResult, error)
}

func (c *scriptedCaller) Execute(_ context.Context, operationID string, _ schema.CallParams) (*schema.CallResult, error) {
	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, operationID)
	c.mu.Unlock()
	return c.respond(n, operationID)
}

func okCaller() *scriptedCaller {
	return &scriptedCaller{respond: func(_ int, id string) (*schema.CallResult, error) {
		return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
	}}
}

func newMockApp() *lifecycle.MockLifecycle {
	app := new(lifecycle.MockLifecycle)
	app.On("Name").Return("alice").Maybe()
	app.On("ProjectID").Return("project-42").Maybe()
	return app
}

func expectPrepared(app *lifecycle.MockLifecycle) {
	app.On("FetchRepo", mock.Anything).Return(nil).Once()
	app.On("ValidateMainFiles", mock.Anything).Return(nil).Once()
	app.On("InstallDependencies", mock.Anything).Return(nil).Once()
}

func testScenario() Scenario {
	return Scenario{
		Name: "test",
		Steps: []Step{
			{Name: "create", OperationID: "createFile", Checks: []Check{
				{Name: "message", Weight: 20, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
			}},
			{Name: "list", OperationID: "getFiles", Checks: []Check{
				{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
			}},
			{Name: "reject", OperationID: "createFile", Checks: []Check{
				{Name: "created", Weight: 10, ExpectPass: false, Assert: ExpectStatus(201, "created")},
			}},
		},
	}
}

func testOptions(t *testing.T, ports *lifecycle.MockPorts) RunOptions {
	return RunOptions{
		Port:          8080,
		Ports:         ports,
		Logger:        zaptest.NewLogger(t),
		RetryInterval: time.Millisecond,
	}
}

func freePorts() *lifecycle.MockPorts {
	ports := new(lifecycle.MockPorts)
	ports.On("Free", mock.Anything, 8080).Return(nil).Once()
	return ports
}

func TestRunScenarioHappyPath(t *testing.T) {
	app := newMockApp()
	ports := freePorts()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(nil).Once()
	caller := okCaller()

	report := RunScenario(context.Background(), app, caller, testScenario(), testOptions(t, ports))

	assert.Equal(t, "alice", report.Name)
	assert.Equal(t, "project-42", report.ProjectID)
	assert.Equal(t, 1.0, report.Rating)
	assert.Equal(t, 40.0, report.Total)
	assert.Empty(t, report.Errors)
	assert.NotNil(t, report.Errors)
	assert.False(t, report.Aborted)
	assert.Len(t, report.Checks, 3)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"createFile", "getFiles", "createFile"}, caller.calls)

	app.AssertExpectations(t)
	ports.AssertExpectations(t)
}

func TestRunScenarioStopsAfterFailedStart(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(errors.New("port never opened")).Once()
	app.On("Stop", mock.Anything).Return(nil).Once()
	caller := okCaller()

	report := RunScenario(context.Background(), app, caller, testScenario(), testOptions(t, freePorts()))

	assert.True(t, report.Aborted)
	assert.Zero(t, report.Rating)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "port never opened")
	assert.Empty(t, caller.calls)
	app.AssertExpectations(t)
}

func TestRunScenarioStopsAfterAbortedStep(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(errors.New("process already gone")).Once()
	caller := &scriptedCaller{respond: func(n int, id string) (*schema.CallResult, error) {
		if n == 1 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, id)
		}
		return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
	}}

	report := RunScenario(context.Background(), app, caller, testScenario(), testOptions(t, freePorts()))

	assert.True(t, report.Aborted)
	assert.Zero(t, report.Rating)
	assert.Equal(t, []string{`unknown operation: "getFiles"`}, report.Errors, "a failed stop after an abort is only logged")
	assert.Equal(t, 20.0, report.Total)
	assert.Equal(t, 20.0, report.Achieved)
	assert.Len(t, report.Checks, 1)
	assert.Len(t, caller.calls, 2)
	app.AssertExpectations(t)
}

func TestRunScenarioLifecycleFailures(t *testing.T) {
	t.Run("port cannot be freed", func(t *testing.T) {
		app := newMockApp()
		ports := new(lifecycle.MockPorts)
		ports.On("Free", mock.Anything, 8080).Return(errors.New("permission denied")).Once()

		report := RunScenario(context.Background(), app, okCaller(), testScenario(), testOptions(t, ports))

		assert.True(t, report.Aborted)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "failed to free port 8080")
		app.AssertNotCalled(t, "FetchRepo", mock.Anything)
		app.AssertNotCalled(t, "Stop", mock.Anything)
	})

	t.Run("missing main files", func(t *testing.T) {
		app := newMockApp()
		app.On("FetchRepo", mock.Anything).Return(nil).Once()
		app.On("ValidateMainFiles", mock.Anything).Return(errors.New("server.js not found")).Once()

		report := RunScenario(context.Background(), app, okCaller(), testScenario(), testOptions(t, freePorts()))

		assert.True(t, report.Aborted)
		assert.Equal(t, []string{"lifecycle failure: validate main files: server.js not found"}, report.Errors)
		app.AssertNotCalled(t, "InstallDependencies", mock.Anything)
		app.AssertNotCalled(t, "Start", mock.Anything)
		app.AssertNotCalled(t, "Stop", mock.Anything)
	})
}

func TestRunScenarioTimeoutDegrades(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(nil).Once()
	caller := &scriptedCaller{respond: func(_ int, id string) (*schema.CallResult, error) {
		if id == "getFiles" {
			return nil, fmt.Errorf("%w: GET /api/files", ErrRequestTimeout)
		}
		return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
	}}

	report := RunScenario(context.Background(), app, caller, testScenario(), testOptions(t, freePorts()))

	assert.False(t, report.Aborted)
	assert.Equal(t, 40.0, report.Total)
	assert.Equal(t, 30.0, report.Achieved)
	assert.InDelta(t, 0.75, report.Rating, 1e-9)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "request timeout")
	assert.Len(t, caller.calls, 3, "the run continues after a timeout")
}

func TestRunScenarioStopErrorAfterSuccess(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(errors.New("kill failed")).Once()

	report := RunScenario(context.Background(), app, okCaller(), testScenario(), testOptions(t, freePorts()))

	assert.Equal(t, 1.0, report.Rating, "a failed stop does not change the rating")
	assert.Equal(t, []string{"lifecycle failure: stop: kill failed"}, report.Errors)
}

func TestRunScenarioRetries(t *testing.T) {
	newApp := func() *lifecycle.MockLifecycle {
		app := newMockApp()
		expectPrepared(app)
		app.On("Start", mock.Anything).Return(nil).Once()
		app.On("Stop", mock.Anything).Return(nil).Once()
		return app
	}
	flaky := func(failures int) *scriptedCaller {
		return &scriptedCaller{respond: func(n int, id string) (*schema.CallResult, error) {
			if n < failures {
				return nil, fmt.Errorf("%w: connection refused", ErrConnection)
			}
			return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
		}}
	}

	t.Run("connection errors are retried", func(t *testing.T) {
		scenario := Scenario{Name: "retry", Steps: []Step{{
			OperationID: "getFiles",
			Retries:     2,
			Checks:      []Check{{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "m")}},
		}}}
		caller := flaky(2)

		report := RunScenario(context.Background(), newApp(), caller, scenario, testOptions(t, freePorts()))

		assert.Equal(t, 1.0, report.Rating)
		assert.Len(t, caller.calls, 3)
	})

	t.Run("retries are exhausted", func(t *testing.T) {
		scenario := Scenario{Name: "retry", Steps: []Step{{
			OperationID: "getFiles",
			Retries:     1,
			Checks:      []Check{{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "m")}},
		}}}
		caller := flaky(5)

		report := RunScenario(context.Background(), newApp(), caller, scenario, testOptions(t, freePorts()))

		assert.True(t, report.Aborted)
		assert.Len(t, caller.calls, 2)
		assert.Contains(t, report.Errors[0], "connection error")
	})

	t.Run("negative checks are never retried", func(t *testing.T) {
		scenario := Scenario{Name: "retry", Steps: []Step{{
			OperationID: "createFile",
			Retries:     3,
			Checks:      []Check{{Name: "created", Weight: 10, ExpectPass: false, Assert: ExpectStatus(200, "created")}},
		}}}
		caller := flaky(1)

		report := RunScenario(context.Background(), newApp(), caller, scenario, testOptions(t, freePorts()))

		assert.False(t, report.Aborted)
		assert.Equal(t, 1.0, report.Rating, "the refused connection is the expected failure")
		assert.Len(t, caller.calls, 1)
	})
}

func TestRunScenarioNegativeStepCallFailures(t *testing.T) {
	run := func(t *testing.T, failing Step, callErr error) (schema.RunReport, *scriptedCaller) {
		t.Helper()
		app := newMockApp()
		expectPrepared(app)
		app.On("Start", mock.Anything).Return(nil).Once()
		app.On("Stop", mock.Anything).Return(nil).Once()
		scenario := Scenario{Name: "negative", Steps: []Step{
			{Name: "good", OperationID: "getFiles", Checks: []Check{
				{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
			}},
			failing,
			{Name: "after", OperationID: "getFiles", Checks: []Check{
				{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
			}},
		}}
		caller := &scriptedCaller{respond: func(n int, id string) (*schema.CallResult, error) {
			if n == 1 {
				return nil, callErr
			}
			return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
		}}
		report := RunScenario(context.Background(), app, caller, scenario, testOptions(t, freePorts()))
		app.AssertExpectations(t)
		return report, caller
	}
	negative := Step{Name: "bad", OperationID: "getFile", Checks: []Check{
		{Name: "file returned", Weight: 10, ExpectPass: false, Assert: ExpectStatus(200, "file returned")},
	}}

	tests := []struct {
		name string
		err  error
	}{
		{"connection error", fmt.Errorf("%w: connection refused", ErrConnection)},
		{"missing path parameter", fmt.Errorf("%w: filename", ErrMissingPathParameter)},
		{"request timeout", fmt.Errorf("%w: GET /api/files/x", ErrRequestTimeout)},
		{"unknown operation", fmt.Errorf("%w: %q", ErrUnknownOperation, "getFile")},
	}
	for _, tt := range tests {
		t.Run(tt.name+" credits the negative check", func(t *testing.T) {
			report, caller := run(t, negative, tt.err)

			assert.False(t, report.Aborted)
			assert.Equal(t, 30.0, report.Total)
			assert.Equal(t, 30.0, report.Achieved)
			assert.Equal(t, 1.0, report.Rating)
			assert.Empty(t, report.Errors)
			assert.Len(t, caller.calls, 3, "the run continues after the failed call")
			require.Len(t, report.Checks, 3)
			assert.True(t, report.Checks[1].Passed)
			assert.False(t, report.Checks[1].ExpectPass)
		})
	}

	t.Run("positive checks of a mixed step fail", func(t *testing.T) {
		mixed := Step{Name: "bad", OperationID: "getFile", Checks: []Check{
			{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
			{Name: "file returned", Weight: 10, ExpectPass: false, Assert: ExpectStatus(200, "file returned")},
		}}
		report, _ := run(t, mixed, fmt.Errorf("%w: connection refused", ErrConnection))

		assert.False(t, report.Aborted)
		assert.Equal(t, 40.0, report.Total)
		assert.Equal(t, 30.0, report.Achieved)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "connection error")
	})

	t.Run("other errors still abort", func(t *testing.T) {
		report, caller := run(t, negative, errors.New("body encoder broke"))

		assert.True(t, report.Aborted)
		assert.Zero(t, report.Rating)
		assert.Equal(t, []string{"body encoder broke"}, report.Errors)
		assert.Len(t, caller.calls, 2)
	})

	t.Run("positive steps still abort", func(t *testing.T) {
		positive := Step{Name: "bad", OperationID: "getFile", Checks: []Check{
			{Name: "message", Weight: 10, ExpectPass: true, Assert: ExpectPresent("message", "message required")},
		}}
		report, _ := run(t, positive, fmt.Errorf("%w: connection refused", ErrConnection))

		assert.True(t, report.Aborted)
		assert.Zero(t, report.Rating)
		assert.Equal(t, 10.0, report.Total, "weights scored before the abort are kept")
		assert.Equal(t, 10.0, report.Achieved)
	})
}

func TestRunScenarioHarnessErrorAborts(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(nil).Once()
	scenario := Scenario{Name: "broken", Steps: []Step{{
		OperationID: "getFiles",
		Checks: []Check{{Name: "fixture", Weight: 10, ExpectPass: true, Assert: func(*schema.CallResult) error {
			return errors.New("fixture missing")
		}}},
	}}}

	report := RunScenario(context.Background(), app, okCaller(), scenario, testOptions(t, freePorts()))

	assert.True(t, report.Aborted)
	assert.Equal(t, []string{"getFiles (fixture): fixture missing"}, report.Errors)
	app.AssertExpectations(t)
}

func TestRunScenarioCancelledContext(t *testing.T) {
	app := newMockApp()
	expectPrepared(app)
	app.On("Start", mock.Anything).Return(nil).Once()
	app.On("Stop", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	caller := &scriptedCaller{respond: func(_ int, id string) (*schema.CallResult, error) {
		cancel()
		return &schema.CallResult{OperationID: id, StatusCode: 200, Body: map[string]any{"message": "ok"}}, nil
	}}

	report := RunScenario(ctx, app, caller, testScenario(), RunOptions{Port: 8080})

	assert.True(t, report.Aborted)
	assert.Contains(t, report.Errors[0], "run cancelled")
	assert.Len(t, caller.calls, 1)
	app.AssertExpectations(t)
}

func TestRunScenarioIsolatesScores(t *testing.T) {
	var wg sync.WaitGroup
	reports := make([]schema.RunReport, 4)
	for i := range reports {
		wg.Go(func() {
			app := new(lifecycle.MockLifecycle)
			app.On("Name").Return(fmt.Sprintf("worker-%d", i)).Maybe()
			app.On("ProjectID").Return("p").Maybe()
			expectPrepared(app)
			app.On("Start", mock.Anything).Return(nil).Once()
			app.On("Stop", mock.Anything).Return(nil).Once()
			reports[i] = RunScenario(context.Background(), app, okCaller(), testScenario(), RunOptions{Port: 9000 + i})
		})
	}
	wg.Wait()

	ids := map[string]struct{}{}
	for _, r := range reports {
		assert.Equal(t, 40.0, r.Total)
		assert.Equal(t, 1.0, r.Rating)
		ids[r.RunID] = struct{}{}
	}
	assert.Len(t, ids, len(reports))
}

func TestScenarioWeights(t *testing.T) {
	s := testScenario()
	assert.Equal(t, 40.0, s.Weight())
	assert.False(t, s.Steps[0].HasNegativeCheck())
	assert.True(t, s.Steps[2].HasNegativeCheck())
}
