package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/huangsam/apigrade/schema"
)

// expectedFailureMessage is recorded when a negative-path check passes cleanly.
const expectedFailureMessage = "expected validation to fail but it passed"

// ScoreState accumulates weighted outcomes for exactly one run.
// Invariant: 0 <= Achieved <= Total.
type ScoreState struct {
	Achieved float64
	Total    float64
	Errors   []string
	Checks   []schema.CheckRecord
}

// NewScoreState returns an empty score state.
func NewScoreState() *ScoreState {
	return &ScoreState{Errors: []string{}}
}

// Validate runs fn against res and scores the outcome with the given weight and polarity.
//
// With expectPass, a clean run credits the weight and an assertion failure records an
// error. Without it the polarity inverts: an assertion failure credits the weight and a
// clean run records one error. A panic inside fn counts as an assertion failure.
// Errors that are not *AssertionError leave the state untouched and are returned.
func (s *ScoreState) Validate(res *schema.CallResult, fn AssertionFunc, weight float64, expectPass bool) error {
	return s.ValidateStep("", res, fn, weight, expectPass)
}

// ValidateStep is Validate with a step name attached to the check record.
func (s *ScoreState) ValidateStep(step string, res *schema.CallResult, fn AssertionFunc, weight float64, expectPass bool) error {
	if err := checkWeight(weight); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("no assertion supplied for %s", operationOf(res))
	}

	failure, err := runAssertion(fn, res)
	if err != nil {
		return err
	}

	s.Total += weight
	record := schema.CheckRecord{
		Step:        step,
		OperationID: operationOf(res),
		Weight:      weight,
		ExpectPass:  expectPass,
	}
	if res != nil {
		record.StatusCode = res.StatusCode
	}

	failed := failure != nil
	if failed != expectPass {
		s.Achieved += weight
		record.Passed = true
		if failed {
			record.Message = failure.Message
		}
	} else {
		msg := expectedFailureMessage
		if failed {
			msg = failure.Message
		}
		record.Message = msg
		s.Errors = append(s.Errors, describe(res, msg))
	}
	s.Checks = append(s.Checks, record)
	return nil
}

// Fail records a check that could not be evaluated, such as one whose call timed out.
// The weight counts toward the total but is never credited.
func (s *ScoreState) Fail(step, operationID string, weight float64, expectPass bool, cause error) error {
	if err := checkWeight(weight); err != nil {
		return err
	}
	s.Total += weight
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", operationID, cause))
	s.Checks = append(s.Checks, schema.CheckRecord{
		Step:        step,
		OperationID: operationID,
		Weight:      weight,
		ExpectPass:  expectPass,
		Message:     cause.Error(),
	})
	return nil
}

// FailCall scores a check whose call never produced a response. A negative-path
// check is credited since the call failed as it expected; any other check is
// recorded through Fail.
func (s *ScoreState) FailCall(step, operationID string, weight float64, expectPass bool, cause error) error {
	if expectPass {
		return s.Fail(step, operationID, weight, expectPass, cause)
	}
	if err := checkWeight(weight); err != nil {
		return err
	}
	s.Total += weight
	s.Achieved += weight
	s.Checks = append(s.Checks, schema.CheckRecord{
		Step:        step,
		OperationID: operationID,
		Weight:      weight,
		ExpectPass:  expectPass,
		Passed:      true,
		Message:     cause.Error(),
	})
	return nil
}

// Rating returns Achieved/Total, or 0 when nothing was scored.
func (s *ScoreState) Rating() float64 {
	if s.Total <= 0 {
		return 0
	}
	return s.Achieved / s.Total
}

func checkWeight(weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, weight)
	}
	return nil
}

// runAssertion invokes fn, separating assertion failures from harness errors.
func runAssertion(fn AssertionFunc, res *schema.CallResult) (failure *AssertionError, err error) {
	defer func() {
		if r := recover(); r != nil {
			failure = &AssertionError{Message: fmt.Sprintf("assertion panicked: %v", r)}
			err = nil
		}
	}()

	callErr := fn(res)
	if callErr == nil {
		return nil, nil
	}
	var ae *AssertionError
	if errors.As(callErr, &ae) {
		return ae, nil
	}
	return nil, callErr
}

func operationOf(res *schema.CallResult) string {
	if res == nil || res.OperationID == "" {
		return "unknown operation"
	}
	return res.OperationID
}

func describe(res *schema.CallResult, msg string) string {
	if res == nil {
		return fmt.Sprintf("%s: %s", operationOf(res), msg)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", operationOf(res), res.StatusCode, msg)
}
