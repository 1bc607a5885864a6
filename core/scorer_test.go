package core

import (
	"errors"
	"testing"

	"github.com/huangsam/apigrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResult() *schema.CallResult {
	return &schema.CallResult{
		OperationID: "getFile",
		StatusCode:  200,
		Body: map[string]any{
			"message":  "success",
			"filename": "notes.txt",
			"content":  "testcontent",
			"files":    []any{"notes.txt", "data.test.json"},
		},
	}
}

func rejectedResult() *schema.CallResult {
	return &schema.CallResult{
		OperationID: "createFile",
		StatusCode:  400,
		Body:        map[string]any{"message": "Missing name or content"},
	}
}

func passing(*schema.CallResult) error { return nil }

func failing(*schema.CallResult) error { return Failf("content should equal testcontent") }

func TestValidatePolarity(t *testing.T) {
	tests := []struct {
		name         string
		fn           AssertionFunc
		expectPass   bool
		wantAchieved float64
		wantErrors   int
	}{
		{"expected pass, clean", passing, true, 10, 0},
		{"expected pass, assertion fails", failing, true, 0, 1},
		{"expected failure, assertion fails", failing, false, 10, 0},
		{"expected failure, clean", passing, false, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewScoreState()
			require.NoError(t, state.Validate(okResult(), tt.fn, 10, tt.expectPass))

			assert.Equal(t, 10.0, state.Total)
			assert.Equal(t, tt.wantAchieved, state.Achieved)
			assert.Len(t, state.Errors, tt.wantErrors)
			require.Len(t, state.Checks, 1)
			assert.Equal(t, tt.wantErrors == 0, state.Checks[0].Passed)
		})
	}
}

func TestValidateErrorMessagesCarryContext(t *testing.T) {
	state := NewScoreState()
	require.NoError(t, state.Validate(okResult(), failing, 10, true))
	require.NoError(t, state.Validate(rejectedResult(), passing, 10, false))

	assert.Equal(t, []string{
		"getFile (HTTP 200): content should equal testcontent",
		"createFile (HTTP 400): expected validation to fail but it passed",
	}, state.Errors)
}

func TestValidateRecoversPanics(t *testing.T) {
	state := NewScoreState()
	boom := func(res *schema.CallResult) error {
		files := res.Body.(map[string]any)["missing"].([]any)
		_ = files[0]
		return nil
	}

	require.NoError(t, state.Validate(okResult(), boom, 5, true))
	assert.Equal(t, 5.0, state.Total)
	assert.Zero(t, state.Achieved)
	require.Len(t, state.Errors, 1)
	assert.Contains(t, state.Errors[0], "assertion panicked")

	require.NoError(t, state.Validate(okResult(), boom, 5, false))
	assert.Equal(t, 5.0, state.Achieved)
}

func TestValidatePropagatesNonAssertionErrors(t *testing.T) {
	state := NewScoreState()
	harnessErr := errors.New("fixture missing")

	err := state.Validate(okResult(), func(*schema.CallResult) error { return harnessErr }, 10, true)
	assert.ErrorIs(t, err, harnessErr)
	assert.Zero(t, state.Total)
	assert.Empty(t, state.Errors)
	assert.Empty(t, state.Checks)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	state := NewScoreState()
	assert.ErrorIs(t, state.Validate(okResult(), passing, -1, true), ErrInvalidWeight)
	assert.Zero(t, state.Total)

	require.NoError(t, state.Validate(okResult(), passing, 0, true))
	assert.Zero(t, state.Rating(), "zero total yields a zero rating")

	assert.Error(t, state.Validate(okResult(), nil, 1, true))
}

func TestScoreInvariants(t *testing.T) {
	state := NewScoreState()
	weights := []float64{20, 10, 10, 10, 10, 10, 10, 10, 10}
	sum := 0.0
	for i, w := range weights {
		fn := passing
		if i%3 == 0 {
			fn = failing
		}
		require.NoError(t, state.Validate(okResult(), fn, w, i%2 == 0))
		sum += w

		assert.GreaterOrEqual(t, state.Achieved, 0.0)
		assert.LessOrEqual(t, state.Achieved, state.Total)
	}
	assert.Equal(t, sum, state.Total)
	assert.GreaterOrEqual(t, state.Rating(), 0.0)
	assert.LessOrEqual(t, state.Rating(), 1.0)
}

func TestFailRecordsUnevaluatedChecks(t *testing.T) {
	state := NewScoreState()
	require.NoError(t, state.Fail("list files", "getFiles", 10, true, ErrRequestTimeout))

	assert.Equal(t, 10.0, state.Total)
	assert.Zero(t, state.Achieved)
	assert.Equal(t, []string{"getFiles: request timeout"}, state.Errors)
	assert.False(t, state.Checks[0].Passed)
}

func TestFailCallScoresByPolarity(t *testing.T) {
	state := NewScoreState()
	require.NoError(t, state.FailCall("missing file", "getFile", 10, false, ErrConnection))
	require.NoError(t, state.FailCall("missing file", "getFile", 5, true, ErrConnection))

	assert.Equal(t, 15.0, state.Total)
	assert.Equal(t, 10.0, state.Achieved)
	assert.Equal(t, []string{"getFile: connection error"}, state.Errors)
	require.Len(t, state.Checks, 2)
	assert.True(t, state.Checks[0].Passed)
	assert.False(t, state.Checks[1].Passed)

	assert.ErrorIs(t, state.FailCall("x", "getFile", -1, false, ErrConnection), ErrInvalidWeight)
	assert.Equal(t, 15.0, state.Total)
}

func TestExpectations(t *testing.T) {
	res := okResult()

	tests := []struct {
		name   string
		fn     AssertionFunc
		passes bool
	}{
		{"status matches", ExpectStatus(200, "status"), true},
		{"status differs", ExpectStatus(400, "status"), false},
		{"present", ExpectPresent("message", "message required"), true},
		{"missing", ExpectPresent("uploadedDate", "uploadedDate required"), false},
		{"absent", ExpectAbsent("error", "no error"), true},
		{"not absent", ExpectAbsent("filename", "no filename"), false},
		{"equal", ExpectEqual("content", "testcontent", "content"), true},
		{"not equal", ExpectEqual("content", "other", "content"), false},
		{"one of", ExpectOneOf("filename", []any{"x", "notes.txt"}, "name"), true},
		{"list item", ExpectListItem("files", 0, "notes.txt", "first"), true},
		{"list item out of range", ExpectListItem("files", 5, "notes.txt", "sixth"), false},
		{"contains", ExpectListContains("files", "data.test.json", "second"), true},
		{"does not contain", ExpectListContains("files", "x.log", "x"), false},
		{"min len", ExpectMinLen("files", 2, "two"), true},
		{"exact len", ExpectLen("files", 2, "two"), true},
		{"wrong len", ExpectLen("files", 3, "three"), false},
		{"custom", Expect(func(r *schema.CallResult) bool { return r.IsSuccess() }, "success"), true},
		{"chain stops at first failure", Assertions(ExpectStatus(200, "s"), ExpectPresent("nope", "n")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(res)
			if tt.passes {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsAssertionFailure(err))
		})
	}
}

func TestExpectEqualMessage(t *testing.T) {
	err := ExpectEqual("content", "other", "content should equal content of created file")(okResult())
	require.Error(t, err)
	assert.Equal(t, `content should equal content of created file (expected "other", got "testcontent")`, err.Error())
}
