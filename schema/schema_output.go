package schema

import "time"

// CheckRecord is the outcome of one weighted validation.
type CheckRecord struct {
	Step        string  `json:"step" yaml:"step"`
	OperationID string  `json:"operation_id" yaml:"operation_id"`
	StatusCode  int     `json:"status_code" yaml:"status_code"`
	Weight      float64 `json:"weight" yaml:"weight"`
	ExpectPass  bool    `json:"expect_pass" yaml:"expect_pass"`
	Passed      bool    `json:"passed" yaml:"passed"`
	Message     string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// RunReport is the immutable result of one scenario run.
// Rating is always in [0, 1] and Errors is never nil.
type RunReport struct {
	RunID     string        `json:"runId" yaml:"run_id"`
	Name      string        `json:"name" yaml:"name"`
	ProjectID string        `json:"projectId" yaml:"project_id"`
	Scenario  string        `json:"scenario" yaml:"scenario"`
	Rating    float64       `json:"rating" yaml:"rating"`
	Achieved  float64       `json:"achieved" yaml:"achieved"`
	Total     float64       `json:"total" yaml:"total"`
	Errors    []string      `json:"errors" yaml:"errors"`
	Checks    []CheckRecord `json:"checks,omitempty" yaml:"checks,omitempty"`
	Aborted   bool          `json:"aborted" yaml:"aborted"`
	StartedAt time.Time     `json:"startedAt" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Label returns the coarse grade of the report.
func (r RunReport) Label() RatingLabel {
	return GetRatingLabel(r.Rating)
}

// Passed reports whether every check matched its polarity.
func (r RunReport) Passed() bool {
	return !r.Aborted && len(r.Errors) == 0 && r.Total > 0
}

// GetRatingLabel maps a rating in [0, 1] to a label.
func GetRatingLabel(rating float64) RatingLabel {
	switch {
	case rating >= 1:
		return PassLabel
	case rating > 0:
		return PartialLabel
	default:
		return FailLabel
	}
}

// CatalogRenderModel is the presentation model for a catalog listing.
type CatalogRenderModel struct {
	Source     string              `json:"source" yaml:"source"`
	Operations []OperationTemplate `json:"operations" yaml:"operations"`
}
