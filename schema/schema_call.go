package schema

import "time"

// CallParams carries the concrete values for one operation call.
type CallParams struct {
	Body  map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
	Query map[string]any `json:"query,omitempty" yaml:"query,omitempty"`
	Path  map[string]any `json:"path,omitempty" yaml:"path,omitempty"`
}

// CallResult is the normalized response of one operation call.
// Body holds decoded JSON when the payload parses as JSON, the raw text otherwise.
type CallResult struct {
	OperationID string            `json:"operation_id" yaml:"operation_id"`
	Method      string            `json:"method" yaml:"method"`
	URL         string            `json:"url" yaml:"url"`
	StatusCode  int               `json:"status_code" yaml:"status_code"`
	Body        any               `json:"body" yaml:"body"`
	RawBody     []byte            `json:"-" yaml:"-"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Duration    time.Duration     `json:"duration" yaml:"duration"`
}

// Field returns a top-level property of a JSON object body.
// A property holding JSON null is reported as absent.
func (r *CallResult) Field(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	obj, ok := r.Body.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// StringField returns a top-level string property of a JSON object body.
func (r *CallResult) StringField(name string) (string, bool) {
	v, ok := r.Field(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ListField returns a top-level array property of a JSON object body.
func (r *CallResult) ListField(name string) ([]any, bool) {
	v, ok := r.Field(name)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *CallResult) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
