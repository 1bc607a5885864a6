package core

import (
	"fmt"

	"github.com/huangsam/apigrade/schema"
	"github.com/stretchr/testify/assert"
)

// AssertionFunc inspects a call result and returns an *AssertionError when an
// expectation does not hold. Any other error is treated as a harness failure.
type AssertionFunc func(res *schema.CallResult) error

// Assertions chains assertion functions and stops at the first failure.
func Assertions(fns ...AssertionFunc) AssertionFunc {
	return func(res *schema.CallResult) error {
		for _, fn := range fns {
			if err := fn(res); err != nil {
				return err
			}
		}
		return nil
	}
}

// Expect fails with msg when cond does not hold.
func Expect(cond func(res *schema.CallResult) bool, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		if !cond(res) {
			return Failf("%s", msg)
		}
		return nil
	}
}

// ExpectStatus fails unless the response has the given status code.
func ExpectStatus(code int, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		if res.StatusCode != code {
			return Failf("%s (expected %d, got %d)", msg, code, res.StatusCode)
		}
		return nil
	}
}

// ExpectPresent fails when a body property is missing or null.
func ExpectPresent(field, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		if _, ok := res.Field(field); !ok {
			return Failf("%s", msg)
		}
		return nil
	}
}

// ExpectAbsent fails when a body property holds a truthy value.
func ExpectAbsent(field, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		v, ok := res.Field(field)
		if ok && truthy(v) {
			return Failf("%s (got %v)", msg, v)
		}
		return nil
	}
}

// ExpectEqual fails unless a body property equals want.
func ExpectEqual(field string, want any, msg string) AssertionFunc {
	return ExpectOneOf(field, []any{want}, msg)
}

// ExpectOneOf fails unless a body property equals one of wants.
func ExpectOneOf(field string, wants []any, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		got, _ := res.Field(field)
		for _, want := range wants {
			if assert.ObjectsAreEqual(want, got) {
				return nil
			}
		}
		if len(wants) == 1 {
			return Failf("%s (expected %s, got %s)", msg, quote(wants[0]), quote(got))
		}
		return Failf("%s (expected one of %v, got %s)", msg, wants, quote(got))
	}
}

// ExpectListItem fails unless the list property has want at index.
func ExpectListItem(field string, index int, want any, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		list, _ := res.ListField(field)
		if index >= len(list) {
			return Failf("%s (list has %d items)", msg, len(list))
		}
		if !assert.ObjectsAreEqual(want, list[index]) {
			return Failf("%s (expected %s, got %s)", msg, quote(want), quote(list[index]))
		}
		return nil
	}
}

// ExpectListContains fails unless the list property contains want.
func ExpectListContains(field string, want any, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		list, _ := res.ListField(field)
		for _, item := range list {
			if assert.ObjectsAreEqual(want, item) {
				return nil
			}
		}
		return Failf("%s (missing %s)", msg, quote(want))
	}
}

// ExpectMinLen fails when the list property has fewer than n items.
func ExpectMinLen(field string, n int, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		list, _ := res.ListField(field)
		if len(list) < n {
			return Failf("%s (got %d)", msg, len(list))
		}
		return nil
	}
}

// ExpectLen fails unless the list property has exactly n items.
func ExpectLen(field string, n int, msg string) AssertionFunc {
	return func(res *schema.CallResult) error {
		list, ok := res.ListField(field)
		if !ok || len(list) != n {
			return Failf("%s (expected %d, got %d)", msg, n, len(list))
		}
		return nil
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func quote(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if v == nil {
		return "nothing"
	}
	return fmt.Sprintf("%v", v)
}
