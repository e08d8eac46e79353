package contract

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
)

// missing is reported as the actual value of an absent field.
const missing = "<missing>"

// maxActualLen bounds actual values quoted in failures.
const maxActualLen = 200

// Failure describes one assertion mismatch.
type Failure struct {
	Step     string `json:"step,omitempty"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (f Failure) String() string {
	s := fmt.Sprintf("%s: expected %s, got %s", f.Field, f.Expected, f.Actual)
	if f.Step != "" {
		s = f.Step + ": " + s
	}
	return s
}

// Assertion checks one property of a response.
type Assertion func(resp *socrata.Response) []Failure

// Evaluate runs every assertion against resp and collects the failures.
func Evaluate(resp *socrata.Response, assertions ...Assertion) []Failure {
	var failures []Failure
	for _, a := range assertions {
		failures = append(failures, a(resp)...)
	}
	return failures
}

// InStep labels failures with the step that produced them.
func InStep(step string, failures []Failure) []Failure {
	for i := range failures {
		failures[i].Step = step
	}
	return failures
}

// StatusCode asserts the exact HTTP status.
func StatusCode(want int) Assertion {
	return func(resp *socrata.Response) []Failure {
		if resp.StatusCode == want {
			return nil
		}
		return []Failure{{Field: "status", Expected: strconv.Itoa(want), Actual: strconv.Itoa(resp.StatusCode)}}
	}
}

// StatusClass asserts the status falls in the given hundred, e.g. 4 for 4xx.
func StatusClass(class int) Assertion {
	return func(resp *socrata.Response) []Failure {
		if resp.StatusCode/100 == class {
			return nil
		}
		return []Failure{{
			Field:    "status",
			Expected: fmt.Sprintf("%dxx", class),
			Actual:   fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}}
	}
}

// IsArray asserts the body is a JSON array.
func IsArray() Assertion {
	return func(resp *socrata.Response) []Failure {
		root, f := parse(resp)
		if f != nil {
			return f
		}
		if !root.IsArray() {
			return []Failure{{Field: "body", Expected: "JSON array", Actual: truncate(root.Raw)}}
		}
		return nil
	}
}

// NonEmptyArray asserts the body is an array with at least one element.
func NonEmptyArray() Assertion {
	return func(resp *socrata.Response) []Failure {
		if f := IsArray()(resp); f != nil {
			return f
		}
		if len(gjson.ParseBytes(resp.Body).Array()) == 0 {
			return []Failure{{Field: "body", Expected: "non-empty array", Actual: "[]"}}
		}
		return nil
	}
}

// EmptyArray asserts the body is an array with no elements.
func EmptyArray() Assertion {
	return func(resp *socrata.Response) []Failure {
		if f := IsArray()(resp); f != nil {
			return f
		}
		if n := len(gjson.ParseBytes(resp.Body).Array()); n != 0 {
			return []Failure{{Field: "body", Expected: "empty array", Actual: fmt.Sprintf("array of %d items", n)}}
		}
		return nil
	}
}

// MaxItems asserts the body is an array of at most n elements.
func MaxItems(n int) Assertion {
	return func(resp *socrata.Response) []Failure {
		if f := IsArray()(resp); f != nil {
			return f
		}
		if got := len(gjson.ParseBytes(resp.Body).Array()); got > n {
			return []Failure{{Field: "body", Expected: fmt.Sprintf("at most %d items", n), Actual: strconv.Itoa(got)}}
		}
		return nil
	}
}

// EveryItemEquals asserts field equals want on every element of the body array.
func EveryItemEquals(field, want string) Assertion {
	return func(resp *socrata.Response) []Failure {
		if f := IsArray()(resp); f != nil {
			return f
		}

		var failures []Failure
		for i, item := range gjson.ParseBytes(resp.Body).Array() {
			got := item.Get(field)
			if got.Type == gjson.String && got.Str == want {
				continue
			}
			failures = append(failures, Failure{
				Field:    fmt.Sprintf("[%d].%s", i, field),
				Expected: strconv.Quote(want),
				Actual:   describe(got),
			})
		}
		return failures
	}
}

// FieldEquals asserts the string at path equals want.
func FieldEquals(path, want string) Assertion {
	return func(resp *socrata.Response) []Failure {
		root, f := parse(resp)
		if f != nil {
			return f
		}
		got := root.Get(path)
		if got.Type == gjson.String && got.Str == want {
			return nil
		}
		return []Failure{{Field: path, Expected: strconv.Quote(want), Actual: describe(got)}}
	}
}

// FieldIsTrue asserts the value at path is the boolean true.
func FieldIsTrue(path string) Assertion {
	return func(resp *socrata.Response) []Failure {
		root, f := parse(resp)
		if f != nil {
			return f
		}
		got := root.Get(path)
		if got.Type == gjson.True {
			return nil
		}
		return []Failure{{Field: path, Expected: "true", Actual: describe(got)}}
	}
}

// FieldContainsFold asserts the string at path contains substr, ignoring case.
func FieldContainsFold(path, substr string) Assertion {
	return func(resp *socrata.Response) []Failure {
		root, f := parse(resp)
		if f != nil {
			return f
		}
		got := root.Get(path)
		if got.Type == gjson.String && strings.Contains(strings.ToLower(got.Str), strings.ToLower(substr)) {
			return nil
		}
		return []Failure{{Field: path, Expected: fmt.Sprintf("string containing %q (any case)", substr), Actual: describe(got)}}
	}
}

// Strings returns the string values of field across the body array.
// Elements without the field are skipped.
func Strings(resp *socrata.Response, field string) []string {
	var values []string
	for _, item := range gjson.ParseBytes(resp.Body).Array() {
		if v := item.Get(field); v.Exists() {
			values = append(values, v.String())
		}
	}
	return values
}

// Overlap returns the values present in both a and b, sorted and de-duplicated.
func Overlap(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}

	shared := make(map[string]struct{})
	for _, v := range b {
		if _, ok := seen[v]; ok {
			shared[v] = struct{}{}
		}
	}

	overlap := make([]string, 0, len(shared))
	for v := range shared {
		overlap = append(overlap, v)
	}
	sort.Strings(overlap)
	return overlap
}

func parse(resp *socrata.Response) (gjson.Result, []Failure) {
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, []Failure{{Field: "body", Expected: "valid JSON", Actual: truncate(string(resp.Body))}}
	}
	return gjson.ParseBytes(resp.Body), nil
}

func describe(r gjson.Result) string {
	if !r.Exists() {
		return missing
	}
	return truncate(r.Raw)
}

func truncate(s string) string {
	if len(s) <= maxActualLen {
		return s
	}
	return s[:maxActualLen] + "..."
}
