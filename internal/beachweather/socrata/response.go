package socrata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beachwatch/beachwatch/internal/beachweather"
)

// Response is a raw resource response. The body is kept verbatim so callers
// can assert on it by path.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Query      Query
	Duration   time.Duration
}

// Measurements decodes the body as an array of records.
func (r *Response) Measurements() ([]beachweather.Measurement, error) {
	var measurements []beachweather.Measurement
	if err := json.Unmarshal(r.Body, &measurements); err != nil {
		return nil, fmt.Errorf("decode measurements: %w", err)
	}
	return measurements, nil
}

// QueryError decodes the body as an error object. ok is false when the body
// is not an error object.
func (r *Response) QueryError() (*QueryError, bool) {
	trimmed := bytes.TrimSpace(r.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var qerr QueryError
	if err := json.Unmarshal(trimmed, &qerr); err != nil {
		return nil, false
	}
	if !qerr.IsError && qerr.Code == "" {
		return nil, false
	}
	qerr.Status = r.StatusCode
	return &qerr, true
}

// Pretty returns the body indented for logs. Non-JSON bodies are returned as-is.
func (r *Response) Pretty() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Body, "", "  "); err != nil {
		return string(r.Body)
	}
	return buf.String()
}

// QueryError is the error object returned for a query the server could not
// compile or execute.
type QueryError struct {
	Code    string `json:"code"`
	IsError bool   `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error %s (status %d): %s", e.Code, e.Status, e.Message)
}

// Is matches beachweather.ErrQueryRejected.
func (e *QueryError) Is(target error) bool {
	return target == beachweather.ErrQueryRejected
}
