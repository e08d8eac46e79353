// Package sodafake serves an in-memory dataset through the same query
// interface as a Socrata resource endpoint, for offline tests of the
// beach weather contract checks.
package sodafake

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// Error codes returned in error bodies.
const (
	CodeMalformed    = "query.compiler.malformed"
	CodeInvalid      = "query.soql.invalid"
	CodeNoSuchColumn = "query.soql.no-such-column"
	CodeNotFound     = "not_found"
)

// defaultLimit is the page size applied when $limit is absent.
const defaultLimit = 1000

// Row is one record. Values are strings, as the real API serializes them.
type Row map[string]string

// Dataset is the data served by a Server.
type Dataset struct {
	ID      string
	Columns []string
	Rows    []Row
}

// hasColumn reports whether name is part of the dataset schema.
func (d *Dataset) hasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// errorBody mirrors the error object of the real API.
type errorBody struct {
	Code    string         `json:"code"`
	Error   bool           `json:"error"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Server is an http.Handler answering /resource/{dataset}.json.
type Server struct {
	dataset  *Dataset
	router   chi.Router
	requests atomic.Int64
}

// NewServer creates a server for ds.
func NewServer(ds *Dataset) *Server {
	s := &Server{dataset: ds}

	r := chi.NewRouter()
	r.Get("/resource/{file}", s.handleResource)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errorBody{Code: CodeNotFound, Error: true, Message: "not found"})
	})
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.router.ServeHTTP(w, r)
}

// Requests returns how many requests the server has received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if strings.TrimSuffix(file, ".json") != s.dataset.ID || !strings.HasSuffix(file, ".json") {
		writeError(w, http.StatusNotFound, errorBody{
			Code:    CodeNotFound,
			Error:   true,
			Message: fmt.Sprintf("Cannot find view with id %s", strings.TrimSuffix(file, ".json")),
		})
		return
	}

	rows, err := s.query(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rows)
}

// query applies the request parameters to the dataset.
func (s *Server) query(r *http.Request) ([]Row, error) {
	params := r.URL.Query()

	var (
		predicates []Predicate
		order      *orderSpec
		limit      = defaultLimit
		offset     = 0
	)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params.Get(key)
		switch key {
		case "$limit":
			n, err := parseNonNegative(key, value)
			if err != nil {
				return nil, err
			}
			limit = n
		case "$offset":
			n, err := parseNonNegative(key, value)
			if err != nil {
				return nil, err
			}
			offset = n
		case "$order":
			spec, err := compileOrder(value)
			if err != nil {
				return nil, err
			}
			if !s.dataset.hasColumn(spec.field) {
				return nil, noSuchColumn(spec.field)
			}
			order = &spec
		case "$where":
			pred, err := CompileWhere(value)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, pred)
		default:
			if strings.HasPrefix(key, "$") {
				return nil, &invalidParamError{msg: fmt.Sprintf("Unrecognized arguments [%s]", strings.TrimPrefix(key, "$"))}
			}
			if !s.dataset.hasColumn(key) {
				return nil, noSuchColumn(key)
			}
			field, want := key, value
			predicates = append(predicates, func(row Row) bool { return row[field] == want })
		}
	}

	matched := make([]Row, 0)
	for _, row := range s.dataset.Rows {
		ok := true
		for _, p := range predicates {
			if !p(row) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if order != nil {
		spec := *order
		sort.SliceStable(matched, func(i, j int) bool {
			if spec.desc {
				return matched[i][spec.field] > matched[j][spec.field]
			}
			return matched[i][spec.field] < matched[j][spec.field]
		})
	}

	if offset >= len(matched) {
		return []Row{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

type invalidParamError struct {
	msg    string
	column bool
}

func (e *invalidParamError) Error() string { return e.msg }

func noSuchColumn(name string) error {
	return &invalidParamError{msg: "No such column: " + name, column: true}
}

func parseNonNegative(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, &invalidParamError{msg: fmt.Sprintf("Invalid value for %s: %q", key, value)}
	}
	return n, nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	var compileErr *CompileError
	var paramErr *invalidParamError

	switch {
	case errors.As(err, &compileErr):
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    CodeMalformed,
			Error:   true,
			Message: compileErr.Error(),
			Data:    map[string]any{"query": compileErr.Query},
		})
	case errors.As(err, &paramErr):
		code := CodeInvalid
		if paramErr.column {
			code = CodeNoSuchColumn
		}
		writeError(w, http.StatusBadRequest, errorBody{Code: code, Error: true, Message: paramErr.msg})
	default:
		writeError(w, http.StatusInternalServerError, errorBody{Code: "internal", Error: true, Message: err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
