package socrata

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/beachwatch/beachwatch/internal/beachweather"
)

// SoQL parameter names understood by the resource endpoint.
const (
	ParamLimit  = "$limit"
	ParamOffset = "$offset"
	ParamOrder  = "$order"
	ParamWhere  = "$where"
)

// Query is an immutable set of query parameters. Every setter returns a new
// Query, so a value can be shared between requests without being mutated.
type Query struct {
	params map[string]string
}

// NewQuery returns an empty query.
func NewQuery() Query {
	return Query{}
}

// Param returns a copy of q with key set to value.
func (q Query) Param(key, value string) Query {
	params := make(map[string]string, len(q.params)+1)
	for k, v := range q.params {
		params[k] = v
	}
	params[key] = value
	return Query{params: params}
}

// Station filters on an exact station name.
func (q Query) Station(name string) Query {
	return q.Param(beachweather.FieldStationName, name)
}

// Limit caps the number of returned records.
func (q Query) Limit(n int) Query {
	return q.Param(ParamLimit, strconv.Itoa(n))
}

// Offset skips n records before the returned page.
func (q Query) Offset(n int) Query {
	return q.Param(ParamOffset, strconv.Itoa(n))
}

// Order sorts by a SoQL order expression, e.g. "measurement_id" or "measurement_id DESC".
func (q Query) Order(expr string) Query {
	return q.Param(ParamOrder, expr)
}

// Where filters with a SoQL boolean predicate.
func (q Query) Where(expr string) Query {
	return q.Param(ParamWhere, expr)
}

// Get returns the value of key, or "" when unset.
func (q Query) Get(key string) string {
	return q.params[key]
}

// Len returns the number of parameters.
func (q Query) Len() int {
	return len(q.params)
}

// Values returns the parameters as url.Values.
func (q Query) Values() url.Values {
	values := make(url.Values, len(q.params))
	for k, v := range q.params {
		values.Set(k, v)
	}
	return values
}

// Encode returns the URL-encoded query string with keys sorted.
func (q Query) Encode() string {
	return q.Values().Encode()
}

// Keys returns the parameter names in sorted order.
func (q Query) Keys() []string {
	keys := make([]string, 0, len(q.params))
	for k := range q.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
