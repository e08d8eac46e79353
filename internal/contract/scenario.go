package contract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/beachwatch/beachwatch/internal/beachweather"
	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
)

// Expected values for the malformed query scenario.
const (
	MalformedWhere       = "battery_life < full"
	MalformedCode        = "query.compiler.malformed"
	MalformedMessagePart = "could not parse soql query"
)

// Paging defaults.
const (
	DefaultPageSize = 10

	// BeyondEndOffset is far past the number of records any station has.
	BeyondEndOffset = 10_000_000
)

// Getter issues one GET against the resource.
type Getter interface {
	Get(ctx context.Context, q socrata.Query) (*socrata.Response, error)
}

// Scenario is one independent request/assert check. Run returns the
// assertion failures, or an error when a request could not be completed.
type Scenario struct {
	Name  string
	Story string
	Run   func(ctx context.Context, g Getter) ([]Failure, error)
}

// DefaultScenarios returns the checks run against the beach weather resource.
func DefaultScenarios() []Scenario {
	return []Scenario{
		StationFilter(beachweather.StationOakStreet),
		PageDisjoint(beachweather.Station63rdStreet, DefaultPageSize, beachweather.FieldMeasurementID),
		RejectMalformedWhere(beachweather.Station63rdStreet, MalformedWhere),
		OffsetBeyondEnd(beachweather.Station63rdStreet, BeyondEndOffset),
	}
}

// StationFilter checks that filtering by station returns only that station's records.
func StationFilter(station string) Scenario {
	return Scenario{
		Name:  "list-measurements-by-station",
		Story: fmt.Sprintf("every measurement returned for %q belongs to that station", station),
		Run: func(ctx context.Context, g Getter) ([]Failure, error) {
			resp, err := g.Get(ctx, socrata.NewQuery().Station(station))
			if err != nil {
				return nil, err
			}
			return Evaluate(resp,
				StatusCode(http.StatusOK),
				NonEmptyArray(),
				EveryItemEquals(beachweather.FieldStationName, station),
			), nil
		},
	}
}

// PageDisjoint checks that two consecutive pages share no record.
// It relies on orderBy being unique and stable across both requests.
func PageDisjoint(station string, pageSize int, orderBy string) Scenario {
	return Scenario{
		Name:  "paginate-without-overlap",
		Story: fmt.Sprintf("pages of %d records for %q ordered by %s do not repeat records", pageSize, station, orderBy),
		Run: func(ctx context.Context, g Getter) ([]Failure, error) {
			base := socrata.NewQuery().Station(station).Limit(pageSize).Order(orderBy)

			first, err := g.Get(ctx, base.Offset(0))
			if err != nil {
				return nil, fmt.Errorf("page 1: %w", err)
			}
			second, err := g.Get(ctx, base.Offset(pageSize))
			if err != nil {
				return nil, fmt.Errorf("page 2: %w", err)
			}

			pageChecks := []Assertion{StatusCode(http.StatusOK), MaxItems(pageSize)}
			failures := InStep("page 1", Evaluate(first, pageChecks...))
			failures = append(failures, InStep("page 2", Evaluate(second, pageChecks...))...)
			if len(failures) > 0 {
				return failures, nil
			}

			overlap := Overlap(Strings(first, orderBy), Strings(second, orderBy))
			if len(overlap) > 0 {
				failures = append(failures, Failure{
					Field:    orderBy,
					Expected: "no value on both pages",
					Actual:   truncate(strings.Join(overlap, ", ")),
				})
			}
			return failures, nil
		},
	}
}

// RejectMalformedWhere checks that an uncompilable $where filter is rejected
// with a structured error body.
func RejectMalformedWhere(station, where string) Scenario {
	return Scenario{
		Name:  "reject-malformed-where",
		Story: fmt.Sprintf("the filter %q is rejected as a malformed query", where),
		Run: func(ctx context.Context, g Getter) ([]Failure, error) {
			resp, err := g.Get(ctx, socrata.NewQuery().Station(station).Where(where))
			if err != nil {
				return nil, err
			}
			return Evaluate(resp, MalformedQueryRejected()...), nil
		},
	}
}

// MalformedQueryRejected is the assertion set for a query the compiler
// refused: a 4xx status with a structured error body.
func MalformedQueryRejected() []Assertion {
	return []Assertion{
		StatusClass(4),
		FieldEquals("code", MalformedCode),
		FieldIsTrue("error"),
		FieldContainsFold("message", MalformedMessagePart),
	}
}

// OffsetBeyondEnd checks that an offset past the last record yields an empty page.
func OffsetBeyondEnd(station string, offset int) Scenario {
	return Scenario{
		Name:  "offset-beyond-end",
		Story: fmt.Sprintf("offset %d past the data of %q returns an empty page", offset, station),
		Run: func(ctx context.Context, g Getter) ([]Failure, error) {
			resp, err := g.Get(ctx, socrata.NewQuery().Station(station).Offset(offset))
			if err != nil {
				return nil, err
			}
			return Evaluate(resp,
				StatusCode(http.StatusOK),
				EmptyArray(),
			), nil
		},
	}
}
