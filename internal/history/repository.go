// Package history stores the reports of past contract runs.
package history

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/beachwatch/beachwatch/internal/contract"
)

// ErrNotFound is returned when the requested run does not exist.
var ErrNotFound = errors.New("contract run not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// MaxListLimit is the largest page List returns.
const MaxListLimit = 100

// Repository persists contract run reports.
type Repository interface {
	// Save stores a report. Saving a run id twice replaces the earlier report.
	Save(ctx context.Context, report *contract.Report) error

	// Get returns the run with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*contract.Report, error)

	// Latest returns the most recently started run, or ErrNotFound.
	Latest(ctx context.Context) (*contract.Report, error)

	// List returns up to limit runs, most recent first.
	List(ctx context.Context, limit int) ([]*contract.Report, error)
}

// clampLimit applies DefaultListLimit and MaxListLimit.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
