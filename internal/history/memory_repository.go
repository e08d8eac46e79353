package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/beachwatch/beachwatch/internal/contract"
)

// DefaultMemoryCapacity is how many runs a MemoryRepository keeps.
const DefaultMemoryCapacity = 500

// MemoryRepository is an in-memory implementation of Repository. It keeps
// the most recent runs up to a fixed capacity.
type MemoryRepository struct {
	mu       sync.RWMutex
	capacity int
	runs     map[uuid.UUID]*contract.Report
}

// NewMemoryRepository creates a repository holding at most capacity runs.
// A non-positive capacity uses DefaultMemoryCapacity.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRepository{
		capacity: capacity,
		runs:     make(map[uuid.UUID]*contract.Report),
	}
}

// Save stores a copy of report, evicting the oldest run when full.
func (r *MemoryRepository) Save(_ context.Context, report *contract.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[report.RunID] = copyReport(report)

	if len(r.runs) > r.capacity {
		ordered := r.sortedLocked()
		for _, old := range ordered[r.capacity:] {
			delete(r.runs, old.RunID)
		}
	}
	return nil
}

// Get returns the run with the given id.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*contract.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyReport(rep), nil
}

// Latest returns the most recently started run.
func (r *MemoryRepository) Latest(_ context.Context) (*contract.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.sortedLocked()
	if len(ordered) == 0 {
		return nil, ErrNotFound
	}
	return copyReport(ordered[0]), nil
}

// List returns up to limit runs, most recent first.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]*contract.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.sortedLocked()
	if n := clampLimit(limit); len(ordered) > n {
		ordered = ordered[:n]
	}

	reports := make([]*contract.Report, 0, len(ordered))
	for _, rep := range ordered {
		reports = append(reports, copyReport(rep))
	}
	return reports, nil
}

// sortedLocked returns the stored runs, newest first. Callers hold mu.
func (r *MemoryRepository) sortedLocked() []*contract.Report {
	ordered := make([]*contract.Report, 0, len(r.runs))
	for _, rep := range r.runs {
		ordered = append(ordered, rep)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].RunID.String() > ordered[j].RunID.String()
		}
		return ordered[i].StartedAt.After(ordered[j].StartedAt)
	})
	return ordered
}

func copyReport(report *contract.Report) *contract.Report {
	cpy := *report
	cpy.Results = make([]contract.Result, len(report.Results))
	for i, res := range report.Results {
		res.Failures = append([]contract.Failure(nil), res.Failures...)
		cpy.Results[i] = res
	}
	return &cpy
}

// Ensure MemoryRepository implements Repository interface.
var _ Repository = (*MemoryRepository)(nil)
