// Package runregistry tracks in-flight and completed cascade
// reconciliation runs, so a driver (CLI or hosted service) can report
// status and summaries back to a caller by run ID.
package runregistry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaskrrish/go-cascade/internal/cascade"
)

// Status is the lifecycle state of a tracked run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrRunNotFound is returned when a run ID has no matching record,
	// either because it never existed or because it has already been
	// cleaned up.
	ErrRunNotFound = errors.New("runregistry: run not found")
)

// Run is one reconciliation attempt's tracked record.
type Run struct {
	RunID       uuid.UUID
	NrKeyBits   uint32
	Status      Status
	Summary     *cascade.Summary
	Message     string
	CreatedAt   time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
}

// Registry is a concurrency-safe store of Run records, generalized from
// a session manager into a reconciliation-run tracker: the same
// create/get/mark-done/cleanup lifecycle, applied to cascade runs instead
// of QKD sessions.
type Registry struct {
	mutex sync.RWMutex
	runs  map[uuid.UUID]*Run
	ttl   time.Duration
}

// NewRegistry returns an empty Registry whose records expire ttl after
// creation unless ttl is zero, in which case they never expire.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		runs: make(map[uuid.UUID]*Run),
		ttl:  ttl,
	}
}

// Create registers a new running reconciliation and returns its ID.
func (r *Registry) Create(nrKeyBits uint32) uuid.UUID {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	runID := uuid.New()
	now := time.Now()

	run := &Run{
		RunID:     runID,
		NrKeyBits: nrKeyBits,
		Status:    StatusRunning,
		CreatedAt: now,
	}
	if r.ttl > 0 {
		run.ExpiresAt = now.Add(r.ttl)
	}

	r.runs[runID] = run
	return runID
}

// Get retrieves a run record by ID.
func (r *Registry) Get(runID uuid.UUID) (*Run, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// MarkCompleted records a successful run's summary.
func (r *Registry) MarkCompleted(runID uuid.UUID, summary cascade.Summary) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}

	now := time.Now()
	run.Status = StatusCompleted
	run.Summary = &summary
	run.CompletedAt = &now
	if summary.HasErrorCounts && !summary.Complete() {
		run.Message = "reconciliation ended with residual errors"
	}
	return nil
}

// MarkFailed records a run that ended in an error.
func (r *Registry) MarkFailed(runID uuid.UUID, err error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}

	now := time.Now()
	run.Status = StatusFailed
	run.Message = err.Error()
	run.CompletedAt = &now
	return nil
}

// CleanupExpired removes every run whose ExpiresAt has passed, and
// returns how many were removed. Runs created with a zero TTL never
// expire and are never removed by this call.
func (r *Registry) CleanupExpired() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	removed := 0
	for id, run := range r.runs {
		if run.ExpiresAt.IsZero() {
			continue
		}
		if now.After(run.ExpiresAt) {
			delete(r.runs, id)
			removed++
		}
	}
	return removed
}
