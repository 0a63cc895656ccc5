package runregistry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaskrrish/go-cascade/internal/cascade"
)

func TestCreateGetRoundTrip(t *testing.T) {
	reg := NewRegistry(0)
	id := reg.Create(1024)

	run, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != StatusRunning {
		t.Fatalf("Status = %v, want %v", run.Status, StatusRunning)
	}
	if run.NrKeyBits != 1024 {
		t.Fatalf("NrKeyBits = %d, want 1024", run.NrKeyBits)
	}
}

func TestGetUnknownRunReturnsErrRunNotFound(t *testing.T) {
	reg := NewRegistry(0)
	if _, err := reg.Get(uuid.Nil); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Get on unknown run = %v, want ErrRunNotFound", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	reg := NewRegistry(0)
	id := reg.Create(64)

	summary := cascade.Summary{HasErrorCounts: true, FinalErrors: 0}
	if err := reg.MarkCompleted(id, summary); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	run, _ := reg.Get(id)
	if run.Status != StatusCompleted {
		t.Fatalf("Status = %v, want %v", run.Status, StatusCompleted)
	}
	if run.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if run.Summary == nil || !run.Summary.Complete() {
		t.Fatal("expected a complete summary to be stored")
	}
}

func TestMarkFailed(t *testing.T) {
	reg := NewRegistry(0)
	id := reg.Create(64)

	if err := reg.MarkFailed(id, errors.New("oracle unreachable")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	run, _ := reg.Get(id)
	if run.Status != StatusFailed {
		t.Fatalf("Status = %v, want %v", run.Status, StatusFailed)
	}
	if run.Message != "oracle unreachable" {
		t.Fatalf("Message = %q, want %q", run.Message, "oracle unreachable")
	}
}

func TestCleanupExpiredRemovesOnlyExpiredRuns(t *testing.T) {
	reg := NewRegistry(time.Millisecond)
	id := reg.Create(64)

	time.Sleep(5 * time.Millisecond)
	removed := reg.CleanupExpired()
	if removed != 1 {
		t.Fatalf("CleanupExpired removed %d runs, want 1", removed)
	}
	if _, err := reg.Get(id); !errors.Is(err, ErrRunNotFound) {
		t.Fatal("expired run should have been removed")
	}
}

func TestCleanupExpiredNeverRemovesZeroTTLRuns(t *testing.T) {
	reg := NewRegistry(0)
	id := reg.Create(64)

	if removed := reg.CleanupExpired(); removed != 0 {
		t.Fatalf("CleanupExpired removed %d zero-TTL runs, want 0", removed)
	}
	if _, err := reg.Get(id); err != nil {
		t.Fatalf("zero-TTL run should still exist: %v", err)
	}
}
