package memory

import (
	"context"
	"testing"
	"time"

	"assessment-engine/internal/domain"
)

func TestSnapshotStoreLifecycle(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if snap, err := store.ReadSnapshot(ctx, "a1", "u1"); err != nil || snap != nil {
		t.Fatalf("expected empty store, got %v/%v", snap, err)
	}

	saved := domain.AttemptSnapshot{
		Position:         3,
		RemainingSeconds: 120,
		QuestionOrder:    []string{"q2", "q1"},
		SavedAt:          time.Now(),
	}
	if err := store.WriteSnapshot(ctx, "a1", "u1", saved); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := store.ReadSnapshot(ctx, "a1", "u1")
	if err != nil || snap == nil {
		t.Fatalf("read: %v/%v", snap, err)
	}
	if snap.Position != 3 || snap.RemainingSeconds != 120 {
		t.Fatalf("round-trip mismatch: %+v", snap)
	}

	// Keys are scoped per user.
	if other, _ := store.ReadSnapshot(ctx, "a1", "u2"); other != nil {
		t.Fatalf("snapshot leaked across users: %+v", other)
	}

	if err := store.DeleteSnapshot(ctx, "a1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap, _ := store.ReadSnapshot(ctx, "a1", "u1"); snap != nil {
		t.Fatalf("expected snapshot removed, got %+v", snap)
	}
}
