package app

import (
	"context"
	"log"
	"time"

	"assessment-engine/internal/domain"
)

// DefaultSnapshotFreshness is the maximum age a snapshot may have and still be
// eligible for recovery.
const DefaultSnapshotFreshness = 2 * time.Hour

// recoveryManager mediates between an attempt and the ephemeral snapshot
// store. It owns the staleness policy; the store itself is schema-free.
type recoveryManager struct {
	store     SnapshotStore
	freshness time.Duration
	now       func() time.Time
}

func newRecoveryManager(store SnapshotStore, freshness time.Duration, now func() time.Time) *recoveryManager {
	if freshness <= 0 {
		freshness = DefaultSnapshotFreshness
	}
	return &recoveryManager{store: store, freshness: freshness, now: now}
}

// load returns a snapshot eligible for recovery, or nil when none exists or
// the stored one is stale. Staleness is not an error: the attempt simply
// starts fresh.
func (r *recoveryManager) load(ctx context.Context, assessmentID, userID string) *domain.AttemptSnapshot {
	snap, err := r.store.ReadSnapshot(ctx, assessmentID, userID)
	if err != nil {
		log.Printf("snapshot read failed for %s/%s: %v", assessmentID, userID, err)
		return nil
	}
	if snap == nil {
		return nil
	}
	if r.now().Sub(snap.SavedAt) > r.freshness {
		// Too old to trust; drop it so it cannot resurface later.
		if err := r.store.DeleteSnapshot(ctx, assessmentID, userID); err != nil {
			log.Printf("stale snapshot delete failed for %s/%s: %v", assessmentID, userID, err)
		}
		return nil
	}
	return snap
}

// save writes the snapshot, stamping SavedAt. Best effort: failures are
// logged, never propagated to the attempt.
func (r *recoveryManager) save(ctx context.Context, assessmentID, userID string, snap domain.AttemptSnapshot) {
	snap.SavedAt = r.now()
	if err := r.store.WriteSnapshot(ctx, assessmentID, userID, snap); err != nil {
		log.Printf("snapshot write failed for %s/%s: %v", assessmentID, userID, err)
	}
}

// invalidate removes the snapshot. Called exactly once when submission begins,
// so recovery data can never resurrect a completed attempt.
func (r *recoveryManager) invalidate(ctx context.Context, assessmentID, userID string) {
	if err := r.store.DeleteSnapshot(ctx, assessmentID, userID); err != nil {
		log.Printf("snapshot delete failed for %s/%s: %v", assessmentID, userID, err)
	}
}
