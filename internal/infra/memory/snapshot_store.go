package memory

import (
	"context"
	"sync"

	"assessment-engine/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.AttemptSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.AttemptSnapshot)}
}

func (s *SnapshotStore) ReadSnapshot(_ context.Context, assessmentID, userID string) (*domain.AttemptSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[snapshotKey(assessmentID, userID)]; ok {
		return &snap, nil
	}
	return nil, nil
}

func (s *SnapshotStore) WriteSnapshot(_ context.Context, assessmentID, userID string, snap domain.AttemptSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey(assessmentID, userID)] = snap
	return nil
}

func (s *SnapshotStore) DeleteSnapshot(_ context.Context, assessmentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, snapshotKey(assessmentID, userID))
	return nil
}

func snapshotKey(assessmentID, userID string) string {
	return assessmentID + ":" + userID
}
