package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assessment-engine/internal/domain"
)

// SnapshotStore keeps in-progress attempt snapshots in Redis so an attempt
// survives a process restart. Keys carry a TTL matching the recovery
// freshness window; the engine still validates SavedAt, Redis expiry is just
// the backstop that keeps abandoned snapshots from accumulating.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) ReadSnapshot(ctx context.Context, assessmentID, userID string) (*domain.AttemptSnapshot, error) {
	raw, err := s.client.Get(ctx, s.key(assessmentID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap domain.AttemptSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStore) WriteSnapshot(ctx context.Context, assessmentID, userID string, snap domain.AttemptSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(assessmentID, userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, assessmentID, userID string) error {
	if err := s.client.Del(ctx, s.key(assessmentID, userID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) key(assessmentID, userID string) string {
	return "attempt:snapshot:" + assessmentID + ":" + userID
}
