package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"assessment-engine/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSnapshotStore(client, 2*time.Hour)
	ctx := context.Background()

	if snap, err := store.ReadSnapshot(ctx, "a1", "u1"); err != nil || snap != nil {
		t.Fatalf("expected miss on empty store, got %v/%v", snap, err)
	}

	selected := "fast"
	saved := domain.AttemptSnapshot{
		Answers: []domain.AnswerEntry{
			{QuestionID: "q1", Selected: &selected, Flagged: true},
			{QuestionID: "q2"},
		},
		Position:         1,
		RemainingSeconds: 240,
		QuestionOrder:    []string{"q1", "q2"},
		StartedAt:        time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		SavedAt:          time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC),
	}
	if err := store.WriteSnapshot(ctx, "a1", "u1", saved); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !mr.Exists("attempt:snapshot:a1:u1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("attempt:snapshot:a1:u1"); ttl != 2*time.Hour {
		t.Fatalf("expected freshness-window TTL, got %v", ttl)
	}

	snap, err := store.ReadSnapshot(ctx, "a1", "u1")
	if err != nil || snap == nil {
		t.Fatalf("read: %v/%v", snap, err)
	}
	if snap.Position != 1 || snap.RemainingSeconds != 240 {
		t.Fatalf("round-trip mismatch: %+v", snap)
	}
	if snap.Answers[0].Selected == nil || *snap.Answers[0].Selected != "fast" || !snap.Answers[0].Flagged {
		t.Fatalf("answers lost in round-trip: %+v", snap.Answers)
	}
	if !snap.SavedAt.Equal(saved.SavedAt) {
		t.Fatalf("timestamps lost: %v vs %v", snap.SavedAt, saved.SavedAt)
	}

	if err := store.DeleteSnapshot(ctx, "a1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("attempt:snapshot:a1:u1") {
		t.Fatalf("expected redis key to be removed")
	}
}
