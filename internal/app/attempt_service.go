package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/domain"
)

// QuestionSource loads assessment content (from cache/backing store). The
// question list is append-only and read-only from the engine's perspective.
type QuestionSource interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error)
}

// SnapshotStore is the local ephemeral store used for interruption recovery.
// It is not a system of record; entries may vanish at any time.
type SnapshotStore interface {
	ReadSnapshot(ctx context.Context, assessmentID, userID string) (*domain.AttemptSnapshot, error)
	WriteSnapshot(ctx context.Context, assessmentID, userID string, snap domain.AttemptSnapshot) error
	DeleteSnapshot(ctx context.Context, assessmentID, userID string) error
}

// ResultStore is the durable result store: finished attempts are recorded
// unconditionally, certificates/rewards only for passing results.
type ResultStore interface {
	RecordAttempt(ctx context.Context, assessmentID, userID string, result domain.Result, answers []domain.AnswerEntry) error
	IssueReward(ctx context.Context, assessmentID, userID string, result domain.Result) (domain.CertificateHandle, error)
}

// Tuning collects the engine's timing knobs. Zero values take defaults; tests
// shrink the intervals and inject a clock for determinism.
type Tuning struct {
	Now               func() time.Time
	Rand              *rand.Rand
	TickInterval      time.Duration
	AutosaveInterval  time.Duration
	SnapshotFreshness time.Duration
	PersistTimeout    time.Duration
}

func (t Tuning) withDefaults() Tuning {
	if t.Now == nil {
		t.Now = time.Now
	}
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if t.TickInterval <= 0 {
		t.TickInterval = time.Second
	}
	if t.AutosaveInterval <= 0 {
		t.AutosaveInterval = 30 * time.Second
	}
	if t.SnapshotFreshness <= 0 {
		t.SnapshotFreshness = DefaultSnapshotFreshness
	}
	if t.PersistTimeout <= 0 {
		t.PersistTimeout = 10 * time.Second
	}
	return t
}

// AttemptService is the engine's public surface: it loads content, tracks
// live attempts keyed by assessment and user, and wires each attempt to the
// recovery and submission machinery.
type AttemptService struct {
	source   QuestionSource
	recovery *recoveryManager
	pipeline *submissionPipeline
	tuning   Tuning
	sf       singleflight.Group

	mu       sync.Mutex
	attempts map[string]*Attempt
}

func NewAttemptService(source QuestionSource, snapshots SnapshotStore, results ResultStore) *AttemptService {
	return NewAttemptServiceWithTuning(source, snapshots, results, Tuning{})
}

// NewAttemptServiceWithTuning allows deterministic clocks and shortened
// intervals in tests.
func NewAttemptServiceWithTuning(source QuestionSource, snapshots SnapshotStore, results ResultStore, tuning Tuning) *AttemptService {
	tuning = tuning.withDefaults()
	return &AttemptService{
		source:   source,
		recovery: newRecoveryManager(snapshots, tuning.SnapshotFreshness, tuning.Now),
		pipeline: newSubmissionPipeline(results, tuning.PersistTimeout),
		tuning:   tuning,
		attempts: make(map[string]*Attempt),
	}
}

// StartAttempt begins (or, within this process, rejoins) an attempt. A fresh
// attempt recovers from a recent snapshot when one exists; an empty question
// set refuses to start.
func (s *AttemptService) StartAttempt(ctx context.Context, assessmentID, userID string) (*Attempt, error) {
	key := attemptKey(assessmentID, userID)
	// Concurrent starts for the same key collapse into one; an attempt is only
	// registered once start has succeeded, so Get never observes one that is
	// still warming up.
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		if attempt, ok := s.attempts[key]; ok {
			s.mu.Unlock()
			return attempt, nil
		}
		s.mu.Unlock()

		cfg, questions, err := s.source.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return nil, err
		}

		attempt := newAttempt(cfg, userID, s.recovery, s.pipeline, s.tuning.Now, s.tuning.TickInterval, s.tuning.AutosaveInterval)
		if err := attempt.start(ctx, questions, s.tuning.Rand); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.attempts[key] = attempt
		s.mu.Unlock()
		return attempt, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Attempt), nil
}

// Get returns the live attempt for the key, if any.
func (s *AttemptService) Get(assessmentID, userID string) (*Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptKey(assessmentID, userID)]
	return attempt, ok
}

// CloseAttempt detaches and tears down the attempt: timers cleared,
// subscribers released, one final snapshot flushed if still in progress.
func (s *AttemptService) CloseAttempt(assessmentID, userID string) {
	s.mu.Lock()
	attempt, ok := s.attempts[attemptKey(assessmentID, userID)]
	if ok {
		delete(s.attempts, attemptKey(assessmentID, userID))
	}
	s.mu.Unlock()
	if ok {
		attempt.Close()
	}
}

func attemptKey(assessmentID, userID string) string {
	return assessmentID + "/" + userID
}
