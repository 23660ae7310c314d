package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assessment-engine/internal/domain"
)

// RecordedAttempt is one durable attempt record held by the in-memory store.
type RecordedAttempt struct {
	AssessmentID string
	UserID       string
	Result       domain.Result
	Answers      []domain.AnswerEntry
}

// ResultStore is an in-memory implementation of app.ResultStore. It keeps
// everything it is handed, which makes it the workhorse for engine tests.
// FailWith injects a persistence error for both operations.
type ResultStore struct {
	FailWith error

	mu           sync.Mutex
	attempts     []RecordedAttempt
	certificates []domain.CertificateHandle
	nextCert     int
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) RecordAttempt(_ context.Context, assessmentID, userID string, result domain.Result, answers []domain.AnswerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.attempts = append(s.attempts, RecordedAttempt{
		AssessmentID: assessmentID,
		UserID:       userID,
		Result:       result,
		Answers:      append([]domain.AnswerEntry(nil), answers...),
	})
	return nil
}

func (s *ResultStore) IssueReward(_ context.Context, assessmentID, userID string, result domain.Result) (domain.CertificateHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return domain.CertificateHandle{}, s.FailWith
	}
	s.nextCert++
	cert := domain.CertificateHandle{
		ID:           fmt.Sprintf("cert-%d", s.nextCert),
		AssessmentID: assessmentID,
		UserID:       userID,
		Percent:      result.Percent,
		IssuedAt:     time.Now(),
	}
	s.certificates = append(s.certificates, cert)
	return cert, nil
}

// Attempts returns a copy of all recorded attempts.
func (s *ResultStore) Attempts() []RecordedAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedAttempt(nil), s.attempts...)
}

// Certificates returns a copy of all issued certificates.
func (s *ResultStore) Certificates() []domain.CertificateHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CertificateHandle(nil), s.certificates...)
}
