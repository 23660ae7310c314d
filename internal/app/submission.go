package app

import (
	"context"
	"log"
	"time"

	"assessment-engine/internal/domain"
)

// submissionPipeline hands a computed Result to the durable result store. The
// attempt record is persisted unconditionally; a certificate/reward is issued
// only for passing results. Store failures are logged and swallowed: the
// examinee's outcome is never blocked by a downstream fault.
type submissionPipeline struct {
	store   ResultStore
	timeout time.Duration
}

func newSubmissionPipeline(store ResultStore, timeout time.Duration) *submissionPipeline {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &submissionPipeline{store: store, timeout: timeout}
}

// dispatch persists the result and, on pass, issues the reward. It is run on
// its own goroutine by the attempt; the returned state transition never waits
// on it.
func (p *submissionPipeline) dispatch(assessmentID, userID string, result domain.Result, answers []domain.AnswerEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.store.RecordAttempt(ctx, assessmentID, userID, result, answers); err != nil {
		log.Printf("record attempt failed for %s/%s: %v", assessmentID, userID, err)
	}
	if !result.Pass {
		return
	}
	cert, err := p.store.IssueReward(ctx, assessmentID, userID, result)
	if err != nil {
		log.Printf("reward issuance failed for %s/%s: %v", assessmentID, userID, err)
		return
	}
	log.Printf("certificate %s issued for %s/%s (%d%%)", cert.ID, assessmentID, userID, result.Percent)
}
