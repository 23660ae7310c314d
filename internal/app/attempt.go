package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-engine/internal/domain"
)

// Attempt is one examinee's run through an assessment. It owns the answer
// ledger, the current position, and the countdown; all mutation goes through
// its methods under one mutex. Timer callbacks re-check state before acting so
// a tick can never touch a torn-down attempt.
type Attempt struct {
	cfg      domain.AssessmentConfig
	userID   string
	recovery *recoveryManager
	pipeline *submissionPipeline
	now      func() time.Time

	tickInterval     time.Duration
	autosaveInterval time.Duration

	mu          sync.Mutex
	state       domain.AttemptState
	review      bool
	questions   []domain.Question
	sections    []domain.Section
	ledger      []domain.AnswerEntry
	position    int
	remaining   int
	startedAt   time.Time
	result      *domain.Result
	timersDone  chan struct{}
	persistDone chan struct{}
	subscribers map[chan AttemptView]struct{}
}

// QuestionView is the examinee-facing shape of a question. Answer and
// Explanation are populated only in review mode.
type QuestionView struct {
	ID          string   `json:"id"`
	SectionID   string   `json:"sectionId"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// AttemptView is a read-only snapshot of attempt state handed to callers and
// pushed to subscribers. UI binding is the caller's concern.
type AttemptView struct {
	AssessmentID     string              `json:"assessmentId"`
	UserID           string              `json:"userId"`
	State            domain.AttemptState `json:"state"`
	Review           bool                `json:"review"`
	Position         int                 `json:"position"`
	Total            int                 `json:"total"`
	Question         *QuestionView       `json:"question,omitempty"`
	Entry            *domain.AnswerEntry `json:"entry,omitempty"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Sections         []domain.Section    `json:"sections"`
	Result           *domain.Result      `json:"result,omitempty"`
}

func newAttempt(cfg domain.AssessmentConfig, userID string, recovery *recoveryManager, pipeline *submissionPipeline, now func() time.Time, tick, autosave time.Duration) *Attempt {
	return &Attempt{
		cfg:              cfg,
		userID:           userID,
		recovery:         recovery,
		pipeline:         pipeline,
		now:              now,
		tickInterval:     tick,
		autosaveInterval: autosave,
		state:            domain.AttemptNotStarted,
		persistDone:      make(chan struct{}),
		subscribers:      make(map[chan AttemptView]struct{}),
	}
}

// start performs recovery-or-fresh initialization, computes the question
// sequence and section index, and starts the countdown and autosave timers.
func (a *Attempt) start(ctx context.Context, questions []domain.Question, rnd *rand.Rand) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.AttemptNotStarted {
		return domain.ErrAttemptActive
	}

	snap := a.recovery.load(ctx, a.cfg.ID, a.userID)
	var prior []string
	if snap != nil {
		prior = snap.QuestionOrder
	}
	sequence, err := buildSequence(a.cfg, questions, prior, rnd)
	if err != nil {
		return err
	}
	a.questions = sequence
	a.sections = buildSectionIndex(sequence, a.cfg)

	a.ledger = make([]domain.AnswerEntry, len(sequence))
	for i, q := range sequence {
		a.ledger[i] = domain.AnswerEntry{QuestionID: q.ID}
	}

	if snap != nil {
		saved := make(map[string]domain.AnswerEntry, len(snap.Answers))
		for _, entry := range snap.Answers {
			saved[entry.QuestionID] = entry
		}
		for i := range a.ledger {
			if entry, ok := saved[a.ledger[i].QuestionID]; ok {
				a.ledger[i].Selected = entry.Selected
				a.ledger[i].Flagged = entry.Flagged
			}
		}
		a.position = clamp(snap.Position, 0, len(sequence)-1)
		a.remaining = clamp(snap.RemainingSeconds, 0, a.cfg.TimeLimitSeconds)
		a.startedAt = snap.StartedAt
	} else {
		a.position = 0
		a.remaining = a.cfg.TimeLimitSeconds
		a.startedAt = a.now()
	}

	a.state = domain.AttemptInProgress
	a.timersDone = make(chan struct{})
	go a.runTimers(a.timersDone)

	// Write an initial snapshot so even a just-started attempt is recoverable.
	a.recovery.save(ctx, a.cfg.ID, a.userID, a.snapshotLocked())
	return nil
}

func (a *Attempt) runTimers(done chan struct{}) {
	countdown := time.NewTicker(a.tickInterval)
	defer countdown.Stop()
	autosave := time.NewTicker(a.autosaveInterval)
	defer autosave.Stop()

	for {
		select {
		case <-done:
			return
		case <-countdown.C:
			a.tick()
		case <-autosave.C:
			a.FlushSnapshot()
		}
	}
}

// tick decrements remaining time by one second. At zero it triggers the
// automatic submission, exactly once; the submit path stops the ticker.
func (a *Attempt) tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.AttemptInProgress || a.review {
		return
	}
	a.remaining--
	if a.remaining <= 0 {
		a.remaining = 0
		a.submitLocked()
		return
	}
	a.broadcastLocked()
}

// FlushSnapshot synchronously saves the current in-progress state. The host
// may call it right before terminating the process; it is cheap and a no-op
// once the attempt has left InProgress.
func (a *Attempt) FlushSnapshot() {
	a.mu.Lock()
	if a.state != domain.AttemptInProgress {
		a.mu.Unlock()
		return
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.recovery.save(context.Background(), a.cfg.ID, a.userID, snap)
}

func (a *Attempt) snapshotLocked() domain.AttemptSnapshot {
	order := make([]string, len(a.questions))
	for i, q := range a.questions {
		order[i] = q.ID
	}
	return domain.AttemptSnapshot{
		Answers:          append([]domain.AnswerEntry(nil), a.ledger...),
		Position:         a.position,
		RemainingSeconds: a.remaining,
		QuestionOrder:    order,
		StartedAt:        a.startedAt,
	}
}

// SetAnswer writes the selection into the ledger entry at the current
// position. A no-op unless the attempt is in progress; review mode never
// mutates answers.
func (a *Attempt) SetAnswer(selected string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.AttemptInProgress || a.review {
		return
	}
	value := selected
	a.ledger[a.position].Selected = &value
	a.broadcastLocked()
}

// ToggleFlag inverts the flagged marker at the current position. Flags are
// read-only in review.
func (a *Attempt) ToggleFlag() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.AttemptInProgress || a.review {
		return
	}
	a.ledger[a.position].Flagged = !a.ledger[a.position].Flagged
	a.broadcastLocked()
}

// Next advances to the following question. No-op at the last index: position
// never wraps.
func (a *Attempt) Next() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.navigableLocked() || a.position+1 >= len(a.questions) {
		return
	}
	a.position++
	a.broadcastLocked()
}

// Previous moves back one question. No-op at index zero.
func (a *Attempt) Previous() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.navigableLocked() || a.position == 0 {
		return
	}
	a.position--
	a.broadcastLocked()
}

// GoTo jumps to an absolute index. Out-of-range indexes are ignored.
func (a *Attempt) GoTo(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.navigableLocked() || index < 0 || index >= len(a.questions) || index == a.position {
		return
	}
	a.position = index
	a.broadcastLocked()
}

func (a *Attempt) navigableLocked() bool {
	if a.state == domain.AttemptInProgress {
		return true
	}
	return a.state == domain.AttemptCompleted && a.review
}

// Submit finishes the attempt: stop timers, score, invalidate the recovery
// snapshot, then hand the result to the submission pipeline. Safe to call
// concurrently with the tick-triggered auto-submit; only the first wins and a
// repeat returns the already-computed result.
func (a *Attempt) Submit() (domain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitLocked()
}

func (a *Attempt) submitLocked() (domain.Result, error) {
	switch a.state {
	case domain.AttemptNotStarted:
		return domain.Result{}, domain.ErrNotStarted
	case domain.AttemptSubmitting, domain.AttemptCompleted:
		if a.result != nil {
			return *a.result, nil
		}
		return domain.Result{}, domain.ErrAlreadySubmitted
	}

	a.state = domain.AttemptSubmitting
	a.stopTimersLocked()

	result := scoreAttempt(a.cfg, a.questions, a.ledger, a.sections, a.startedAt, a.now())
	a.result = &result

	// Invalidate before any durable write so recovery data cannot resurrect a
	// completed attempt, whatever happens downstream.
	a.recovery.invalidate(context.Background(), a.cfg.ID, a.userID)

	a.state = domain.AttemptCompleted

	answers := append([]domain.AnswerEntry(nil), a.ledger...)
	go func() {
		defer close(a.persistDone)
		a.pipeline.dispatch(a.cfg.ID, a.userID, result, answers)
	}()

	a.broadcastLocked()
	return result, nil
}

// Persisted is closed once the submission pipeline has finished its durable
// writes. The result itself never waits on this.
func (a *Attempt) Persisted() <-chan struct{} {
	return a.persistDone
}

// EnterReview switches a completed attempt into review mode: navigation stays
// available, answers and flags become read-only, and correct answers show up
// in views.
func (a *Attempt) EnterReview() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != domain.AttemptCompleted {
		return domain.ErrNotCompleted
	}
	if a.review {
		return nil
	}
	a.review = true
	a.position = 0
	a.broadcastLocked()
	return nil
}

// ExitReview leaves review mode. No-op when not reviewing.
func (a *Attempt) ExitReview() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.review {
		return
	}
	a.review = false
	a.broadcastLocked()
}

// Result returns the computed result, or nil before completion.
func (a *Attempt) Result() *domain.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return nil
	}
	result := *a.result
	return &result
}

// State reports the current lifecycle state.
func (a *Attempt) State() domain.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close tears the attempt down: timers are stopped, subscribers are released,
// and an in-progress attempt gets one final best-effort snapshot. Idempotent.
func (a *Attempt) Close() {
	a.mu.Lock()
	a.stopTimersLocked()
	var snap *domain.AttemptSnapshot
	if a.state == domain.AttemptInProgress {
		s := a.snapshotLocked()
		snap = &s
	}
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
	a.mu.Unlock()

	if snap != nil {
		a.recovery.save(context.Background(), a.cfg.ID, a.userID, *snap)
	}
}

// stopTimersLocked is idempotent; stopping an already-stopped countdown is a
// no-op, never an error.
func (a *Attempt) stopTimersLocked() {
	if a.timersDone != nil {
		close(a.timersDone)
		a.timersDone = nil
	}
}

// Subscribe returns a channel receiving view snapshots on every state change.
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan AttemptView, func()) {
	ch := make(chan AttemptView, 8)

	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	// Seed the channel while still holding the lock. The fresh buffer always
	// has room, and a concurrent Close cannot slip in and close ch first.
	ch <- a.viewLocked()
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

// View returns a read-only snapshot of the attempt.
func (a *Attempt) View() AttemptView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *Attempt) broadcastLocked() {
	view := a.viewLocked()
	for ch := range a.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the stale update so a slow consumer never blocks the attempt.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

func (a *Attempt) viewLocked() AttemptView {
	view := AttemptView{
		AssessmentID:     a.cfg.ID,
		UserID:           a.userID,
		State:            a.state,
		Review:           a.review,
		Position:         a.position,
		Total:            len(a.questions),
		RemainingSeconds: a.remaining,
		Sections:         append([]domain.Section(nil), a.sections...),
	}
	if a.result != nil {
		result := *a.result
		view.Result = &result
	}
	if a.state == domain.AttemptNotStarted || len(a.questions) == 0 {
		return view
	}

	q := a.questions[a.position]
	qv := &QuestionView{
		ID:        q.ID,
		SectionID: q.SectionID,
		Prompt:    q.Prompt,
		Options:   append([]string(nil), q.Options...),
	}
	if a.review {
		qv.Answer = q.Answer
		qv.Explanation = q.Explanation
	}
	view.Question = qv

	entry := a.ledger[a.position]
	view.Entry = &entry
	return view
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
