package domain

import "time"

// AttemptState enumerates the lifecycle of an assessment attempt.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "not_started"
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitting AttemptState = "submitting"
	AttemptCompleted  AttemptState = "completed"
)

// SectionConfig declares one named block of questions within an assessment.
type SectionConfig struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	QuestionCount int    `json:"questionCount"`
}

// AssessmentConfig is the immutable description of an assessment: its time
// limit, pass threshold, declared sections, and the reward granted on pass.
type AssessmentConfig struct {
	ID               string          `json:"id"`
	TimeLimitSeconds int             `json:"timeLimitSeconds"`
	PassingScore     int             `json:"passingScore"` // percentage, inclusive boundary
	Sections         []SectionConfig `json:"sections"`
	RewardPoints     int             `json:"rewardPoints"`
}

// Question models a single-choice question. Answer holds the correct option
// value, so reordering Options never affects scoring.
type Question struct {
	ID          string   `json:"id"`
	SectionID   string   `json:"sectionId"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Position    int      `json:"position"` // original sort position, stable tie-break
}

// AnswerEntry is one slot of the answer ledger. Selected is nil while the
// question is unanswered.
type AnswerEntry struct {
	QuestionID string  `json:"questionId"`
	Selected   *string `json:"selected"`
	Flagged    bool    `json:"flagged"`
}

// Section is a derived, contiguous range of the presented question sequence.
type Section struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Start int    `json:"start"`
	Count int    `json:"count"`
}

// AttemptSnapshot captures everything needed to resume an interrupted attempt.
// QuestionOrder preserves the shuffled sequence so a recovered attempt presents
// questions in the order the examinee last saw them.
type AttemptSnapshot struct {
	Answers          []AnswerEntry `json:"answers"`
	Position         int           `json:"position"`
	RemainingSeconds int           `json:"remainingSeconds"`
	QuestionOrder    []string      `json:"questionOrder"`
	StartedAt        time.Time     `json:"startedAt"`
	SavedAt          time.Time     `json:"savedAt"`
}

// SectionScore is the per-section slice of a Result.
type SectionScore struct {
	SectionID string `json:"sectionId"`
	Label     string `json:"label"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
}

// Result is the terminal outcome of an attempt, immutable once computed.
type Result struct {
	Score          int            `json:"score"`
	Total          int            `json:"total"`
	Percent        int            `json:"percent"`
	Pass           bool           `json:"pass"`
	ElapsedSeconds int            `json:"elapsedSeconds"`
	Sections       []SectionScore `json:"sections"`
}

// CertificateHandle references a certificate issued for a passing attempt.
type CertificateHandle struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	UserID       string    `json:"userId"`
	Percent      int       `json:"percent"`
	RewardPoints int       `json:"rewardPoints"`
	IssuedAt     time.Time `json:"issuedAt"`
}
