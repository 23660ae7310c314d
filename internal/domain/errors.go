package domain

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment content could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrNoQuestions is returned when the content store yields an empty question set.
	ErrNoQuestions = errors.New("assessment has no questions")
	// ErrAttemptActive is returned when starting an attempt that is already running.
	ErrAttemptActive = errors.New("attempt already in progress")
	// ErrNotStarted is returned for operations that require a started attempt.
	ErrNotStarted = errors.New("attempt not started")
	// ErrAlreadySubmitted is returned when submission races have already settled.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrNotCompleted is returned when review mode is requested before completion.
	ErrNotCompleted = errors.New("attempt not completed")
)
