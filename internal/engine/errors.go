package engine

import "errors"

// Validation errors: bad catalog content or an unknown exam id. These are
// programmer/content failures and are surfaced immediately.
var (
	ErrExamNotFound = errors.New("engine: exam not found in catalog")
	ErrNoQuestions  = errors.New("engine: exam has no questions")
)

// State errors: a transition was requested from a state that does not
// permit it. They indicate a caller/engine desynchronization and are
// surfaced, never retried.
var (
	ErrSessionActive   = errors.New("engine: a session is already in progress")
	ErrNoActiveSession = errors.New("engine: no session in progress")
)

// Answer guards for RecordAnswer.
var (
	ErrUnknownQuestion = errors.New("engine: question does not belong to the exam")
	ErrInvalidOption   = errors.New("engine: option is not one of the question's choices")
)

// ErrIncompleteSubmission rejects a manual submit while questions remain
// unanswered. It is a normal guarded rejection: the session stays
// InProgress and the caller surfaces it as a validation message.
var ErrIncompleteSubmission = errors.New("engine: unanswered questions remain")
