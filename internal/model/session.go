package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusAbandoned  SessionStatus = "ABANDONED"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// Session is one live attempt at an exam. It lives in memory only and is
// replaced wholesale on retake; it is never persisted, partially or
// otherwise. Answers holds exactly one entry per question for the whole
// session lifetime; a nil value means unanswered.
type Session struct {
	ID                   uuid.UUID
	ExamID               string
	UserID               string
	Status               SessionStatus
	Answers              map[string]*string
	TimeRemainingSeconds int
	StartedAt            time.Time
	FinishedAt           *time.Time

	// Frozen at the InProgress → Completed transition, zero before it.
	Score          int
	CorrectAnswers int
}

// NewSession builds an InProgress session for the exam owned by userID,
// with every question mapped to nil and the full duration on the clock.
func NewSession(exam *Exam, userID string) *Session {
	answers := make(map[string]*string, len(exam.Questions))
	for _, q := range exam.Questions {
		answers[q.ID] = nil
	}
	return &Session{
		ID:                   uuid.New(),
		ExamID:               exam.ID,
		UserID:               userID,
		Status:               SessionStatusInProgress,
		Answers:              answers,
		TimeRemainingSeconds: exam.DurationSeconds,
		StartedAt:            time.Now(),
	}
}

// Answered counts questions with a non-nil answer.
func (s *Session) Answered() int {
	n := 0
	for _, a := range s.Answers {
		if a != nil {
			n++
		}
	}
	return n
}

// SessionSnapshot is the read-only view of a session handed to the UI layer.
type SessionSnapshot struct {
	SessionID            uuid.UUID          `json:"session_id,omitempty"`
	ExamID               string             `json:"exam_id"`
	Status               SessionStatus      `json:"status"`
	Answers              map[string]*string `json:"answers,omitempty"`
	TimeRemainingSeconds int                `json:"time_remaining_seconds"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	FinishedAt           *time.Time         `json:"finished_at,omitempty"`
	Answered             int                `json:"answered"`
	TotalQuestions       int                `json:"total_questions"`
	Score                *int               `json:"score,omitempty"`
	CorrectAnswers       *int               `json:"correct_answers,omitempty"`
}

// RecordAnswerRequest is the payload for recording or clearing an answer.
// A null option clears the previous selection.
type RecordAnswerRequest struct {
	QuestionID string  `json:"question_id" binding:"required"`
	Option     *string `json:"option"`
}

// SubmitRequest is the payload for submitting the active session.
type SubmitRequest struct {
	Force bool `json:"force"`
}
