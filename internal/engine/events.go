package engine

// Outcome labels a graded submission.
type Outcome string

const (
	OutcomePassed Outcome = "PASSED"
	OutcomeFailed Outcome = "FAILED"
)

// OutcomeEvent is emitted once per submission, manual or forced. Unanswered
// questions are already counted as incorrect in the totals.
type OutcomeEvent struct {
	ExamID         string  `json:"exam_id"`
	Outcome        Outcome `json:"outcome"`
	Score          int     `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Forced         bool    `json:"forced"`
}

// EventSink receives the engine's abstract outcome events for a UI or
// observability layer to render. The engine has no opinion on presentation
// and never blocks on a sink call.
type EventSink interface {
	// ExamSubmitted fires at every InProgress → Completed transition.
	ExamSubmitted(ev OutcomeEvent)
	// TimeExpired fires alongside the outcome when the countdown forced
	// the submission.
	TimeExpired(examID string)
	// PersistenceFailure reports a failed attempt write. The completed
	// in-memory result is unaffected and the write is not retried.
	PersistenceFailure(examID string, err error)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ExamSubmitted(OutcomeEvent)       {}
func (NopSink) TimeExpired(string)               {}
func (NopSink) PersistenceFailure(string, error) {}
