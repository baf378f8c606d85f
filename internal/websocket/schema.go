package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionSubmit  Action = "submit"
	ActionAbandon Action = "abandon"
	ActionState   Action = "state"
	ActionPing    Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records (or, with a null option, clears) one answer.
type AnswerRequest struct {
	Action     Action  `json:"action"`
	QuestionID string  `json:"question_id"`
	Option     *string `json:"option"`
}

// SubmitRequest finishes and grades the active session.
type SubmitRequest struct {
	Action Action `json:"action"`
	Force  bool   `json:"force"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError              Event = "error"
	EventState              Event = "state"
	EventOutcome            Event = "outcome"
	EventTimeExpired        Event = "time_expired"
	EventPersistenceFailure Event = "persistence_failure"
	EventPong               Event = "pong"
)

// StateResponse carries the current session snapshot.
type StateResponse struct {
	Event    Event `json:"event"`
	Snapshot any   `json:"snapshot"`
}

// OutcomeMessage broadcasts a graded submission.
type OutcomeMessage struct {
	Event          Event  `json:"event"`
	ExamID         string `json:"exam_id"`
	Outcome        string `json:"outcome"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	TotalQuestions int    `json:"total_questions"`
	Forced         bool   `json:"forced"`
}

// TimeExpiredMessage signals that the countdown forced a submission.
type TimeExpiredMessage struct {
	Event  Event  `json:"event"`
	ExamID string `json:"exam_id"`
}

// PersistenceFailureMessage reports that an attempt write failed; the
// in-memory result is still valid for this session.
type PersistenceFailureMessage struct {
	Event  Event  `json:"event"`
	ExamID string `json:"exam_id"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
