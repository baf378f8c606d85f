package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrExamNotFound         ErrCode = "EXAM_NOT_FOUND"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrSessionInProgress    ErrCode = "SESSION_IN_PROGRESS"
	ErrNoActiveSession      ErrCode = "NO_ACTIVE_SESSION"
	ErrUnknownQuestion      ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidOption        ErrCode = "INVALID_OPTION"
	ErrIncompleteSubmission ErrCode = "INCOMPLETE_SUBMISSION"
	ErrNoAttempt            ErrCode = "NO_ATTEMPT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrExamNotFound:
		return "No exam with that id exists in the catalog."
	case ErrNoQuestions:
		return "This exam has no questions and cannot be taken."
	case ErrSessionInProgress:
		return "Another exam session is already in progress."
	case ErrNoActiveSession:
		return "There is no exam session in progress."
	case ErrUnknownQuestion:
		return "That question does not belong to the current exam."
	case ErrInvalidOption:
		return "The selected option is not one of the question's choices."
	case ErrIncompleteSubmission:
		return "Please answer all questions before submitting."
	case ErrNoAttempt:
		return "No attempt has been recorded for this exam."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
