package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/assess-backend/internal/engine"
	"github.com/campushub/assess-backend/internal/middleware"
	"github.com/campushub/assess-backend/internal/model"
	"github.com/campushub/assess-backend/internal/response"
	"github.com/campushub/assess-backend/internal/validator"
)

// SessionHandler exposes the engine's session surface to the UI layer.
type SessionHandler struct {
	engine *engine.Engine
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(eng *engine.Engine) *SessionHandler {
	return &SessionHandler{engine: eng}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/session
// Starts a new session for the exam, owned by the caller's identity.
func (h *SessionHandler) StartSession(c *gin.Context) {
	snap, err := h.engine.StartSession(c.Param("exam_id"), middleware.GetIdentity(c).UserID)
	if err != nil {
		failEngine(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": snap})
}

// Retake godoc
// POST /api/v1/exams/:exam_id/retake
// Starts a fresh session after a completed or abandoned one, regardless
// of any stored attempt.
func (h *SessionHandler) Retake(c *gin.Context) {
	snap, err := h.engine.Retake(c.Param("exam_id"), middleware.GetIdentity(c).UserID)
	if err != nil {
		failEngine(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": snap})
}

// GetSession godoc
// GET /api/v1/session
// Returns the snapshot of the session in progress. With ?exam_id=..., the
// snapshot for that exam (NotStarted when none exists).
func (h *SessionHandler) GetSession(c *gin.Context) {
	if examID := c.Query("exam_id"); examID != "" {
		snap, err := h.engine.Snapshot(examID)
		if err != nil {
			failEngine(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"session": snap})
		return
	}

	snap, ok := h.engine.ActiveSnapshot()
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// RecordAnswer godoc
// PUT /api/v1/session/answer
// Records or clears (option=null) one answer on the active session.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.engine.RecordAnswer(req.QuestionID, req.Option); err != nil {
		failEngine(c, err)
		return
	}

	snap, _ := h.engine.ActiveSnapshot()
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Submit godoc
// POST /api/v1/session/submit
// Grades and completes the active session. force=true scores unanswered
// questions as incorrect; force=false is rejected while any remain.
func (h *SessionHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	outcome, err := h.engine.Submit(req.Force)
	if err != nil {
		failEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcome": outcome})
}

// Abandon godoc
// POST /api/v1/session/abandon
// Abandons the active session without grading. Confirmation happens in
// the UI before this call.
func (h *SessionHandler) Abandon(c *gin.Context) {
	if err := h.engine.Abandon(); err != nil {
		failEngine(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"abandoned": true})
}

// failEngine maps engine sentinels onto API error codes. Incomplete
// submission is a guarded rejection, not a server fault.
func failEngine(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, engine.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, engine.ErrSessionActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionInProgress)
	case errors.Is(err, engine.ErrNoActiveSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, engine.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, engine.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOption)
	case errors.Is(err, engine.ErrIncompleteSubmission):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrIncompleteSubmission)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
