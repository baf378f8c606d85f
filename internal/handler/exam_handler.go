package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/assess-backend/internal/engine"
	"github.com/campushub/assess-backend/internal/response"
	"github.com/campushub/assess-backend/internal/store"
)

// ExamHandler serves the exam catalog and stored attempts.
type ExamHandler struct {
	engine *engine.Engine
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(eng *engine.Engine) *ExamHandler {
	return &ExamHandler{engine: eng}
}

// ListExams godoc
// GET /api/v1/exams
// Lists catalog summaries without question content.
func (h *ExamHandler) ListExams(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"exams": h.engine.Catalog().Summaries()})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
// Returns one exam with its questions, stripped of correct answers.
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, ok := h.engine.Catalog().Get(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam.ForStudent()})
}

// ListAttempts godoc
// GET /api/v1/attempts[?course=...]
// Lists stored attempts: at most one per exam id ever submitted. With a
// course filter, returns the single attempt found through the course index.
func (h *ExamHandler) ListAttempts(c *gin.Context) {
	if course := c.Query("course"); course != "" {
		attempt, err := h.engine.AttemptByCourse(c.Request.Context(), course)
		if errors.Is(err, store.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoAttempt)
			return
		}
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"attempts": []any{attempt}})
		return
	}

	attempts, err := h.engine.AllAttempts(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/attempts/:exam_id
// Returns the latest stored attempt for an exam.
func (h *ExamHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.engine.LatestAttempt(c.Request.Context(), c.Param("exam_id"))
	if errors.Is(err, store.ErrNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNoAttempt)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}
