package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/middleware"
	"github.com/campushub/assess-backend/internal/response"
	"github.com/campushub/assess-backend/internal/validator"
)

// AuthHandler issues identity tokens. The engine runs single-user; tokens
// exist so a UI can namespace itself and so storage can be scoped per
// user when multi-user support lands.
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type guestSessionRequest struct {
	Name string `json:"name" binding:"omitempty,min=1,max=100"`
}

// GuestSession godoc
// POST /api/v1/auth/session
// Issues a bearer token for a guest identity.
func (h *AuthHandler) GuestSession(c *gin.Context) {
	var req guestSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	userID := "guest-" + uuid.NewString()
	token, err := middleware.IssueToken(h.cfg, userID, req.Name)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"token":   token,
		"user_id": userID,
	})
}
