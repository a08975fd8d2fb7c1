package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carlosapgomes/triage-automation/pkg/auth"
)

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

// handleLogin authenticates email/password and issues an opaque bearer
// token, mirroring auth_service.py's Authenticate outcomes: the two
// non-success outcomes (invalid_credentials, inactive_user) are never
// distinguished from each other in the HTTP response (both map to 401),
// matching the original's refusal to leak
// whether an email is registered.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.authSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if result.Outcome != auth.OutcomeSuccess {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, rec, err := s.authSvc.IssueToken(c.Request.Context(), s.tokens, result.User.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		Role:      string(result.User.Role),
		ExpiresAt: rec.ExpiresAt.Format(time.RFC3339),
	})
}
