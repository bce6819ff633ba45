package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/types"
	"github.com/gin-gonic/gin"
)

type TokenRequest struct {
	APIKey string    `json:"api_key" binding:"required"`
	Client string    `json:"client"`
	Role   auth.Role `json:"role"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// POST /api/v1/auth/token
func (s *Server) issueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeAuthBadRequest, "Invalid request body", err.Error()))
		return
	}

	client := req.Client
	if client == "" {
		client = c.ClientIP()
	}

	token, expires, err := s.authService.IssueToken(req.APIKey, client, req.Role)
	switch {
	case errors.Is(err, auth.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeAuthBadRequest, "Unknown role", string(req.Role)))
		return
	case errors.Is(err, auth.ErrNoAPIKey):
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse(types.CodeTokensDisabled, "Token issuing disabled", nil))
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse(types.CodeUnauthorized, "Invalid credentials", nil))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
	})
}
