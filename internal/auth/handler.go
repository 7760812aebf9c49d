package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/pkg/security"
)

// TokenRequest exchanges the admin API key for an access token
type TokenRequest struct {
	APIKey  string `json:"apiKey" binding:"required"`
	Subject string `json:"subject,omitempty"`
}

// TokenResponse carries a signed access token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresAt   int64  `json:"expiresAt"`
}

type Handler struct {
	tokens *security.TokenManager
	apiKey string
	logger *zap.Logger
}

func NewHandler(tokens *security.TokenManager, apiKey string, logger *zap.Logger) *Handler {
	return &Handler{tokens: tokens, apiKey: apiKey, logger: logger}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Token issues an admin access token for a valid API key
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey is required"})
		return
	}
	if !security.KeyMatches(req.APIKey, h.apiKey) {
		h.logger.Warn("Rejected admin token request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("key_fingerprint", security.HashHexSHA256(req.APIKey)[:12]))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "admin"
	}
	token, expiresAt, err := h.tokens.Issue(subject, security.RoleAdmin)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.logger.Info("Admin token issued", zap.String("subject", subject))
	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt.Unix()})
}
