package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/pkg/security"
)

// SubjectKey is the gin context key holding the authenticated subject
const SubjectKey = "auth.subject"

// RequireAdmin rejects requests without a valid admin bearer token
func RequireAdmin(tokens *security.TokenManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="report-portal"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err))
			c.Header("WWW-Authenticate", `Bearer realm="report-portal", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != security.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
