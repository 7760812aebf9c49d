package apierror

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

var (
	// ErrNotFound maps to 404
	ErrNotFound = errors.New("not found")
	// ErrBusy maps to 503 with Retry-After
	ErrBusy = errors.New("server busy")
)

// RetryAfterSeconds is advertised on retryable failures
const RetryAfterSeconds = 30

// Status returns the HTTP status for err
func Status(err error) int {
	var (
		ve *section.ValidationError
		ut *section.UpstreamTimeout
		re *section.ResourceError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ut):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy), errors.As(err, &re):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Respond writes err as a JSON error body. Validation failures carry the
// field list; 5xx details are logged, not returned.
func Respond(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := Status(err)

	var ve *section.ValidationError
	if errors.As(err, &ve) {
		c.JSON(status, gin.H{"error": "validation failed", "fields": ve.Errors})
		return
	}

	if status == http.StatusGatewayTimeout || errors.Is(err, ErrBusy) {
		c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.Int("status", status), zap.String("path", c.FullPath()))
	}

	body := gin.H{"error": msg}
	if status < http.StatusInternalServerError {
		body["error"] = err.Error()
	}
	if status == http.StatusGatewayTimeout || errors.Is(err, ErrBusy) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
