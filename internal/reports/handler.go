package reports

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

// DefaultMaxBodyBytes bounds request bodies on the report endpoints
const DefaultMaxBodyBytes = 2 << 20

// Handler handles HTTP requests for report operations
type Handler struct {
	service      *Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes groups the middleware applied to each class of report route
type Routes struct {
	// Render guards the synchronous render endpoints
	Render []gin.HandlerFunc
	// Generate guards asynchronous report creation
	Generate []gin.HandlerFunc
	// Admin guards the stored report endpoints
	Admin []gin.HandlerFunc
}

func chain(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append([]gin.HandlerFunc(nil), middleware...), h)
}

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, routes Routes) {
	reports := router.Group("/reports")
	{
		// Rendering endpoints
		reports.POST("/pdf", chain(routes.Render, h.renderPDF)...)
		reports.POST("/pdf/base64", chain(routes.Render, h.renderPDFBase64)...)
		reports.POST("/html", chain(routes.Render, h.renderHTML)...)

		// Generation endpoints
		reports.POST("", chain(routes.Generate, h.startReport)...)
		reports.GET("/jobs/:id", h.getJob)

		// Stored reports
		reports.GET("", chain(routes.Admin, h.listReports)...)
		reports.GET("/:id", chain(routes.Admin, h.getReport)...)
	}
}

// =====================================================
// Rendering Endpoints
// =====================================================

// renderPDF handles POST /api/v1/reports/pdf
func (h *Handler) renderPDF(c *gin.Context) {
	req, ok := h.bindRender(c)
	if !ok {
		return
	}

	pdf, err := h.service.RenderPDF(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to render report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, req.Filename()))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// renderPDFBase64 handles POST /api/v1/reports/pdf/base64
func (h *Handler) renderPDFBase64(c *gin.Context) {
	req, ok := h.bindRender(c)
	if !ok {
		return
	}

	pdf, err := h.service.RenderPDF(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to render report", err)
		return
	}

	c.JSON(http.StatusOK, Base64PDFResponse{
		Filename:    req.Filename(),
		ContentType: "application/pdf",
		Size:        len(pdf),
		PDF:         base64.StdEncoding.EncodeToString(pdf),
	})
}

// renderHTML handles POST /api/v1/reports/html
func (h *Handler) renderHTML(c *gin.Context) {
	req, ok := h.bindRender(c)
	if !ok {
		return
	}

	html, err := h.service.RenderHTML(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to render report", err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) bindRender(c *gin.Context) (*RenderRequest, bool) {
	body, ok := h.readBody(c)
	if !ok {
		return nil, false
	}

	var req RenderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if section.IsValidation(err) {
			apierror.Respond(c, h.logger, "invalid render request", err)
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		}
		return nil, false
	}
	return &req, true
}

func (h *Handler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		}
		return nil, false
	}
	return body, true
}

// =====================================================
// Generation Endpoints
// =====================================================

// startReport handles POST /api/v1/reports
func (h *Handler) startReport(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	var req ReportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	job, err := h.service.StartReport(c.Request.Context(), &req)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to start report", err)
		return
	}

	c.Header("Location", "/api/v1/reports/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// getJob handles GET /api/v1/reports/jobs/:id
func (h *Handler) getJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Param("id"))
	if err != nil {
		apierror.Respond(c, h.logger, "failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// =====================================================
// Stored Report Endpoints
// =====================================================

// listReports handles GET /api/v1/reports
func (h *Handler) listReports(c *gin.Context) {
	filters := &ReportFilters{
		Page:     h.getIntParam(c, "page", 1),
		PageSize: h.getIntParam(c, "page_size", 20),
	}

	// Parse optional filters
	if email := c.Query("email"); email != "" {
		filters.Email = &email
	}
	if industry := c.Query("industry"); industry != "" {
		filters.Industry = &industry
	}
	if search := c.Query("search"); search != "" {
		filters.SearchTerm = &search
	}
	if after, ok := h.getDateParam(c, "created_after"); ok {
		filters.CreatedAfter = after
	}
	if before, ok := h.getDateParam(c, "created_before"); ok {
		filters.CreatedBefore = before
	}

	response, err := h.service.ListReports(c.Request.Context(), filters)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to list reports", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// getReport handles GET /api/v1/reports/:id
func (h *Handler) getReport(c *gin.Context) {
	report, err := h.service.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, h.logger, "failed to get report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// =====================================================
// Helper Functions
// =====================================================

func (h *Handler) getIntParam(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (h *Handler) getDateParam(c *gin.Context, key string) (*time.Time, bool) {
	value := c.Query(key)
	if value == "" {
		return nil, false
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, false
	}
	return &t, true
}
