package survey

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
)

// QuestionGenerator proposes discovery questions from survey answers
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, answers *Answers) ([]Question, error)
}

// Handler handles HTTP requests for the questionnaire
type Handler struct {
	questions QuestionGenerator
	logger    *zap.Logger
}

// NewHandler creates a new survey handler
func NewHandler(questions QuestionGenerator, logger *zap.Logger) *Handler {
	return &Handler{questions: questions, logger: logger}
}

// RegisterRoutes registers survey routes behind the given middleware
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	survey := router.Group("/survey", middleware...)
	{
		survey.POST("/questions", h.generateQuestions)
	}
}

// generateQuestions handles POST /api/v1/survey/questions
func (h *Handler) generateQuestions(c *gin.Context) {
	var answers Answers
	if err := c.ShouldBindJSON(&answers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := Validate(&answers); err != nil {
		apierror.Respond(c, h.logger, "invalid survey answers", err)
		return
	}

	questions, err := h.questions.GenerateQuestions(c.Request.Context(), &answers)
	if err != nil {
		apierror.Respond(c, h.logger, "failed to generate questions", err)
		return
	}

	h.logger.Info("Discovery questions generated",
		zap.String("business", answers.BusinessName),
		zap.Int("count", len(questions)))

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}
