package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/internal/survey"
)

// MaxQuestions caps the discovery questions kept from one completion
const MaxQuestions = 6

const questionsPrompt = `You are a senior AI strategy consultant preparing a discovery call with a small business.
From the survey answers, write up to 6 short follow-up questions that would most improve a personalized AI
opportunities report. Prefer questions about volumes, repetitive tasks, tools and constraints.
Respond with JSON only: {"questions":[{"id":"q1","question":"...","type":"text|choice","options":["..."],"rationale":"..."}]}`

const reportPrompt = `You are a senior AI strategy consultant. Write a personalized "AI Opportunities" report for
the business described by the survey answers and discovery answers. Be concrete and practical, and use plain
language. Use **bold** for emphasis and "• " for bullet lists inside descriptions.
Respond with JSON only, exactly this shape:
{
  "executiveSummary": "string",
  "quickWins": [{"title": "string", "description": "string", "timeframe": "string"}],
  "recommendations": [{
    "title": "string",
    "description": "string",
    "pullQuote": "string",
    "statistic": {"value": "string", "description": "string"},
    "keyTakeaways": ["string"],
    "imagePrompt": "string"
  }],
  "competitiveAnalysis": "string",
  "nextSteps": ["string"],
  "sources": [{"title": "string", "url": "string"}]
}`

// GenerateQuestions asks the LLM for personalized discovery questions
func (c *Client) GenerateQuestions(ctx context.Context, answers *survey.Answers) ([]survey.Question, error) {
	user, err := describe(answers)
	if err != nil {
		return nil, err
	}
	content, err := c.complete(ctx, "questions", questionsPrompt, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []survey.Question `json:"questions"`
	}
	if err := json.Unmarshal(content, &parsed); err != nil {
		result := section.NewValidationResult()
		result.AddError("questions", "type", "Upstream response is not a questions object")
		return nil, result.Err()
	}

	questions := make([]survey.Question, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		if q.Type != survey.QuestionChoice || len(q.Options) == 0 {
			q.Type = survey.QuestionText
			q.Options = nil
		}
		q.ID = fmt.Sprintf("q%d", len(questions)+1)
		questions = append(questions, q)
		if len(questions) == MaxQuestions {
			break
		}
	}
	if len(questions) == 0 {
		result := section.NewValidationResult()
		result.AddError("questions", "required", "Upstream response contained no questions")
		return nil, result.Err()
	}
	return questions, nil
}

// GenerateReport asks the LLM for the structured opportunities report and
// checks its shape
func (c *Client) GenerateReport(ctx context.Context, answers *survey.Answers) (*section.Opportunities, error) {
	user, err := describe(answers)
	if err != nil {
		return nil, err
	}
	content, err := c.complete(ctx, "report", reportPrompt, user)
	if err != nil {
		return nil, err
	}

	report, err := section.ParseOpportunities(content)
	if err != nil {
		c.logger.Warn("LLM report failed shape check",
			zap.String("business", answers.BusinessName),
			zap.Error(err))
		return nil, err
	}
	return report, nil
}

func describe(answers *survey.Answers) (string, error) {
	data, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal answers: %w", err)
	}
	return "Survey answers:\n" + string(data), nil
}
