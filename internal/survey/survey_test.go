package survey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

func validAnswers() Answers {
	return Answers{
		BusinessName: "  Acme Bakery ",
		ContactName:  "Sam Rivera",
		Email:        "Sam@Acme.example",
		Industry:     "Food & Beverage",
		CompanySize:  CompanySizeSmall,
		Goals:        []string{"Reduce waste", "Grow catering orders"},
		Challenges:   []string{"Manual ordering"},
		Responses:    map[string]string{"peakHours": "6am-10am"},
	}
}

func fields(err error) map[string]string {
	var ve *section.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve.Errors))
	for _, fe := range ve.Errors {
		out[fe.Field] = fe.Code
	}
	return out
}

func TestValidate_Normalizes(t *testing.T) {
	a := validAnswers()
	require.NoError(t, Validate(&a))
	assert.Equal(t, "Acme Bakery", a.BusinessName)
	assert.Equal(t, "sam@acme.example", a.Email)
}

func TestValidate_ReportsJSONPaths(t *testing.T) {
	a := validAnswers()
	a.BusinessName = " "
	a.Email = "not-an-email"
	a.CompanySize = "huge"
	a.Goals = []string{"ok", ""}
	a.Website = "::nope"

	got := fields(Validate(&a))
	assert.Equal(t, map[string]string{
		"businessName": "required",
		"email":        "email",
		"companySize":  "oneof",
		"goals[1]":     "required",
		"website":      "url",
	}, got)
}

func TestValidate_MissingGoals(t *testing.T) {
	a := validAnswers()
	a.Goals = nil
	assert.Equal(t, "required", fields(Validate(&a))["goals"])

	a.Goals = []string{}
	assert.Equal(t, "min", fields(Validate(&a))["goals"])
}

func TestValidate_Nil(t *testing.T) {
	assert.True(t, section.IsValidation(Validate(nil)))
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateQuestions(ctx context.Context, answers *Answers) ([]Question, error) {
	args := m.Called(ctx, answers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Question), args.Error(1)
}

func newRouter(gen QuestionGenerator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(gen, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/survey/questions", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_GenerateQuestions(t *testing.T) {
	gen := new(mockGenerator)
	questions := []Question{{ID: "q1", Question: "How many orders do you take by phone?", Type: QuestionText}}
	gen.On("GenerateQuestions", mock.Anything, mock.MatchedBy(func(a *Answers) bool {
		return a.BusinessName == "Acme Bakery"
	})).Return(questions, nil)

	w := post(t, newRouter(gen), validAnswers())

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Questions []Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, questions, resp.Questions)
	gen.AssertExpectations(t)
}

func TestHandler_InvalidAnswers(t *testing.T) {
	gen := new(mockGenerator)
	a := validAnswers()
	a.Email = ""

	w := post(t, newRouter(gen), a)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"email"`)
	gen.AssertNotCalled(t, "GenerateQuestions", mock.Anything, mock.Anything)
}

func TestHandler_MalformedBody(t *testing.T) {
	w := post(t, newRouter(new(mockGenerator)), "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_UpstreamTimeout(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateQuestions", mock.Anything, mock.Anything).
		Return(nil, &section.UpstreamTimeout{Service: "llm", Err: context.DeadlineExceeded})

	w := post(t, newRouter(gen), validAnswers())

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}
