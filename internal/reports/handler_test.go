package reports

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
	"ai-opportunities/report-portal/report-portal-backend/internal/delivery"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/jobs"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/internal/survey"
	"ai-opportunities/report-portal/report-portal-backend/pkg/storage"
)

// =====================================================
// Mocks
// =====================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateReport(ctx context.Context, report *Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *mockRepository) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Report), args.Error(1)
}

func (m *mockRepository) UpdateReportDelivery(ctx context.Context, id uuid.UUID, d Delivery) error {
	return m.Called(ctx, id, d).Error(0)
}

func (m *mockRepository) ListReports(ctx context.Context, filters *ReportFilters) ([]*ReportSummary, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ReportSummary), args.Int(1), args.Error(2)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateReport(ctx context.Context, answers *survey.Answers) (*section.Opportunities, error) {
	args := m.Called(ctx, answers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*section.Opportunities), args.Error(1)
}

type mockImages struct {
	mock.Mock
}

func (m *mockImages) GenerateAll(ctx context.Context, prompts map[string]string) map[string]string {
	return m.Called(ctx, prompts).Get(0).(map[string]string)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendReport(ctx context.Context, email delivery.ReportEmail) error {
	return m.Called(ctx, email).Error(0)
}

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) PushLead(ctx context.Context, lead delivery.Lead) error {
	return m.Called(ctx, lead).Error(0)
}

// =====================================================
// Fixtures
// =====================================================

func opportunities() *section.Opportunities {
	return &section.Opportunities{
		ExecutiveSummary: "Acme can save **20 hours** a week with AI.",
		QuickWins:        []section.QuickWin{{Title: "Chat triage", Description: "Answer FAQs automatically."}},
		Recommendations: []section.Recommendation{{
			Title:        "Demand Forecasting",
			Description:  "Predict how much bread to bake each morning.",
			Statistic:    &section.Statistic{Value: "287%", Description: "Average ROI"},
			KeyTakeaways: []string{"Less waste"},
		}},
		NextSteps: []string{"Book a call"},
	}
}

func validAnswers() survey.Answers {
	return survey.Answers{
		BusinessName: "Acme Bakery",
		ContactName:  "Sam",
		Email:        "sam@acme.example",
		Industry:     "Food & Beverage",
		CompanySize:  survey.CompanySizeSmall,
		Goals:        []string{"Reduce waste"},
	}
}

type fixture struct {
	router    *gin.Engine
	service   *Service
	repo      *mockRepository
	generator *mockGenerator
	images    *mockImages
	mailer    *mockMailer
	crm       *mockCRM
	store     *jobs.Store
	storage   *storage.MemoryS3Client
}

func newFixture(t *testing.T, maxBody int64) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := render.DefaultOptions()
	opts.Compress = false
	logger := zap.NewNop()

	f := &fixture{
		repo:      new(mockRepository),
		generator: new(mockGenerator),
		images:    new(mockImages),
		mailer:    new(mockMailer),
		crm:       new(mockCRM),
		store:     jobs.NewStore(time.Hour, logger),
		storage:   storage.NewMemoryS3Client(),
	}
	worker := jobs.NewWorker(f.store, jobs.WorkerConfig{MaxConcurrent: 1, QueueSize: 4, JobTimeout: 10 * time.Second}, logger)
	t.Cleanup(func() { _ = worker.Shutdown(context.Background()) })

	f.service = NewService(Dependencies{
		Assembler:  render.NewAssembler(opts, nil, nil, logger),
		Repository: f.repo,
		Reports:    f.generator,
		Images:     f.images,
		Mailer:     f.mailer,
		CRM:        f.crm,
		Archiver:   storage.NewArchiver(f.storage, "leads", "reports", time.Hour),
		Jobs:       worker,
		JobStore:   f.store,
	}, logger)

	admin := func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer admin" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}

	f.router = gin.New()
	NewHandler(f.service, logger, maxBody).RegisterRoutes(f.router.Group("/api/v1"), Routes{
		Admin: []gin.HandlerFunc{admin},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const renderBody = `{
	"businessName": "Acme Bakery",
	"reportDate": "2026-03-14T09:00:00Z",
	"sections": [
		{"title": "Executive Summary", "mainContent": "**Intro**\nHello world.\n\n• one\n• two"},
		{"title": "Demand Forecasting", "mainContent": "Bake what sells.", "statistic": {"value": "287%", "description": "Average ROI"}}
	]
}`

func fieldNames(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp struct {
		Fields []section.FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	names := make([]string, 0, len(resp.Fields))
	for _, fe := range resp.Fields {
		names = append(names, fe.Field)
	}
	return names
}

// =====================================================
// Rendering
// =====================================================

func TestRenderPDF(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/v1/reports/pdf", renderBody)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="acme-bakery-ai-opportunities.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestRenderPDFBase64(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/v1/reports/pdf/base64", renderBody)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp Base64PDFResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme-bakery-ai-opportunities.pdf", resp.Filename)
	assert.Equal(t, "application/pdf", resp.ContentType)

	pdf, err := base64.StdEncoding.DecodeString(resp.PDF)
	require.NoError(t, err)
	assert.Len(t, pdf, resp.Size)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestRenderHTML(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/v1/reports/html", renderBody)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	var titles []string
	doc.Find("section.report-section h2").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, s.Text())
	})
	assert.Equal(t, []string{"Executive Summary", "Demand Forecasting"}, titles)
	assert.Equal(t, "287%", doc.Find(".statistic .value").Text())
}

func TestRender_ValidationErrors(t *testing.T) {
	f := newFixture(t, 0)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing business name", `{"sections": []}`, "businessName"},
		{"section without title", `{"businessName": "Acme", "sections": [{"mainContent": "x"}]}`, "sections[0].title"},
		{"duplicate titles", `{"businessName": "Acme", "sections": [{"title": "A", "mainContent": "x"}, {"title": "a", "mainContent": "y"}]}`, "sections[1].title"},
		{"unknown backend", `{"businessName": "Acme", "backend": "fax", "sections": []}`, "backend"},
		{"not an object", `[]`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/reports/pdf", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, fieldNames(t, w), tt.field)
		})
	}
}

func TestRender_MalformedAndOversizedBodies(t *testing.T) {
	f := newFixture(t, 64)

	w := f.do(t, http.MethodPost, "/api/v1/reports/pdf", `{"businessName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/reports/pdf", renderBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRender_ZeroSections(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/v1/reports/pdf", `{"businessName": "Acme", "sections": []}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

// =====================================================
// Generation
// =====================================================

func TestStartReport_FullPipeline(t *testing.T) {
	f := newFixture(t, 0)

	f.generator.On("GenerateReport", mock.Anything, mock.MatchedBy(func(a *survey.Answers) bool {
		return a.BusinessName == "Acme Bakery"
	})).Return(opportunities(), nil)
	f.images.On("GenerateAll", mock.Anything, mock.MatchedBy(func(p map[string]string) bool {
		return p["Demand Forecasting"] != ""
	})).Return(map[string]string{})

	var created *Report
	f.repo.On("CreateReport", mock.Anything, mock.AnythingOfType("*reports.Report")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*Report) }).
		Return(nil)
	f.mailer.On("SendReport", mock.Anything, mock.MatchedBy(func(e delivery.ReportEmail) bool {
		return e.To == "sam@acme.example" &&
			e.Attachment.Name == "acme-bakery-ai-opportunities.pdf" &&
			bytes.HasPrefix(e.Attachment.Data, []byte("%PDF-")) &&
			strings.HasPrefix(e.DownloadURL, "memory://leads/reports/")
	})).Return(nil)
	f.crm.On("PushLead", mock.Anything, mock.MatchedBy(func(l delivery.Lead) bool {
		return l.Email == "sam@acme.example" && l.CompanySize == "2-10" && l.ReportURL != ""
	})).Return(errors.New("webhook returned status 500"))
	f.repo.On("UpdateReportDelivery", mock.Anything, mock.Anything, mock.MatchedBy(func(d Delivery) bool {
		return d.EmailStatus == DeliveryStatusSent &&
			d.CRMStatus == DeliveryStatusFailed &&
			d.Errors["crm"] == "webhook returned status 500" &&
			d.StorageKey != nil && d.DownloadURL != nil
	})).Return(nil)

	w := f.do(t, http.MethodPost, "/api/v1/reports", ReportRequest{Answers: validAnswers()})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Job jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusPending, resp.Job.Status)
	assert.Equal(t, "/api/v1/reports/jobs/"+resp.Job.ID, w.Header().Get("Location"))

	require.Eventually(t, func() bool {
		job, err := f.store.Get(resp.Job.ID)
		return err == nil && job.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	w = f.do(t, http.MethodGet, "/api/v1/reports/jobs/"+resp.Job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusCompleted, resp.Job.Status, resp.Job.Error)
	assert.NotEmpty(t, resp.Job.DownloadURL)

	require.NotNil(t, created)
	assert.Equal(t, created.ID.String(), resp.Job.ReportID)
	assert.Contains(t, created.HTML, "Demand Forecasting")
	assert.Positive(t, created.PDFSize)
	assert.Equal(t, section.TitleExecutiveSummary, created.Sections[0].Title)

	for _, m := range []interface{ AssertExpectations(mock.TestingT) bool }{f.generator, f.images, f.repo, f.mailer, f.crm} {
		m.AssertExpectations(t)
	}
}

func TestStartReport_UpstreamFailureFailsJob(t *testing.T) {
	f := newFixture(t, 0)
	f.generator.On("GenerateReport", mock.Anything, mock.Anything).
		Return(nil, &section.UpstreamTimeout{Service: "llm", Attempts: 3})

	job, err := f.service.StartReport(context.Background(), &ReportRequest{Answers: validAnswers()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.store.Get(job.ID)
		return err == nil && got.Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	f.repo.AssertNotCalled(t, "CreateReport", mock.Anything, mock.Anything)
	f.mailer.AssertNotCalled(t, "SendReport", mock.Anything, mock.Anything)
}

func TestStartReport_InvalidAnswers(t *testing.T) {
	f := newFixture(t, 0)
	answers := validAnswers()
	answers.Email = "not-an-email"

	w := f.do(t, http.MethodPost, "/api/v1/reports", ReportRequest{Answers: answers})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldNames(t, w), "email")
	assert.Equal(t, 0, f.store.Len())
}

func TestGetJob_NotFound(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodGet, "/api/v1/reports/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =====================================================
// Stored reports
// =====================================================

func TestStoredReports_RequireAdmin(t *testing.T) {
	f := newFixture(t, 0)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/reports", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/reports/"+uuid.NewString(), nil).Code)
}

func TestListReports(t *testing.T) {
	f := newFixture(t, 0)
	f.repo.On("ListReports", mock.Anything, mock.MatchedBy(func(fl *ReportFilters) bool {
		return fl.Page == 1 && fl.PageSize == 100 && fl.Industry != nil && *fl.Industry == "food" && fl.CreatedAfter != nil
	})).Return([]*ReportSummary{{ID: uuid.New(), BusinessName: "Acme Bakery"}}, 1, nil)

	w := f.do(t, http.MethodGet, "/api/v1/reports?industry=food&page_size=500&created_after=2026-01-01", nil, "Authorization", "Bearer admin")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ListReportsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "Acme Bakery", resp.Reports[0].BusinessName)
	f.repo.AssertExpectations(t)
}

func TestGetReport(t *testing.T) {
	f := newFixture(t, 0)
	id := uuid.New()
	f.repo.On("GetReport", mock.Anything, id).Return(&Report{ID: id, BusinessName: "Acme Bakery"}, nil)
	f.repo.On("GetReport", mock.Anything, mock.Anything).Return(nil, apierror.ErrNotFound)

	w := f.do(t, http.MethodGet, "/api/v1/reports/"+id.String(), nil, "Authorization", "Bearer admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Acme Bakery")

	w = f.do(t, http.MethodGet, "/api/v1/reports/"+uuid.NewString(), nil, "Authorization", "Bearer admin")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/reports/not-a-uuid", nil, "Authorization", "Bearer admin")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "acme-bakery-ai-opportunities.pdf", Filename("Acme Bakery"))
	assert.Equal(t, "o-reilly-co-ai-opportunities.pdf", Filename("  O'Reilly & Co.  "))
	assert.Equal(t, "report-ai-opportunities.pdf", Filename("!!!"))
}
