package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/delivery"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/jobs"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/internal/survey"
	"ai-opportunities/report-portal/report-portal-backend/pkg/storage"
)

// ReportGenerator writes the report content for a completed survey
type ReportGenerator interface {
	GenerateReport(ctx context.Context, answers *survey.Answers) (*section.Opportunities, error)
}

// ImageGenerator produces banner URLs keyed like its prompts
type ImageGenerator interface {
	GenerateAll(ctx context.Context, prompts map[string]string) map[string]string
}

// Mailer sends the finished report to the prospect
type Mailer interface {
	SendReport(ctx context.Context, email delivery.ReportEmail) error
}

// LeadPusher records the prospect in the CRM
type LeadPusher interface {
	PushLead(ctx context.Context, lead delivery.Lead) error
}

// Archiver stores the PDF and returns a download link
type Archiver interface {
	Archive(ctx context.Context, id, filename string, pdf []byte) (storage.Archived, error)
}

// Dependencies wires the service. Images, Mailer, CRM and Archiver are
// optional; a nil one skips its step.
type Dependencies struct {
	Assembler  *render.Assembler
	Repository Repository
	Reports    ReportGenerator
	Images     ImageGenerator
	Mailer     Mailer
	CRM        LeadPusher
	Archiver   Archiver
	Jobs       *jobs.Worker
	JobStore   *jobs.Store
}

// Service handles report business logic
type Service struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new report service
func NewService(deps Dependencies, logger *zap.Logger) *Service {
	return &Service{deps: deps, logger: logger, now: time.Now}
}

// RenderPDF renders caller-supplied sections to a PDF
func (s *Service) RenderPDF(ctx context.Context, req *RenderRequest) ([]byte, error) {
	backend, err := render.ParseBackend(req.Backend)
	if err != nil {
		return nil, err
	}
	return s.deps.Assembler.Assemble(ctx, s.cover(req), req.Sections, section.DefaultFooter(), backend)
}

// RenderHTML returns the HTML rendition of caller-supplied sections
func (s *Service) RenderHTML(ctx context.Context, req *RenderRequest) (string, error) {
	return s.deps.Assembler.HTML(ctx, s.cover(req), req.Sections, section.DefaultFooter())
}

func (s *Service) cover(req *RenderRequest) section.Cover {
	var date time.Time
	if req.ReportDate != nil {
		date = req.ReportDate.UTC()
	}
	return section.DefaultCover(req.BusinessName, date)
}

// StartReport validates the survey and queues report generation
func (s *Service) StartReport(ctx context.Context, req *ReportRequest) (jobs.Job, error) {
	if err := survey.Validate(&req.Answers); err != nil {
		return jobs.Job{}, err
	}
	backend, err := render.ParseBackend(req.Backend)
	if err != nil {
		return jobs.Job{}, err
	}

	answers := req.Answers
	return s.deps.Jobs.Submit(answers.BusinessName, func(ctx context.Context, job jobs.Job) (jobs.Result, error) {
		return s.Generate(ctx, &answers, backend)
	})
}

// GetJob returns the status of an asynchronous report
func (s *Service) GetJob(id string) (jobs.Job, error) {
	return s.deps.JobStore.Get(id)
}

// Generate runs the whole pipeline for one survey: report content, banners,
// rendering, persistence and delivery. Delivery failures are recorded on the
// stored report and do not fail the job.
func (s *Service) Generate(ctx context.Context, answers *survey.Answers, backend render.Backend) (jobs.Result, error) {
	opportunities, err := s.deps.Reports.GenerateReport(ctx, answers)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("failed to generate report content: %w", err)
	}

	sections := section.FromOpportunities(opportunities)
	if s.deps.Images != nil {
		urls := s.deps.Images.GenerateAll(ctx, section.ImagePrompts(opportunities, answers.BusinessName))
		for i := range sections {
			if url, ok := urls[sections[i].Title]; ok {
				sections[i].ImageURL = url
			}
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	cover := section.DefaultCover(answers.BusinessName, now)
	doc, err := s.deps.Assembler.Prepare(ctx, cover, sections, section.DefaultFooter())
	if err != nil {
		return jobs.Result{}, err
	}
	pdf, err := s.deps.Assembler.Render(ctx, doc, backend)
	if err != nil {
		return jobs.Result{}, err
	}
	html, err := render.BuildHTML(doc, s.deps.Assembler.Options())
	if err != nil {
		return jobs.Result{}, err
	}

	answersJSON, err := toJSONB(answers)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("failed to encode answers: %w", err)
	}
	stored := make(Sections, len(doc.Sections))
	for i, ps := range doc.Sections {
		stored[i] = ps.Section
	}

	report := &Report{
		ID:           uuid.New(),
		BusinessName: answers.BusinessName,
		ContactName:  answers.ContactName,
		Email:        answers.Email,
		Industry:     answers.Industry,
		Backend:      string(backend),
		Answers:      answersJSON,
		Sections:     stored,
		HTML:         html,
		PDFSize:      len(pdf),
		EmailStatus:  DeliveryStatusPending,
		CRMStatus:    DeliveryStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Repository.CreateReport(ctx, report); err != nil {
		return jobs.Result{}, err
	}

	d := s.deliver(ctx, report, pdf)
	if err := s.deps.Repository.UpdateReportDelivery(ctx, report.ID, d); err != nil {
		s.logger.Error("Failed to record delivery", zap.String("report_id", report.ID.String()), zap.Error(err))
	}

	result := jobs.Result{ReportID: report.ID.String()}
	if d.DownloadURL != nil {
		result.DownloadURL = *d.DownloadURL
	}
	return result, nil
}

// deliver archives, emails and pushes the lead. Each step runs once.
func (s *Service) deliver(ctx context.Context, report *Report, pdf []byte) Delivery {
	d := Delivery{
		EmailStatus: DeliveryStatusSkipped,
		CRMStatus:   DeliveryStatusSkipped,
		Errors:      JSONB{},
	}
	filename := Filename(report.BusinessName)
	log := s.logger.With(zap.String("report_id", report.ID.String()), zap.String("business", report.BusinessName))

	if s.deps.Archiver != nil {
		archived, err := s.deps.Archiver.Archive(ctx, report.ID.String(), filename, pdf)
		if archived.Key != "" {
			d.StorageKey = &archived.Key
		}
		if archived.URL != "" {
			d.DownloadURL = &archived.URL
		}
		if err != nil {
			log.Warn("Failed to archive report", zap.Error(err))
			d.Errors["storage"] = err.Error()
		}
	}

	if s.deps.Mailer != nil {
		email := delivery.ReportEmail{
			To:           report.Email,
			ContactName:  report.ContactName,
			BusinessName: report.BusinessName,
			Attachment:   delivery.Attachment{Name: filename, Data: pdf, ContentType: "application/pdf"},
		}
		if d.DownloadURL != nil {
			email.DownloadURL = *d.DownloadURL
		}
		if err := s.deps.Mailer.SendReport(ctx, email); err != nil {
			log.Warn("Failed to email report", zap.Error(err))
			d.EmailStatus = DeliveryStatusFailed
			d.Errors["email"] = err.Error()
		} else {
			d.EmailStatus = DeliveryStatusSent
		}
	}

	if s.deps.CRM != nil {
		lead := delivery.Lead{
			BusinessName: report.BusinessName,
			ContactName:  report.ContactName,
			Email:        report.Email,
			Industry:     report.Industry,
			ReportID:     report.ID.String(),
			Answers:      report.Answers,
			CreatedAt:    report.CreatedAt,
		}
		if v, ok := report.Answers["phone"].(string); ok {
			lead.Phone = v
		}
		if v, ok := report.Answers["website"].(string); ok {
			lead.Website = v
		}
		if v, ok := report.Answers["companySize"].(string); ok {
			lead.CompanySize = v
		}
		if d.DownloadURL != nil {
			lead.ReportURL = *d.DownloadURL
		}
		if err := s.deps.CRM.PushLead(ctx, lead); err != nil {
			log.Warn("Failed to push lead", zap.Error(err))
			d.CRMStatus = DeliveryStatusFailed
			d.Errors["crm"] = err.Error()
		} else {
			d.CRMStatus = DeliveryStatusSent
		}
	}

	if len(d.Errors) == 0 {
		d.Errors = nil
	}
	return d
}

// GetReport returns a stored report
func (s *Service) GetReport(ctx context.Context, id string) (*Report, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		result := section.NewValidationResult()
		result.AddError("id", "invalid", "Report id must be a UUID")
		return nil, result.Err()
	}
	return s.deps.Repository.GetReport(ctx, reportID)
}

// ListReports lists stored reports newest first
func (s *Service) ListReports(ctx context.Context, filters *ReportFilters) (*ListReportsResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	reports, total, err := s.deps.Repository.ListReports(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListReportsResponse{
		Reports:    reports,
		TotalCount: total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
	}, nil
}
