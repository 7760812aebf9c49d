package reports

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/internal/survey"
)

// =====================================================
// Enums and Constants
// =====================================================

// DeliveryStatus tracks one outbound delivery of a stored report
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
)

// =====================================================
// JSON Types for JSONB columns
// =====================================================

// JSONB is a wrapper for JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Sections stores the rendered section list as a JSONB array
type Sections []section.ReportSection

// Value implements driver.Valuer
func (s Sections) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *Sections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported sections column type %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// toJSONB converts a struct into a JSONB map through its JSON encoding
func toJSONB(v any) (JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =====================================================
// Core Entities
// =====================================================

// Report is one generated AI Opportunities report
type Report struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	BusinessName   string         `db:"business_name" json:"business_name"`
	ContactName    string         `db:"contact_name" json:"contact_name"`
	Email          string         `db:"email" json:"email"`
	Industry       string         `db:"industry" json:"industry"`
	Backend        string         `db:"backend" json:"backend"`
	Answers        JSONB          `db:"answers" json:"answers"`
	Sections       Sections       `db:"sections" json:"sections"`
	HTML           string         `db:"html" json:"html,omitempty"`
	PDFSize        int            `db:"pdf_size" json:"pdf_size"`
	StorageKey     *string        `db:"storage_key" json:"storage_key,omitempty"`
	DownloadURL    *string        `db:"download_url" json:"download_url,omitempty"`
	EmailStatus    DeliveryStatus `db:"email_status" json:"email_status"`
	CRMStatus      DeliveryStatus `db:"crm_status" json:"crm_status"`
	DeliveryErrors JSONB          `db:"delivery_errors" json:"delivery_errors,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ReportSummary is the list view of a report
type ReportSummary struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	BusinessName string         `db:"business_name" json:"business_name"`
	ContactName  string         `db:"contact_name" json:"contact_name"`
	Email        string         `db:"email" json:"email"`
	Industry     string         `db:"industry" json:"industry"`
	EmailStatus  DeliveryStatus `db:"email_status" json:"email_status"`
	CRMStatus    DeliveryStatus `db:"crm_status" json:"crm_status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Delivery is the outcome of the outbound steps for one report
type Delivery struct {
	StorageKey  *string
	DownloadURL *string
	EmailStatus DeliveryStatus
	CRMStatus   DeliveryStatus
	Errors      JSONB
}

// =====================================================
// Request/Response DTOs
// =====================================================

// RenderRequest is the body of the synchronous render endpoints
type RenderRequest struct {
	BusinessName string                  `json:"businessName"`
	Backend      string                  `json:"backend,omitempty"`
	ReportDate   *time.Time              `json:"reportDate,omitempty"`
	Sections     []section.ReportSection `json:"sections"`
}

// UnmarshalJSON decodes sections with per-field type checks so that
// malformed input names the offending path
func (r *RenderRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		BusinessName *string         `json:"businessName"`
		Backend      string          `json:"backend"`
		ReportDate   *time.Time      `json:"reportDate"`
		Sections     json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		result := section.NewValidationResult()
		result.AddError("body", "type", "Request body must be a JSON object with businessName and sections")
		return result.Err()
	}

	result := section.NewValidationResult()
	if raw.BusinessName == nil || strings.TrimSpace(*raw.BusinessName) == "" {
		result.AddError("businessName", "required", "Business name is required")
	} else {
		r.BusinessName = strings.TrimSpace(*raw.BusinessName)
	}
	r.Backend = raw.Backend
	r.ReportDate = raw.ReportDate

	if len(raw.Sections) == 0 || string(raw.Sections) == "null" {
		r.Sections = []section.ReportSection{}
	} else {
		sections, err := section.ParseSections(raw.Sections)
		if err != nil {
			if ve, ok := err.(*section.ValidationError); ok {
				for _, fe := range ve.Errors {
					result.AddError(fe.Field, fe.Code, fe.Message)
				}
			} else {
				return err
			}
		}
		r.Sections = sections
	}
	return result.Err()
}

// Filename returns the download name for the rendered PDF
func (r *RenderRequest) Filename() string {
	return Filename(r.BusinessName)
}

// ReportRequest starts an asynchronous report for a completed survey
type ReportRequest struct {
	Answers survey.Answers `json:"answers"`
	Backend string         `json:"backend,omitempty"`
}

// ReportFilters for filtering stored reports
type ReportFilters struct {
	Email         *string
	Industry      *string
	SearchTerm    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	PageSize      int
}

// ListReportsResponse represents the response for listing reports
type ListReportsResponse struct {
	Reports    []*ReportSummary `json:"reports"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// Base64PDFResponse carries a PDF inside JSON
type Base64PDFResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	PDF         string `json:"pdf"`
}

// Filename builds "<slug>-ai-opportunities.pdf" from a business name
func Filename(businessName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(businessName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "report"
	}
	if len(slug) > 60 {
		slug = strings.TrimSuffix(slug[:60], "-")
	}
	return slug + "-ai-opportunities.pdf"
}
