package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
)

// Repository defines the interface for report data access
type Repository interface {
	CreateReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	UpdateReportDelivery(ctx context.Context, id uuid.UUID, delivery Delivery) error
	ListReports(ctx context.Context, filters *ReportFilters) ([]*ReportSummary, int, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateReport(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO reports (
			id, business_name, contact_name, email, industry, backend, answers, sections,
			html, pdf_size, storage_key, download_url, email_status, crm_status, delivery_errors,
			created_at, updated_at
		) VALUES (
			:id, :business_name, :contact_name, :email, :industry, :backend, :answers, :sections,
			:html, :pdf_size, :storage_key, :download_url, :email_status, :crm_status, :delivery_errors,
			:created_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := `
		SELECT id, business_name, contact_name, email, industry, backend, answers, sections,
			   html, pdf_size, storage_key, download_url, email_status, crm_status, delivery_errors,
			   created_at, updated_at
		FROM reports
		WHERE id = $1
	`

	var report Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, apierror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (r *PostgresRepository) UpdateReportDelivery(ctx context.Context, id uuid.UUID, delivery Delivery) error {
	query := `
		UPDATE reports SET
			storage_key = $2, download_url = $3, email_status = $4, crm_status = $5,
			delivery_errors = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		id, delivery.StorageKey, delivery.DownloadURL, delivery.EmailStatus, delivery.CRMStatus,
		delivery.Errors, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update report delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("report %s: %w", id, apierror.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) ListReports(ctx context.Context, filters *ReportFilters) ([]*ReportSummary, int, error) {
	var conditions []string
	var args []interface{}
	argCount := 0

	baseQuery := `
		SELECT id, business_name, contact_name, email, industry, email_status, crm_status, created_at
		FROM reports
	`

	countQuery := `SELECT COUNT(*) FROM reports`

	if filters.Email != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("email = $%d", argCount))
		args = append(args, strings.ToLower(*filters.Email))
	}

	if filters.Industry != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("industry = $%d", argCount))
		args = append(args, *filters.Industry)
	}

	if filters.SearchTerm != nil && *filters.SearchTerm != "" {
		argCount++
		conditions = append(conditions, fmt.Sprintf("(business_name ILIKE $%d OR contact_name ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filters.SearchTerm+"%")
	}

	if filters.CreatedAfter != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argCount))
		args = append(args, *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argCount))
		args = append(args, *filters.CreatedBefore)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	// Add pagination
	offset := (filters.Page - 1) * filters.PageSize
	if filters.Page < 1 {
		offset = 0
	}

	argCount++
	limitArg := argCount
	argCount++
	offsetArg := argCount

	query := baseQuery + whereClause + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitArg, offsetArg)
	args = append(args, filters.PageSize, offset)

	reports := []*ReportSummary{}
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, totalCount, nil
}
