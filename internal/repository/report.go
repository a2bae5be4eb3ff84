package repository

import (
	"context"
	"fmt"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, reporter_id, reported_user_id, reason, description, evidence_image_url, status, created_at`

// ReportRepository handles database operations for user reports and suspensions
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, reported_user_id, reason, description, evidence_image_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		report.ID, report.ReporterID, report.ReportedUserID, report.Reason, report.Description,
		report.EvidenceImageURL, report.Status, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", wrap(err))
	}
	return nil
}

// ListMade retrieves the reports filed by a user
func (r *ReportRepository) ListMade(ctx context.Context, userID string) ([]*models.Report, error) {
	return r.list(ctx, `SELECT `+reportColumns+` FROM reports WHERE reporter_id = $1 ORDER BY created_at DESC`, userID)
}

// ListReceived retrieves the reports filed against a user
func (r *ReportRepository) ListReceived(ctx context.Context, userID string) ([]*models.Report, error) {
	return r.list(ctx, `SELECT `+reportColumns+` FROM reports WHERE reported_user_id = $1 ORDER BY created_at DESC`, userID)
}

// ActiveSuspension retrieves the suspension in force for a user at now
func (r *ReportRepository) ActiveSuspension(ctx context.Context, userID string, now time.Time) (*models.Suspension, error) {
	query := `
		SELECT user_id, reason, suspended_at, expires_at, is_permanent, is_active, notes
		FROM user_suspensions
		WHERE user_id = $1 AND is_active AND (is_permanent OR expires_at > $2)
		ORDER BY suspended_at DESC
		LIMIT 1
	`
	var s models.Suspension
	err := r.db.QueryRow(ctx, query, userID, now).Scan(
		&s.UserID, &s.Reason, &s.SuspendedAt, &s.ExpiresAt, &s.IsPermanent, &s.IsActive, &s.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get suspension: %w", wrap(err))
	}
	return &s, nil
}

func (r *ReportRepository) list(ctx context.Context, query string, args ...any) ([]*models.Report, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		var rp models.Report
		err := rows.Scan(&rp.ID, &rp.ReporterID, &rp.ReportedUserID, &rp.Reason, &rp.Description,
			&rp.EvidenceImageURL, &rp.Status, &rp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
