package repository

import (
	"context"
	"fmt"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `a.id, a.trip_id, a.applicant_id, a.status, a.message, a.created_at, a.updated_at,
	a.responded_at, COALESCE(t.name, '')`

// ApplicationRepository handles database operations for trip applications
type ApplicationRepository struct {
	db *pgxpool.Pool
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a pending application. A concurrent duplicate surfaces as ErrDuplicate.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (id, trip_id, applicant_id, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		app.ID, app.TripID, app.ApplicantID, app.Status, app.Message, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", wrap(err))
	}
	return nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications a LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.id = $1`
	app, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", wrap(err))
	}
	return app, nil
}

// FindPending retrieves the pending application of applicant for trip
func (r *ApplicationRepository) FindPending(ctx context.Context, tripID, applicantID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications a LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.trip_id = $1 AND a.applicant_id = $2 AND a.status = $3
		LIMIT 1`
	app, err := scanApplication(r.db.QueryRow(ctx, query, tripID, applicantID, models.ApplicationPending))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending application: %w", wrap(err))
	}
	return app, nil
}

// UpdateStatus moves a pending application to status. It returns ErrConflict
// when the application is no longer pending.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, at time.Time) error {
	query := `
		UPDATE applications SET status = $1, updated_at = $2, responded_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, status, at, id, models.ApplicationPending)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("application %s is not pending: %w", id, ErrConflict)
	}
	return nil
}

// ListByApplicant retrieves the applications a user submitted, newest first
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications a LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.applicant_id = $1
		ORDER BY a.created_at DESC`
	return r.queryApplications(ctx, query, applicantID)
}

// ListByTrip retrieves every application for a trip, newest first
func (r *ApplicationRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications a LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.trip_id = $1
		ORDER BY a.created_at DESC`
	return r.queryApplications(ctx, query, tripID)
}

// ListPendingByTrip retrieves the pending applications for a trip, oldest first
func (r *ApplicationRepository) ListPendingByTrip(ctx context.Context, tripID string) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications a LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.trip_id = $1 AND a.status = $2
		ORDER BY a.created_at`
	return r.queryApplications(ctx, query, tripID, models.ApplicationPending)
}

func (r *ApplicationRepository) queryApplications(ctx context.Context, query string, args ...any) ([]*models.Application, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}
	return apps, nil
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var app models.Application
	err := row.Scan(
		&app.ID, &app.TripID, &app.ApplicantID, &app.Status, &app.Message, &app.CreatedAt, &app.UpdatedAt,
		&app.RespondedAt, &app.TripName,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
