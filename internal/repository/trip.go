package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tripColumns = `t.id, t.name, t.description, t.origin, t.destination, t.country, t.start_date, t.end_date,
	t.budget_min, t.budget_max, t.currency, t.room_type, t.max_participants, t.status, t.creator_id,
	t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM trip_members m WHERE m.trip_id = t.id)`

// TripRepository handles database operations for trips
type TripRepository struct {
	db *pgxpool.Pool
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *pgxpool.Pool) *TripRepository {
	return &TripRepository{db: db}
}

// Create creates a new trip
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (id, name, description, origin, destination, country, start_date, end_date,
			budget_min, budget_max, currency, room_type, max_participants, status, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		trip.ID, trip.Name, trip.Description, trip.Origin, trip.Destination, trip.Country,
		models.DateArg(trip.StartDate), models.DateArg(trip.EndDate),
		trip.BudgetMin, trip.BudgetMax, trip.Currency, trip.RoomType, trip.MaxParticipants,
		trip.Status, trip.CreatorID, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", wrap(err))
	}
	return nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips t WHERE t.id = $1`
	trip, err := scanTrip(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", wrap(err))
	}
	return trip, nil
}

// List retrieves trips matching filter, newest first
func (r *TripRepository) List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Origin != "" {
		add("t.origin ILIKE '%%' || $%d || '%%'", filter.Origin)
	}
	if filter.Destination != "" {
		add("t.destination ILIKE '%%' || $%d || '%%'", filter.Destination)
	}
	if filter.Country != "" {
		add("t.country ILIKE '%%' || $%d || '%%'", filter.Country)
	}
	if filter.Status != "" {
		add("t.status = $%d", filter.Status)
	}
	if filter.BudgetMin != nil {
		add("t.budget_min >= $%d", *filter.BudgetMin)
	}
	if filter.BudgetMax != nil {
		add("t.budget_max <= $%d", *filter.BudgetMax)
	}

	query := `SELECT ` + tripColumns + ` FROM trips t`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY t.created_at DESC`

	return r.queryTrips(ctx, query, args...)
}

// ListByMember retrieves the trips a user participates in
func (r *TripRepository) ListByMember(ctx context.Context, userID string) ([]*models.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.creator_id = $1 OR EXISTS (
			SELECT 1 FROM trip_members m WHERE m.trip_id = t.id AND m.user_id = $1
		)
		ORDER BY t.created_at DESC
	`
	return r.queryTrips(ctx, query, userID)
}

// ListNotCompleted retrieves every trip whose status is not completed
func (r *TripRepository) ListNotCompleted(ctx context.Context) ([]*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips t WHERE t.status <> $1 ORDER BY t.created_at`
	return r.queryTrips(ctx, query, models.TripCompleted)
}

// NameExists checks case-insensitively whether another trip uses name
func (r *TripRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trips WHERE lower(name) = lower($1) AND id::text <> $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trip name: %w", err)
	}
	return exists, nil
}

// Update rewrites the editable trip fields
func (r *TripRepository) Update(ctx context.Context, trip *models.Trip) error {
	query := `
		UPDATE trips SET name = $2, description = $3, origin = $4, destination = $5, country = $6,
			start_date = $7, end_date = $8, budget_min = $9, budget_max = $10, currency = $11,
			room_type = $12, max_participants = $13, status = $14, updated_at = $15
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		trip.ID, trip.Name, trip.Description, trip.Origin, trip.Destination, trip.Country,
		models.DateArg(trip.StartDate), models.DateArg(trip.EndDate),
		trip.BudgetMin, trip.BudgetMax, trip.Currency, trip.RoomType, trip.MaxParticipants,
		trip.Status, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", wrap(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip not found: %w", ErrNotFound)
	}
	return nil
}

// UpdateStatus sets the status of a trip
func (r *TripRepository) UpdateStatus(ctx context.Context, id string, status models.TripStatus) error {
	query := `UPDATE trips SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update trip status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip not found: %w", ErrNotFound)
	}
	return nil
}

// Delete deletes a trip by ID
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM trips WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip not found: %w", ErrNotFound)
	}
	return nil
}

func (r *TripRepository) queryTrips(ctx context.Context, query string, args ...any) ([]*models.Trip, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}

	return trips, nil
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var (
		trip       models.Trip
		start, end *time.Time
	)
	err := row.Scan(
		&trip.ID, &trip.Name, &trip.Description, &trip.Origin, &trip.Destination, &trip.Country, &start, &end,
		&trip.BudgetMin, &trip.BudgetMax, &trip.Currency, &trip.RoomType, &trip.MaxParticipants, &trip.Status,
		&trip.CreatorID, &trip.CreatedAt, &trip.UpdatedAt, &trip.CurrentParticipants,
	)
	if err != nil {
		return nil, err
	}
	trip.StartDate = models.DatePtr(start)
	trip.EndDate = models.DatePtr(end)
	return &trip, nil
}
