package repository

import (
	"context"
	"fmt"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const historyColumns = `h.id, h.user_id, h.trip_id, h.role, h.status, h.joined_at, h.left_at, h.rating, h.review,
	h.created_at, COALESCE(t.name, '')`

// TripHistoryRepository handles the append-only trip history log
type TripHistoryRepository struct {
	db *pgxpool.Pool
}

// NewTripHistoryRepository creates a new trip history repository
func NewTripHistoryRepository(db *pgxpool.Pool) *TripHistoryRepository {
	return &TripHistoryRepository{db: db}
}

// ListUserIDs retrieves the users already recorded for a trip
func (r *TripHistoryRepository) ListUserIDs(ctx context.Context, tripID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM trip_history WHERE trip_id = $1`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip history users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip history users: %w", err)
	}
	return ids, nil
}

// Create appends one history entry. A second entry for the same (trip, user) is ErrDuplicate.
func (r *TripHistoryRepository) Create(ctx context.Context, entry *models.TripHistoryEntry) error {
	query := `
		INSERT INTO trip_history (id, user_id, trip_id, role, status, joined_at, left_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.UserID, entry.TripID, entry.Role, entry.Status, entry.JoinedAt, entry.LeftAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip history entry: %w", wrap(err))
	}
	return nil
}

// Get retrieves the history entry of a user for a trip
func (r *TripHistoryRepository) Get(ctx context.Context, tripID, userID string) (*models.TripHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
		FROM trip_history h LEFT JOIN trips t ON t.id = h.trip_id
		WHERE h.trip_id = $1 AND h.user_id = $2`
	entry, err := scanHistory(r.db.QueryRow(ctx, query, tripID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get trip history entry: %w", wrap(err))
	}
	return entry, nil
}

// ListByUser retrieves the history of a user, most recent first
func (r *TripHistoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.TripHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
		FROM trip_history h LEFT JOIN trips t ON t.id = h.trip_id
		WHERE h.user_id = $1
		ORDER BY h.created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip history: %w", err)
	}
	defer rows.Close()

	var entries []*models.TripHistoryEntry
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip history: %w", err)
	}
	return entries, nil
}

// Rate stores the rating and review of a user's history entry
func (r *TripHistoryRepository) Rate(ctx context.Context, tripID, userID string, rating int, review *string) error {
	query := `UPDATE trip_history SET rating = $1, review = $2 WHERE trip_id = $3 AND user_id = $4`
	result, err := r.db.Exec(ctx, query, rating, review, tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to rate trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip history entry not found: %w", ErrNotFound)
	}
	return nil
}

func scanHistory(row pgx.Row) (*models.TripHistoryEntry, error) {
	var e models.TripHistoryEntry
	err := row.Scan(
		&e.ID, &e.UserID, &e.TripID, &e.Role, &e.Status, &e.JoinedAt, &e.LeftAt, &e.Rating, &e.Review,
		&e.CreatedAt, &e.TripName,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
