package repository

import (
	"context"
	"fmt"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TripMemberRepository handles database operations for trip participants
type TripMemberRepository struct {
	db    *pgxpool.Pool
	users string
}

// NewTripMemberRepository creates a new trip member repository. users is the
// sanitized profile table used to resolve display names.
func NewTripMemberRepository(db *pgxpool.Pool, users string) *TripMemberRepository {
	return &TripMemberRepository{db: db, users: users}
}

// Add inserts a participant row
func (r *TripMemberRepository) Add(ctx context.Context, member *models.TripMember) error {
	query := `
		INSERT INTO trip_members (trip_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, member.TripID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add trip member: %w", wrap(err))
	}
	return nil
}

// Count returns the number of participants of a trip
func (r *TripMemberRepository) Count(ctx context.Context, tripID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM trip_members WHERE trip_id = $1`, tripID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trip members: %w", err)
	}
	return count, nil
}

// Get retrieves one participant row
func (r *TripMemberRepository) Get(ctx context.Context, tripID, userID string) (*models.TripMember, error) {
	query := `SELECT trip_id, user_id, role, joined_at FROM trip_members WHERE trip_id = $1 AND user_id = $2`
	var m models.TripMember
	err := r.db.QueryRow(ctx, query, tripID, userID).Scan(&m.TripID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip member: %w", wrap(err))
	}
	return &m, nil
}

// ListByTrip retrieves the participants of a trip with their names
func (r *TripMemberRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.TripMember, error) {
	query := fmt.Sprintf(`
		SELECT m.trip_id, m.user_id, m.role, m.joined_at, COALESCE(u.first_name || ' ' || u.last_name, '')
		FROM trip_members m
		LEFT JOIN %s u ON u.id = m.user_id
		WHERE m.trip_id = $1
		ORDER BY m.joined_at
	`, r.users)
	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip members: %w", err)
	}
	defer rows.Close()

	var members []*models.TripMember
	for rows.Next() {
		var m models.TripMember
		if err := rows.Scan(&m.TripID, &m.UserID, &m.Role, &m.JoinedAt, &m.UserName); err != nil {
			return nil, fmt.Errorf("failed to scan trip member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip members: %w", err)
	}
	return members, nil
}

// Remove deletes one participant row
func (r *TripMemberRepository) Remove(ctx context.Context, tripID, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM trip_members WHERE trip_id = $1 AND user_id = $2`, tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove trip member: %w", err)
	}
	return nil
}

// RemoveAll deletes every participant row of a trip
func (r *TripMemberRepository) RemoveAll(ctx context.Context, tripID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM trip_members WHERE trip_id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to remove trip members: %w", err)
	}
	return nil
}
