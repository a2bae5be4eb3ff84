package repository

import (
	"context"
	"fmt"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewRepository handles database operations for user reviews
type ReviewRepository struct {
	db    *pgxpool.Pool
	users string
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *pgxpool.Pool, users string) *ReviewRepository {
	return &ReviewRepository{db: db, users: users}
}

// Upsert creates the review of reviewer for reviewed or updates the existing one.
// The stored id and created_at are written back into review.
func (r *ReviewRepository) Upsert(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (id, reviewer_id, reviewed_user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reviewer_id, reviewed_user_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		review.ID, review.ReviewerID, review.ReviewedUserID, review.Rating, review.Comment,
		review.CreatedAt, review.UpdatedAt,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", wrap(err))
	}
	return nil
}

// ListForUser retrieves the reviews received by a user, newest first
func (r *ReviewRepository) ListForUser(ctx context.Context, userID string) ([]*models.Review, error) {
	query := fmt.Sprintf(`
		SELECT rv.id, rv.reviewer_id, rv.reviewed_user_id, rv.rating, rv.comment, rv.created_at, rv.updated_at,
			COALESCE(u.first_name || ' ' || u.last_name, '')
		FROM reviews rv
		LEFT JOIN %s u ON u.id = rv.reviewer_id
		WHERE rv.reviewed_user_id = $1
		ORDER BY rv.created_at DESC
	`, r.users)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var rv models.Review
		err := rows.Scan(&rv.ID, &rv.ReviewerID, &rv.ReviewedUserID, &rv.Rating, &rv.Comment,
			&rv.CreatedAt, &rv.UpdatedAt, &rv.ReviewerName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, &rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}
