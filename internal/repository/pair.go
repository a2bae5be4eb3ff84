package repository

import (
	"context"
	"fmt"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PairRepository maintains the direct conversation index: one private room
// per unordered pair of users.
type PairRepository struct {
	db *pgxpool.Pool
}

// NewPairRepository creates a new pair repository
func NewPairRepository(db *pgxpool.Pool) *PairRepository {
	return &PairRepository{db: db}
}

// Get retrieves the room id indexed for pair
func (r *PairRepository) Get(ctx context.Context, pair models.UserPair) (string, error) {
	query := `
		SELECT room_id
		FROM direct_conversations
		WHERE user_low = $1 AND user_high = $2
	`
	var roomID string
	err := r.db.QueryRow(ctx, query, pair.Low, pair.High).Scan(&roomID)
	if err != nil {
		return "", fmt.Errorf("failed to get direct conversation: %w", wrap(err))
	}
	return roomID, nil
}

// Put records roomID for pair, replacing any previous entry
func (r *PairRepository) Put(ctx context.Context, pair models.UserPair, roomID string) error {
	query := `
		INSERT INTO direct_conversations (user_low, user_high, room_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_low, user_high) DO UPDATE SET room_id = EXCLUDED.room_id
	`
	_, err := r.db.Exec(ctx, query, pair.Low, pair.High, roomID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save direct conversation: %w", err)
	}
	return nil
}
