package repository

import (
	"context"
	"fmt"
	"strings"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatMemberRepository handles database operations for room memberships
type ChatMemberRepository struct {
	db    *pgxpool.Pool
	users string
}

// NewChatMemberRepository creates a new chat member repository
func NewChatMemberRepository(db *pgxpool.Pool, users string) *ChatMemberRepository {
	return &ChatMemberRepository{db: db, users: users}
}

// Add inserts memberships in one statement. Any conflicting row fails the whole batch.
func (r *ChatMemberRepository) Add(ctx context.Context, members ...*models.ChatMember) error {
	if len(members) == 0 {
		return nil
	}
	values := make([]string, 0, len(members))
	args := make([]any, 0, len(members)*4)
	for i, m := range members {
		n := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, m.RoomID, m.UserID, m.Role, m.JoinedAt)
	}
	query := `INSERT INTO chat_members (room_id, user_id, role, joined_at) VALUES ` + strings.Join(values, ", ")
	_, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to add chat members: %w", wrap(err))
	}
	return nil
}

// List retrieves the members of a room with their names
func (r *ChatMemberRepository) List(ctx context.Context, roomID string) ([]*models.ChatMember, error) {
	query := fmt.Sprintf(`
		SELECT m.room_id, m.user_id, m.role, m.joined_at, COALESCE(u.first_name || ' ' || u.last_name, '')
		FROM chat_members m
		LEFT JOIN %s u ON u.id = m.user_id
		WHERE m.room_id = $1
		ORDER BY m.joined_at
	`, r.users)
	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat members: %w", err)
	}
	defer rows.Close()

	var members []*models.ChatMember
	for rows.Next() {
		var m models.ChatMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt, &m.UserName); err != nil {
			return nil, fmt.Errorf("failed to scan chat member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat members: %w", err)
	}
	return members, nil
}

// IsMember reports whether userID belongs to roomID
func (r *ChatMemberRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM chat_members WHERE room_id = $1 AND user_id = $2)`
	if err := r.db.QueryRow(ctx, query, roomID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check chat membership: %w", err)
	}
	return exists, nil
}

// ListRoomIDs retrieves the ids of every room a user belongs to
func (r *ChatMemberRepository) ListRoomIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT room_id FROM chat_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member rooms: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan member rooms: %w", err)
	}
	return ids, nil
}

// Remove deletes one membership
func (r *ChatMemberRepository) Remove(ctx context.Context, roomID, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove chat member: %w", err)
	}
	return nil
}

// RemoveAll deletes every membership of a room
func (r *ChatMemberRepository) RemoveAll(ctx context.Context, roomID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_members WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to remove chat members: %w", err)
	}
	return nil
}
