package repository

import (
	"context"
	"fmt"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roomColumns = `r.id, r.name, r.creator_id, r.trip_id, r.application_id, r.is_group, r.is_private,
	r.is_closed, r.closed_at, r.created_at`

// ChatRoomRepository handles database operations for chat rooms
type ChatRoomRepository struct {
	db *pgxpool.Pool
}

// NewChatRoomRepository creates a new chat room repository
func NewChatRoomRepository(db *pgxpool.Pool) *ChatRoomRepository {
	return &ChatRoomRepository{db: db}
}

// Create inserts a room with its trip and application links. Deployments
// whose rooms table predates those columns get ErrUndefinedColumn.
func (r *ChatRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (id, name, creator_id, trip_id, application_id, is_group, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		room.ID, room.Name, room.CreatorID, room.TripID, room.ApplicationID, room.IsGroup, room.IsPrivate, room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat room: %w", wrap(err))
	}
	return nil
}

// CreateMinimal inserts a room using only the base columns
func (r *ChatRoomRepository) CreateMinimal(ctx context.Context, room *models.ChatRoom) error {
	query := `INSERT INTO chat_rooms (id, name, creator_id, is_group, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, room.ID, room.Name, room.CreatorID, room.IsGroup, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat room: %w", wrap(err))
	}
	return nil
}

// GetByID retrieves a room by ID
func (r *ChatRoomRepository) GetByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	return r.queryRoom(ctx, `SELECT `+roomColumns+` FROM chat_rooms r WHERE r.id = $1`, id)
}

// FindGroupByTrip retrieves the group room linked to a trip
func (r *ChatRoomRepository) FindGroupByTrip(ctx context.Context, tripID string) (*models.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r
		WHERE r.trip_id = $1 AND r.is_group ORDER BY r.created_at LIMIT 1`
	return r.queryRoom(ctx, query, tripID)
}

// FindByName retrieves the oldest room with exactly this name
func (r *ChatRoomRepository) FindByName(ctx context.Context, name string) (*models.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r WHERE r.name = $1 ORDER BY r.created_at LIMIT 1`
	return r.queryRoom(ctx, query, name)
}

// FindByApplication retrieves the private room linked to an application
func (r *ChatRoomRepository) FindByApplication(ctx context.Context, applicationID string) (*models.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r
		WHERE r.application_id = $1 ORDER BY r.created_at LIMIT 1`
	return r.queryRoom(ctx, query, applicationID)
}

// UpdateLink points a room at its current trip and application context and
// reopens it
func (r *ChatRoomRepository) UpdateLink(ctx context.Context, roomID string, tripID, applicationID *string) error {
	query := `
		UPDATE chat_rooms SET trip_id = $1, application_id = $2, is_closed = FALSE, closed_at = NULL
		WHERE id = $3
	`
	return r.exec(ctx, "update chat room link", query, tripID, applicationID, roomID)
}

// MarkGroup stamps a room as the group room of tripID
func (r *ChatRoomRepository) MarkGroup(ctx context.Context, roomID, tripID string) error {
	query := `UPDATE chat_rooms SET trip_id = $1, is_group = TRUE, is_private = FALSE WHERE id = $2`
	return r.exec(ctx, "mark group room", query, tripID, roomID)
}

// Rename changes the display name of a room
func (r *ChatRoomRepository) Rename(ctx context.Context, roomID, name string) error {
	return r.exec(ctx, "rename chat room", `UPDATE chat_rooms SET name = $1 WHERE id = $2`, name, roomID)
}

// Close flags a room as closed
func (r *ChatRoomRepository) Close(ctx context.Context, roomID string, at time.Time) error {
	query := `UPDATE chat_rooms SET is_closed = TRUE, closed_at = $1 WHERE id = $2`
	return r.exec(ctx, "close chat room", query, at, roomID)
}

// Delete deletes a room by ID
func (r *ChatRoomRepository) Delete(ctx context.Context, roomID string) error {
	return r.exec(ctx, "delete chat room", `DELETE FROM chat_rooms WHERE id = $1`, roomID)
}

// ListForUser retrieves the rooms a user belongs to, most recent first
func (r *ChatRoomRepository) ListForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms r
		JOIN chat_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rooms: %w", err)
	}
	return rooms, nil
}

func (r *ChatRoomRepository) queryRoom(ctx context.Context, query string, args ...any) (*models.ChatRoom, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", wrap(err))
	}
	return room, nil
}

func (r *ChatRoomRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, wrap(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat room not found: %w", ErrNotFound)
	}
	return nil
}

func scanRoom(row pgx.Row) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := row.Scan(
		&room.ID, &room.Name, &room.CreatorID, &room.TripID, &room.ApplicationID, &room.IsGroup, &room.IsPrivate,
		&room.IsClosed, &room.ClosedAt, &room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}
