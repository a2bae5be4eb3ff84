package repository

import (
	"context"
	"fmt"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, room_id, user_id, content, is_file, file_url, file_path, file_name, file_type,
	file_size, created_at`

// ChatMessageRepository handles database operations for chat messages
type ChatMessageRepository struct {
	db *pgxpool.Pool
}

// NewChatMessageRepository creates a new chat message repository
func NewChatMessageRepository(db *pgxpool.Pool) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

// Create inserts a message
func (r *ChatMessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, room_id, user_id, content, is_file, file_url, file_path, file_name,
			file_type, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.IsFile, msg.FileURL, msg.FilePath, msg.FileName,
		msg.FileType, msg.FileSize, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", wrap(err))
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *ChatMessageRepository) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", wrap(err))
	}
	return msg, nil
}

// ListByRoom retrieves the latest limit messages of a room in chronological order
func (r *ChatMessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT * FROM (
			SELECT ` + messageColumns + ` FROM chat_messages
			WHERE room_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

// LastByRoom retrieves the most recent message of a room
func (r *ChatMessageRepository) LastByRoom(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT 1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to get last message: %w", wrap(err))
	}
	return msg, nil
}

// ClearFile drops the attachment of a file message and replaces its content
func (r *ChatMessageRepository) ClearFile(ctx context.Context, id, content string) error {
	query := `
		UPDATE chat_messages SET content = $1, is_file = FALSE, file_url = NULL, file_path = NULL,
			file_name = NULL, file_type = NULL, file_size = NULL
		WHERE id = $2
	`
	result, err := r.db.Exec(ctx, query, content, id)
	if err != nil {
		return fmt.Errorf("failed to clear message file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message not found: %w", ErrNotFound)
	}
	return nil
}

// DeleteByRoom deletes every message of a room
func (r *ChatMessageRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room messages: %w", err)
	}
	return nil
}

// FileStats aggregates file count and size per content type for a room
func (r *ChatMessageRepository) FileStats(ctx context.Context, roomID string) ([]models.FileStat, error) {
	query := `
		SELECT COALESCE(file_type, 'unknown'), COUNT(*), COALESCE(SUM(file_size), 0)
		FROM chat_messages
		WHERE room_id = $1 AND is_file
		GROUP BY 1
		ORDER BY 1
	`
	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}
	defer rows.Close()

	var stats []models.FileStat
	for rows.Next() {
		var s models.FileStat
		if err := rows.Scan(&s.FileType, &s.FileCount, &s.TotalBytes); err != nil {
			return nil, fmt.Errorf("failed to scan file stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file stats: %w", err)
	}
	return stats, nil
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := row.Scan(
		&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.IsFile, &msg.FileURL, &msg.FilePath, &msg.FileName,
		&msg.FileType, &msg.FileSize, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
