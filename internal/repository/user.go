package repository

import (
	"context"
	"fmt"
	"time"

	"trip-share-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, first_name, last_name, document_number, sex,
	birth_date, age, estuserid, avatar_url, push_token, email_confirmed, confirmation_token, created_at`

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db    *pgxpool.Pool
	table string
}

// NewUserRepository creates a new user repository. The profile table lives in
// a configurable schema and table.
func NewUserRepository(db *pgxpool.Pool, schema, table string) *UserRepository {
	return &UserRepository{
		db:    db,
		table: pgx.Identifier{schema, table}.Sanitize(),
	}
}

// Table returns the sanitized, schema-qualified profile table name
func (r *UserRepository) Table() string {
	return r.table
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, first_name, last_name, document_number, sex,
			birth_date, age, estuserid, email_confirmed, confirmation_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, r.table)
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.DocumentNumber, user.Sex,
		user.BirthDate.Time, user.Age, user.EstUserID, user.EmailConfirmed, user.ConfirmationToken, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", wrap(err))
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, r.table)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", wrap(err))
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(email) = lower($1)`, userColumns, r.table)
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", wrap(err))
	}
	return user, nil
}

// ConfirmEmail marks the account owning token as confirmed
func (r *UserRepository) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET email_confirmed = TRUE, confirmation_token = ''
		WHERE confirmation_token = $1 AND confirmation_token <> ''
		RETURNING %s
	`, r.table, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, token))
	if err != nil {
		return nil, fmt.Errorf("failed to confirm email: %w", wrap(err))
	}
	return user, nil
}

// UpdateProfile rewrites the editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		UPDATE %s SET first_name = $2, last_name = $3, document_number = $4, sex = $5,
			birth_date = $6, age = $7, email = $8
		WHERE id = $1
	`, r.table)
	result, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.DocumentNumber, user.Sex,
		user.BirthDate.Time, user.Age, user.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", wrap(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := fmt.Sprintf(`UPDATE %s SET push_token = $1 WHERE id = $2`, r.table)
	_, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// UpdateAvatarURL stores the public URL of the user's avatar
func (r *UserRepository) UpdateAvatarURL(ctx context.Context, userID, url string) error {
	query := fmt.Sprintf(`UPDATE %s SET avatar_url = $1 WHERE id = $2`, r.table)
	result, err := r.db.Exec(ctx, query, url, userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user  models.User
		birth time.Time
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.DocumentNumber, &user.Sex,
		&birth, &user.Age, &user.EstUserID, &user.AvatarURL, &user.PushToken, &user.EmailConfirmed,
		&user.ConfirmationToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.BirthDate = models.DateOf(birth)
	return &user, nil
}
