package repository

import (
	"context"
	"errors"
	"fmt"

	"readthis-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, username, password, image_url, google_id, refresh_tokens, push_token, created_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, username, password, image_url, google_id, refresh_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.ImageURL,
		user.GoogleID, nonNil(user.RefreshTokens), user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.ImageURL,
		&user.GoogleID, &user.RefreshTokens, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// EmailOrUsernameExists checks whether either value is already taken
func (r *UserRepository) EmailOrUsernameExists(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// UsernameExists checks whether a username is taken
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// UpdateProfile sets username and/or image URL. Nil arguments leave the column unchanged.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, username, imageURL *string) (*models.User, error) {
	query := `
		UPDATE users
		SET username = COALESCE($2, username),
		    image_url = COALESCE($3, image_url)
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, id, username, imageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to update profile: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// Delete removes a user
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRefreshToken appends token to the user's active list, dropping any entries in expired.
func (r *UserRepository) AddRefreshToken(ctx context.Context, userID, token string, expired []string) error {
	query := `
		UPDATE users
		SET refresh_tokens = array_append(
			ARRAY(SELECT t FROM unnest(refresh_tokens) AS t WHERE t <> ALL($2::text[])),
			$3::text)
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, userID, nonNil(expired), token)
	if err != nil {
		return fmt.Errorf("failed to add refresh token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken replaces oldToken by newToken in a single statement. It reports false,
// without writing, when oldToken is no longer in the user's list.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string, expired []string) (bool, error) {
	query := `
		UPDATE users
		SET refresh_tokens = array_append(
			ARRAY(SELECT t FROM unnest(refresh_tokens) AS t WHERE t <> $3 AND t <> ALL($2::text[])),
			$4::text)
		WHERE id = $1 AND $3 = ANY(refresh_tokens)
	`
	result, err := r.db.Exec(ctx, query, userID, nonNil(expired), oldToken, newToken)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// RemoveRefreshToken drops token from whichever user holds it
func (r *UserRepository) RemoveRefreshToken(ctx context.Context, token string) error {
	query := `
		UPDATE users
		SET refresh_tokens = array_remove(refresh_tokens, $1)
		WHERE $1 = ANY(refresh_tokens)
	`
	if _, err := r.db.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
