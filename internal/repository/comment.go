package repository

import (
	"context"
	"errors"
	"fmt"

	"readthis-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commentViewSelect = `
	SELECT c.id, c.text, c.owner_id, c.post_id, c.created_at, u.username, u.image_url
	FROM comments c
	JOIN users u ON u.id = c.owner_id
`

// CommentRepository handles database operations for comments
type CommentRepository struct {
	db *pgxpool.Pool
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{db: db}
}

func scanCommentView(row pgx.Row) (*models.CommentView, error) {
	var c models.CommentView
	err := row.Scan(&c.ID, &c.Text, &c.OwnerID, &c.PostID, &c.CreatedAt, &c.Owner.Username, &c.Owner.ImageURL)
	if err != nil {
		return nil, err
	}
	c.Owner.ID = c.OwnerID
	return &c, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, text, owner_id, post_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, comment.ID, comment.Text, comment.OwnerID, comment.PostID, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetByID retrieves a comment with its owner projection
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*models.CommentView, error) {
	c, err := scanCommentView(r.db.QueryRow(ctx, commentViewSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// List retrieves comments, optionally restricted to one post, oldest first
func (r *CommentRepository) List(ctx context.Context, postID string) ([]*models.CommentView, error) {
	query := commentViewSelect + ` ORDER BY c.created_at, c.id`
	args := []any{}
	if postID != "" {
		query = commentViewSelect + ` WHERE c.post_id = $1 ORDER BY c.created_at, c.id`
		args = append(args, postID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.CommentView{}
	for rows.Next() {
		c, err := scanCommentView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

// Delete deletes a comment owned by ownerID
func (r *CommentRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
