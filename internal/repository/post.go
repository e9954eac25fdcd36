package repository

import (
	"context"
	"errors"
	"fmt"

	"readthis-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postViewSelect = `
	SELECT p.id, p.title, p.content, p.image_url, p.owner_id, p.created_at, p.updated_at,
	       u.username, u.image_url
	FROM posts p
	JOIN users u ON u.id = p.owner_id
`

// PostRepository handles database operations for posts, their likes and embedded comments
type PostRepository struct {
	db *pgxpool.Pool
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *pgxpool.Pool) *PostRepository {
	return &PostRepository{db: db}
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, title, content, image_url, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		post.ID, post.Title, post.Content, post.ImageURL, post.OwnerID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID retrieves a bare post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `
		SELECT id, title, content, image_url, owner_id, created_at, updated_at
		FROM posts
		WHERE id = $1
	`
	var post models.Post
	err := r.db.QueryRow(ctx, query, id).Scan(
		&post.ID, &post.Title, &post.Content, &post.ImageURL, &post.OwnerID,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// GetViewByID retrieves a post with owner, comments and likers
func (r *PostRepository) GetViewByID(ctx context.Context, id string) (*models.PostView, error) {
	views, err := r.queryViews(ctx, postViewSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return views[0], nil
}

// List retrieves a page of posts, newest first
func (r *PostRepository) List(ctx context.Context, limit, offset int) ([]*models.PostView, error) {
	query := postViewSelect + `
		ORDER BY p.created_at DESC, p.id
		LIMIT $1 OFFSET $2
	`
	return r.queryViews(ctx, query, limit, offset)
}

// ListAll retrieves every post, newest first
func (r *PostRepository) ListAll(ctx context.Context) ([]*models.PostView, error) {
	return r.queryViews(ctx, postViewSelect+` ORDER BY p.created_at DESC, p.id`)
}

// ListByOwner retrieves every post of one user, newest first
func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.PostView, error) {
	query := postViewSelect + `
		WHERE p.owner_id = $1
		ORDER BY p.created_at DESC, p.id
	`
	return r.queryViews(ctx, query, ownerID)
}

// Count returns the total number of posts
func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return total, nil
}

// Update writes title, content and image URL of a post owned by post.OwnerID
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $3, content = $4, image_url = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2
	`
	result, err := r.db.Exec(ctx, query,
		post.ID, post.OwnerID, post.Title, post.Content, post.ImageURL, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateImageURL sets the image URL of a post
func (r *PostRepository) UpdateImageURL(ctx context.Context, id, imageURL string) error {
	result, err := r.db.Exec(ctx, `UPDATE posts SET image_url = $1 WHERE id = $2`, imageURL, id)
	if err != nil {
		return fmt.Errorf("failed to update post image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a post owned by ownerID
func (r *PostRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Like adds userID to the liker set. It reports false when the like already existed.
func (r *PostRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	query := `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to like post: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Unlike removes userID from the liker set. It reports false when there was no like.
func (r *PostRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to unlike post: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *PostRepository) queryViews(ctx context.Context, query string, args ...any) ([]*models.PostView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	views := []*models.PostView{}
	byID := map[string]*models.PostView{}
	var ids []string
	for rows.Next() {
		v := &models.PostView{Comments: []models.CommentView{}, UsersWhoLiked: []string{}}
		err := rows.Scan(
			&v.ID, &v.Title, &v.Content, &v.ImageURL, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt,
			&v.Owner.Username, &v.Owner.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		v.Owner.ID = v.OwnerID
		views = append(views, v)
		byID[v.ID] = v
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	if len(ids) == 0 {
		return views, nil
	}
	if err := r.attachComments(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.attachLikers(ctx, ids, byID); err != nil {
		return nil, err
	}
	return views, nil
}

func (r *PostRepository) attachComments(ctx context.Context, ids []string, byID map[string]*models.PostView) error {
	query := commentViewSelect + `
		WHERE c.post_id = ANY($1::uuid[])
		ORDER BY c.created_at, c.id
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCommentView(rows)
		if err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if v, ok := byID[c.PostID]; ok {
			v.Comments = append(v.Comments, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating comments: %w", err)
	}
	return nil
}

func (r *PostRepository) attachLikers(ctx context.Context, ids []string, byID map[string]*models.PostView) error {
	query := `
		SELECT post_id, user_id
		FROM post_likes
		WHERE post_id = ANY($1::uuid[])
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to get likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return fmt.Errorf("failed to scan like: %w", err)
		}
		if v, ok := byID[postID]; ok {
			v.UsersWhoLiked = append(v.UsersWhoLiked, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating likes: %w", err)
	}
	return nil
}
