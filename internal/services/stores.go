package services

import (
	"context"

	"readthis-backend/internal/models"
)

// UserStore is the persistence the auth service depends on
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailOrUsernameExists(ctx context.Context, email, username string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, username, imageURL *string) (*models.User, error)
	Delete(ctx context.Context, id string) error
	AddRefreshToken(ctx context.Context, userID, token string, expired []string) error
	RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string, expired []string) (bool, error)
	RemoveRefreshToken(ctx context.Context, token string) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// PostStore is the persistence the post service depends on
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetViewByID(ctx context.Context, id string) (*models.PostView, error)
	List(ctx context.Context, limit, offset int) ([]*models.PostView, error)
	ListAll(ctx context.Context) ([]*models.PostView, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.PostView, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateImageURL(ctx context.Context, id, imageURL string) error
	Delete(ctx context.Context, id, ownerID string) error
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
}

// CommentStore is the persistence the comment service depends on
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.CommentView, error)
	List(ctx context.Context, postID string) ([]*models.CommentView, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// ObjectStore stores images and resolves their public URLs
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, keyOrURL string) error
	URL(key string) string
	BaseURL() string
}
