package services

import (
	"context"
	"strings"
	"time"

	"readthis-backend/internal/models"

	"github.com/google/uuid"
)

// CommentService handles comments on posts
type CommentService struct {
	comments CommentStore
	posts    PostStore
	media    *MediaService
	notifier *Notifications
}

// NewCommentService creates a new comment service. notifier may be nil.
func NewCommentService(comments CommentStore, posts PostStore, media *MediaService, notifier *Notifications) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		media:    media,
		notifier: notifier,
	}
}

// Create adds a comment to an existing post and notifies the post owner
func (s *CommentService) Create(ctx context.Context, userID, postID, text string) (*models.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if !validID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "Post", postID)
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		OwnerID:   userID,
		PostID:    postID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	view, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	view.Owner.ImageURL = s.media.NormalizeURL(view.Owner.ImageURL)

	s.notifier.Notify(post.OwnerID, WSMessage{
		Type:      EventPostCommented,
		PostID:    post.ID,
		PostTitle: post.Title,
		ActorID:   userID,
		Message:   view.Owner.Username + " commented: " + text,
	})

	return view, nil
}

// Get returns a single comment
func (s *CommentService) Get(ctx context.Context, id string) (*models.CommentView, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	view, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Comment", id)
	}
	view.Owner.ImageURL = s.media.NormalizeURL(view.Owner.ImageURL)
	return view, nil
}

// List returns comments oldest first, optionally only those on postID
func (s *CommentService) List(ctx context.Context, postID string) ([]*models.CommentView, error) {
	if postID != "" && !validID(postID) {
		return []*models.CommentView{}, nil
	}
	views, err := s.comments.List(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if views == nil {
		views = []*models.CommentView{}
	}
	for _, v := range views {
		v.Owner.ImageURL = s.media.NormalizeURL(v.Owner.ImageURL)
	}
	return views, nil
}

// Delete removes a comment written by userID. Comments of other users are reported as
// not found.
func (s *CommentService) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return models.NewNotFoundError("Comment", id)
	}
	if err := s.comments.Delete(ctx, id, userID); err != nil {
		return lookupErr(err, "Comment", id)
	}
	return nil
}
