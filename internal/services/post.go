package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"readthis-backend/internal/models"
	"readthis-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Paging defaults
const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100
)

// CreatePostInput carries the create form. Image is optional.
type CreatePostInput struct {
	Title   string
	Content string
	Image   *Upload
}

// UpdatePostInput carries the update form. Nil fields are left unchanged.
type UpdatePostInput struct {
	Title   *string
	Content *string
	Image   *Upload
}

// PostService handles post business logic
type PostService struct {
	posts    PostStore
	comments *CommentService
	media    *MediaService
	notifier *Notifications
	now      func() time.Time
}

// NewPostService creates a new post service. notifier may be nil.
func NewPostService(posts PostStore, comments *CommentService, media *MediaService, notifier *Notifications) *PostService {
	return &PostService{
		posts:    posts,
		comments: comments,
		media:    media,
		notifier: notifier,
		now:      time.Now,
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookupErr converts a repository error into an AppError
func lookupErr(err error, resource, id string) *models.AppError {
	if errors.Is(err, repository.ErrNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// MaxPage keeps (page-1)*limit within int for any accepted limit
const MaxPage = math.MaxInt / MaxLimit

// NormalizePaging applies the feed defaults: page below 1 becomes 1, limit below 1
// becomes DefaultLimit and limit is capped at MaxLimit. Page is capped at MaxPage.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Create stores a post. Without an uploaded image a cover is looked up by title; the post
// always ends up with an image URL.
func (s *PostService) Create(ctx context.Context, ownerID string, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, models.NewValidationError("Title and content are required")
	}
	if in.Image != nil {
		if err := s.media.Validate(in.Image); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	post := &models.Post{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   in.Content,
		ImageURL:  s.media.DefaultCoverURL(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	var imageURL string
	if in.Image != nil {
		url, err := s.media.StorePostImage(ctx, post.ID, in.Image)
		if err != nil {
			if delErr := s.posts.Delete(ctx, post.ID, ownerID); delErr != nil {
				log.Error().Err(delErr).Str("post_id", post.ID).Msg("Failed to roll back post after image upload failure")
			}
			return nil, models.NewInternalError(err)
		}
		imageURL = url
	} else {
		imageURL = s.media.CoverForTitle(ctx, post.Title, post.ID)
	}

	if imageURL != post.ImageURL {
		if err := s.posts.UpdateImageURL(ctx, post.ID, imageURL); err != nil {
			return nil, models.NewInternalError(err)
		}
		post.ImageURL = imageURL
	}

	log.Info().Str("post_id", post.ID).Str("owner_id", ownerID).Msg("Post created")
	return post, nil
}

// ownedPost loads a post and hides it from anyone but its owner
func (s *PostService) ownedPost(ctx context.Context, userID, postID string) (*models.Post, error) {
	if !validID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "Post", postID)
	}
	if post.OwnerID != userID {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// Update changes a post owned by userID. A new image is stored under a fresh key and the
// previous one removed.
func (s *PostService) Update(ctx context.Context, userID, postID string, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t != "" {
			post.Title = t
		}
	}
	if in.Content != nil {
		if c := strings.TrimSpace(*in.Content); c != "" {
			post.Content = c
		}
	}

	oldImage := post.ImageURL
	if in.Image != nil {
		url, err := s.media.ReplacePostImage(ctx, post.ID, in.Image)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, appErr
			}
			return nil, models.NewInternalError(err)
		}
		post.ImageURL = url
	}
	post.UpdatedAt = s.now().UTC()

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, lookupErr(err, "Post", postID)
	}
	if post.ImageURL != oldImage {
		s.media.DeleteImage(ctx, oldImage)
	}

	post.ImageURL = s.media.NormalizePostImage(post.ImageURL)
	return post, nil
}

// Delete removes a post owned by userID and its stored image
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID, userID); err != nil {
		return lookupErr(err, "Post", postID)
	}
	s.media.DeleteImage(ctx, post.ImageURL)

	log.Info().Str("post_id", postID).Str("owner_id", userID).Msg("Post deleted")
	return nil
}

func (s *PostService) normalize(views []*models.PostView) []*models.PostView {
	if views == nil {
		views = []*models.PostView{}
	}
	for _, v := range views {
		s.media.NormalizeView(v)
	}
	return views
}

// GetAll returns every post newest first, optionally only those of ownerID
func (s *PostService) GetAll(ctx context.Context, ownerID string) ([]*models.PostView, error) {
	var (
		views []*models.PostView
		err   error
	)
	switch {
	case ownerID == "":
		views, err = s.posts.ListAll(ctx)
	case validID(ownerID):
		views, err = s.posts.ListByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.normalize(views), nil
}

// GetAllPaged returns one page of the feed. The page and the total count are fetched
// concurrently.
func (s *PostService) GetAllPaged(ctx context.Context, page, limit int) (*models.PagedPosts, error) {
	page, limit = NormalizePaging(page, limit)
	offset := (page - 1) * limit

	var (
		views []*models.PostView
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.posts.List(gctx, limit, offset)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.posts.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, models.NewInternalError(err)
	}

	return &models.PagedPosts{
		Posts:      s.normalize(views),
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// GetByID returns a single post view
func (s *PostService) GetByID(ctx context.Context, postID string) (*models.PostView, error) {
	if !validID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	view, err := s.posts.GetViewByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "Post", postID)
	}
	s.media.NormalizeView(view)
	return view, nil
}

// GetMine returns the caller's posts
func (s *PostService) GetMine(ctx context.Context, userID string) ([]*models.PostView, error) {
	views, err := s.posts.ListByOwner(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.normalize(views), nil
}

// Like adds the caller to the post's liker set. Liking twice is a conflict.
func (s *PostService) Like(ctx context.Context, userID, postID string) (*models.PostView, error) {
	post, err := s.existingPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	added, err := s.posts.Like(ctx, postID, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !added {
		return nil, models.NewConflictError("Post already liked")
	}

	s.notifier.Notify(post.OwnerID, WSMessage{
		Type:      EventPostLiked,
		PostID:    post.ID,
		PostTitle: post.Title,
		ActorID:   userID,
		Message:   "Someone liked your post",
	})

	return s.GetByID(ctx, postID)
}

// Unlike removes the caller from the post's liker set. Unliking a post that was not
// liked is a conflict.
func (s *PostService) Unlike(ctx context.Context, userID, postID string) (*models.PostView, error) {
	if _, err := s.existingPost(ctx, postID); err != nil {
		return nil, err
	}

	removed, err := s.posts.Unlike(ctx, postID, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !removed {
		return nil, models.NewConflictError("Post not liked yet")
	}

	return s.GetByID(ctx, postID)
}

func (s *PostService) existingPost(ctx context.Context, postID string) (*models.Post, error) {
	if !validID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "Post", postID)
	}
	return post, nil
}

// AddComment comments on a post as userID
func (s *PostService) AddComment(ctx context.Context, userID, postID, text string) (*models.CommentView, error) {
	return s.comments.Create(ctx, userID, postID, text)
}
