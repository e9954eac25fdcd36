package handlers

import (
	"context"
	"sync/atomic"

	"readthis-backend/internal/models"
	"readthis-backend/internal/repository"
)

// postStoreStub is a PostStore whose behaviour is set per test. Unset lookups report
// not found. Every call is counted.
type postStoreStub struct {
	calls atomic.Int32

	getByID     func(id string) (*models.Post, error)
	getViewByID func(id string) (*models.PostView, error)
	list        func(limit, offset int) ([]*models.PostView, error)
	count       func() (int, error)
	like        func(postID, userID string) (bool, error)
}

func (s *postStoreStub) Create(context.Context, *models.Post) error {
	s.calls.Add(1)
	return nil
}

func (s *postStoreStub) GetByID(_ context.Context, id string) (*models.Post, error) {
	s.calls.Add(1)
	if s.getByID == nil {
		return nil, repository.ErrNotFound
	}
	return s.getByID(id)
}

func (s *postStoreStub) GetViewByID(_ context.Context, id string) (*models.PostView, error) {
	s.calls.Add(1)
	if s.getViewByID == nil {
		return nil, repository.ErrNotFound
	}
	return s.getViewByID(id)
}

func (s *postStoreStub) List(_ context.Context, limit, offset int) ([]*models.PostView, error) {
	s.calls.Add(1)
	if s.list == nil {
		return []*models.PostView{}, nil
	}
	return s.list(limit, offset)
}

func (s *postStoreStub) ListAll(context.Context) ([]*models.PostView, error) {
	s.calls.Add(1)
	return []*models.PostView{}, nil
}

func (s *postStoreStub) ListByOwner(context.Context, string) ([]*models.PostView, error) {
	s.calls.Add(1)
	return []*models.PostView{}, nil
}

func (s *postStoreStub) Count(context.Context) (int, error) {
	s.calls.Add(1)
	if s.count == nil {
		return 0, nil
	}
	return s.count()
}

func (s *postStoreStub) Update(context.Context, *models.Post) error {
	s.calls.Add(1)
	return repository.ErrNotFound
}

func (s *postStoreStub) UpdateImageURL(context.Context, string, string) error {
	s.calls.Add(1)
	return nil
}

func (s *postStoreStub) Delete(context.Context, string, string) error {
	s.calls.Add(1)
	return repository.ErrNotFound
}

func (s *postStoreStub) Like(_ context.Context, postID, userID string) (bool, error) {
	s.calls.Add(1)
	if s.like == nil {
		return true, nil
	}
	return s.like(postID, userID)
}

func (s *postStoreStub) Unlike(context.Context, string, string) (bool, error) {
	s.calls.Add(1)
	return false, nil
}

// userStoreStub is a UserStore holding at most one user
type userStoreStub struct {
	calls atomic.Int32
	user  *models.User
}

func (s *userStoreStub) lookup(match bool) (*models.User, error) {
	s.calls.Add(1)
	if s.user == nil || !match {
		return nil, repository.ErrNotFound
	}
	c := *s.user
	return &c, nil
}

func (s *userStoreStub) Create(context.Context, *models.User) error {
	s.calls.Add(1)
	return nil
}

func (s *userStoreStub) GetByID(_ context.Context, id string) (*models.User, error) {
	return s.lookup(s.user != nil && s.user.ID == id)
}

func (s *userStoreStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.lookup(s.user != nil && s.user.Email == email)
}

func (s *userStoreStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.lookup(s.user != nil && s.user.Username == username)
}

func (s *userStoreStub) EmailOrUsernameExists(context.Context, string, string) (bool, error) {
	s.calls.Add(1)
	return false, nil
}

func (s *userStoreStub) UsernameExists(context.Context, string) (bool, error) {
	s.calls.Add(1)
	return false, nil
}

func (s *userStoreStub) UpdateProfile(context.Context, string, *string, *string) (*models.User, error) {
	s.calls.Add(1)
	return nil, repository.ErrNotFound
}

func (s *userStoreStub) Delete(context.Context, string) error {
	s.calls.Add(1)
	return nil
}

func (s *userStoreStub) AddRefreshToken(context.Context, string, string, []string) error {
	s.calls.Add(1)
	return nil
}

func (s *userStoreStub) RotateRefreshToken(context.Context, string, string, string, []string) (bool, error) {
	s.calls.Add(1)
	return false, nil
}

func (s *userStoreStub) RemoveRefreshToken(context.Context, string) error {
	s.calls.Add(1)
	return nil
}

func (s *userStoreStub) UpdatePushToken(context.Context, string, *string) error {
	s.calls.Add(1)
	return nil
}

type commentStoreStub struct{}

func (commentStoreStub) Create(context.Context, *models.Comment) error { return nil }

func (commentStoreStub) GetByID(context.Context, string) (*models.CommentView, error) {
	return nil, repository.ErrNotFound
}

func (commentStoreStub) List(context.Context, string) ([]*models.CommentView, error) {
	return []*models.CommentView{}, nil
}

func (commentStoreStub) Delete(context.Context, string, string) error {
	return repository.ErrNotFound
}

type objectStoreStub struct{}

func (objectStoreStub) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "https://bucket.test/" + key, nil
}

func (objectStoreStub) Delete(context.Context, string) error { return nil }

func (objectStoreStub) URL(key string) string { return "https://bucket.test/" + key }

func (objectStoreStub) BaseURL() string { return "https://bucket.test/" }

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }
