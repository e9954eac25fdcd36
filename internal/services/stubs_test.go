package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"readthis-backend/internal/models"
	"readthis-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://bucket.test/"

// memUsers is an in-memory UserStore with the same rotation semantics as the SQL version
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	creates int
	failGet error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) copyOf(u *models.User) *models.User {
	c := *u
	c.RefreshTokens = slices.Clone(u.RefreshTokens)
	return &c
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.creates++
	m.byID[user.ID] = m.copyOf(user)
	return nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.byID {
		if match(u) {
			return m.copyOf(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memUsers) EmailOrUsernameExists(_ context.Context, email, username string) (bool, error) {
	_, err := m.find(func(u *models.User) bool { return u.Email == email || u.Username == username })
	return err == nil, nil
}

func (m *memUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := m.find(func(u *models.User) bool { return u.Username == username })
	return err == nil, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, username, imageURL *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if username != nil {
		for _, other := range m.byID {
			if other.ID != id && other.Username == *username {
				return nil, repository.ErrDuplicate
			}
		}
		u.Username = *username
	}
	if imageURL != nil {
		u.ImageURL = *imageURL
	}
	return m.copyOf(u), nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) AddRefreshToken(_ context.Context, userID, token string, expired []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshTokens = append(without(u.RefreshTokens, expired...), token)
	return nil
}

func (m *memUsers) RotateRefreshToken(_ context.Context, userID, oldToken, newToken string, expired []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok || !slices.Contains(u.RefreshTokens, oldToken) {
		return false, nil
	}
	u.RefreshTokens = append(without(u.RefreshTokens, append(expired, oldToken)...), newToken)
	return true, nil
}

func (m *memUsers) RemoveRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		u.RefreshTokens = without(u.RefreshTokens, token)
	}
	return nil
}

func (m *memUsers) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	return nil
}

func (m *memUsers) tokensOf(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.byID[userID].RefreshTokens)
}

func without(list []string, drop ...string) []string {
	out := []string{}
	for _, t := range list {
		if !slices.Contains(drop, t) {
			out = append(out, t)
		}
	}
	return out
}

// memPosts is an in-memory PostStore
type memPosts struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	likes    map[string][]string
	failList error
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]*models.Post{}, likes: map[string][]string{}}
}

func (m *memPosts) Create(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *post
	m.posts[post.ID] = &c
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memPosts) view(p *models.Post) *models.PostView {
	return &models.PostView{
		Post:          *p,
		Owner:         models.Owner{ID: p.OwnerID, Username: "owner", ImageURL: "profile/" + p.OwnerID + ".png"},
		Comments:      []models.CommentView{},
		UsersWhoLiked: slices.Clone(m.likes[p.ID]),
	}
}

func (m *memPosts) GetViewByID(_ context.Context, id string) (*models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.view(p), nil
}

func (m *memPosts) sorted(filter func(*models.Post) bool) []*models.PostView {
	var out []*models.PostView
	for _, p := range m.posts {
		if filter(p) {
			out = append(out, m.view(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memPosts) List(_ context.Context, limit, offset int) ([]*models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	all := m.sorted(func(*models.Post) bool { return true })
	if offset >= len(all) {
		return []*models.PostView{}, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (m *memPosts) ListAll(_ context.Context) ([]*models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(*models.Post) bool { return true }), nil
}

func (m *memPosts) ListByOwner(_ context.Context, ownerID string) ([]*models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(p *models.Post) bool { return p.OwnerID == ownerID }), nil
}

func (m *memPosts) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts), nil
}

func (m *memPosts) Update(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[post.ID]
	if !ok || p.OwnerID != post.OwnerID {
		return repository.ErrNotFound
	}
	c := *post
	m.posts[post.ID] = &c
	return nil
}

func (m *memPosts) UpdateImageURL(_ context.Context, id, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ImageURL = imageURL
	return nil
}

func (m *memPosts) Delete(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(m.posts, id)
	delete(m.likes, id)
	return nil
}

func (m *memPosts) Like(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.likes[postID], userID) {
		return false, nil
	}
	m.likes[postID] = append(m.likes[postID], userID)
	return true, nil
}

func (m *memPosts) Unlike(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.likes[postID], userID) {
		return false, nil
	}
	m.likes[postID] = without(m.likes[postID], userID)
	return true, nil
}

func (m *memPosts) imageOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id].ImageURL
}

// memComments is an in-memory CommentStore
type memComments struct {
	mu       sync.Mutex
	comments []*models.Comment
}

func (m *memComments) Create(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *comment
	m.comments = append(m.comments, &c)
	return nil
}

func (m *memComments) GetByID(_ context.Context, id string) (*models.CommentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.comments {
		if c.ID == id {
			return &models.CommentView{Comment: *c, Owner: models.Owner{ID: c.OwnerID, Username: "commenter", ImageURL: "profile/c.png"}}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memComments) List(_ context.Context, postID string) ([]*models.CommentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CommentView{}
	for _, c := range m.comments {
		if postID == "" || c.PostID == postID {
			out = append(out, &models.CommentView{Comment: *c, Owner: models.Owner{ID: c.OwnerID, Username: "commenter"}})
		}
	}
	return out, nil
}

func (m *memComments) Delete(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.comments {
		if c.ID == id && c.OwnerID == ownerID {
			m.comments = append(m.comments[:i], m.comments[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// memObjects is an in-memory ObjectStore
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	failPut error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return "", m.failPut
	}
	m.objects[key] = body
	m.types[key] = contentType
	return testBaseURL + key, nil
}

func (m *memObjects) Delete(_ context.Context, keyOrURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.TrimPrefix(keyOrURL, testBaseURL)
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memObjects) URL(key string) string { return testBaseURL + key }

func (m *memObjects) BaseURL() string { return testBaseURL }

func (m *memObjects) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// finderStub is a CoverFinder backed by a function
type finderStub struct {
	name  string
	calls int
	fn    func(ctx context.Context, title string) (string, error)
}

func (f *finderStub) Name() string { return f.name }

func (f *finderStub) FindCover(ctx context.Context, title string) (string, error) {
	f.calls++
	return f.fn(ctx, title)
}

func missFinder(name string) *finderStub {
	return &finderStub{name: name, fn: func(context.Context, string) (string, error) { return "", ErrNoCover }}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func pngUpload(t *testing.T) *Upload {
	return &Upload{Filename: "cover.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)}
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

func newTestMedia(store ObjectStore, finders ...CoverFinder) *MediaService {
	return NewMediaService(store, nil, 5<<20, "posts/DefaultBook.png", finders...)
}
