package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"readthis-backend/internal/models"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI issues numbered token pairs and accepts only the latest access token
type fakeAPI struct {
	mu        sync.Mutex
	issued    int
	access    string
	refresh   string
	likes     int
	refreshes int
	lastPage  string
}

func (f *fakeAPI) nextPair() (string, string) {
	f.issued++
	f.access = "access-" + strconv.Itoa(f.issued)
	f.refresh = "refresh-" + strconv.Itoa(f.issued)
	return f.access, f.refresh
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter22" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Wrong username or password", Code: models.CodeUnauthorized})
			return
		}
		f.mu.Lock()
		access, refresh := f.nextPair()
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": access, "refreshToken": refresh, "id": "user-1"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.refreshes++
		if body["refreshToken"] != f.refresh {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid refresh token", Code: models.CodeUnauthorized})
			return
		}
		access, refresh := f.nextPair()
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": access, "refreshToken": refresh, "id": "user-1"})
	})
	mux.HandleFunc("POST /posts/like/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+f.access {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid token", Code: models.CodeUnauthorized})
			return
		}
		f.likes++
		writeJSON(w, http.StatusOK, map[string]any{"message": "Post liked"})
	})
	mux.HandleFunc("GET /posts/paged", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastPage = r.URL.Query().Get("page")
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, models.PagedPosts{Posts: []*models.PostView{}, TotalPages: 4})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
	})
	return mux
}

func newFakeServer(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return api, New(srv.URL+"/", srv.Client())
}

func TestLogin_StoresTokens(t *testing.T) {
	_, c := newFakeServer(t)

	require.NoError(t, c.Login(context.Background(), "ann", "hunter22"))
	assert.Equal(t, models.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}, c.Tokens())
	assert.Equal(t, "user-1", c.UserID())
}

func TestLogin_APIError(t *testing.T) {
	_, c := newFakeServer(t)

	err := c.Login(context.Background(), "ann", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Wrong username or password", apiErr.Message)
	assert.Equal(t, models.CodeUnauthorized, apiErr.Code)
	assert.Empty(t, c.Tokens().AccessToken)
}

func TestLike_RefreshesOnceAfterUnauthorized(t *testing.T) {
	api, c := newFakeServer(t)
	require.NoError(t, c.Login(context.Background(), "ann", "hunter22"))

	// The server has moved on; the stored access token is stale.
	api.mu.Lock()
	api.access = "rotated-elsewhere"
	api.mu.Unlock()

	require.NoError(t, c.Like(context.Background(), "post-1"))

	assert.Equal(t, 1, api.refreshes)
	assert.Equal(t, 1, api.likes)
	assert.Equal(t, models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, c.Tokens())
}

func TestLike_FailedRefreshIsReturned(t *testing.T) {
	api, c := newFakeServer(t)
	c.SetTokens(models.TokenPair{AccessToken: "stale", RefreshToken: "revoked"})

	err := c.Like(context.Background(), "post-1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 1, api.refreshes)
	assert.Zero(t, api.likes)
}

func TestFeed(t *testing.T) {
	api, c := newFakeServer(t)

	page, err := c.Feed(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "2", api.lastPage)
	assert.Equal(t, 4, page.TotalPages)
	assert.Empty(t, page.Posts)
}

func TestLogout_ClearsSession(t *testing.T) {
	_, c := newFakeServer(t)
	require.NoError(t, c.Login(context.Background(), "ann", "hunter22"))

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, models.TokenPair{}, c.Tokens())
	assert.Empty(t, c.UserID())
}

func TestRefresh_WithoutSession(t *testing.T) {
	_, c := newFakeServer(t)
	assert.Error(t, c.Refresh(context.Background()))
}
