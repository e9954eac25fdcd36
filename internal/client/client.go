// Package client is a Go client for the readthis REST API. It keeps the session token
// pair and rotates it on refresh.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"readthis-backend/internal/models"

	json "github.com/goccy/go-json"
)

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client calls the API on behalf of one user
type Client struct {
	baseURL string
	http    *http.Client

	mu     sync.RWMutex
	tokens models.TokenPair
	userID string
}

// New creates a client for baseURL, e.g. http://localhost:3000
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// Tokens returns the current token pair
func (c *Client) Tokens() models.TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// SetTokens replaces the stored token pair, e.g. after restoring a saved session
func (c *Client) SetTokens(pair models.TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = pair
}

// UserID returns the id of the logged in user
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

type authResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ID           string `json:"id"`
}

func (c *Client) store(resp authResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = models.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if resp.ID != "" {
		c.userID = resp.ID
	}
}

// Login opens a session with username and password
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp authResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, false, &resp); err != nil {
		return err
	}
	c.store(resp)
	return nil
}

// Refresh exchanges the stored refresh token for a new pair
func (c *Client) Refresh(ctx context.Context) error {
	refresh := c.Tokens().RefreshToken
	if refresh == "" {
		return errors.New("no refresh token")
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh}, false, &resp); err != nil {
		return err
	}
	c.store(resp)
	return nil
}

// Logout ends the session and forgets the tokens
func (c *Client) Logout(ctx context.Context) error {
	refresh := c.Tokens().RefreshToken
	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh}, false, nil)

	c.mu.Lock()
	c.tokens = models.TokenPair{}
	c.userID = ""
	c.mu.Unlock()
	return err
}

// Me returns the logged in user's profile
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, true, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Feed returns one page of posts
func (c *Client) Feed(ctx context.Context, page, limit int) (*models.PagedPosts, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out models.PagedPosts
	if err := c.do(ctx, http.MethodGet, "/posts/paged?"+q.Encode(), nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Like likes a post. An expired access token is refreshed and the call retried once.
func (c *Client) Like(ctx context.Context, postID string) error {
	path := "/posts/like/" + url.PathEscape(postID)
	err := c.do(ctx, http.MethodPost, path, nil, true, nil)
	if !IsUnauthorized(err) {
		return err
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		return fmt.Errorf("failed to refresh session: %w", rerr)
	}
	return c.do(ctx, http.MethodPost, path, nil, true, nil)
}

// Unlike removes the caller's like from a post
func (c *Client) Unlike(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/posts/unlike/"+url.PathEscape(postID), nil, true, nil)
}

// Recommend asks for books similar to title
func (c *Client) Recommend(ctx context.Context, title string) ([]string, error) {
	var out struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := c.do(ctx, http.MethodPost, "/books/recommend", map[string]string{"bookTitle": title}, false, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.Tokens().AccessToken; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody models.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errBody); err == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Code = errBody.Code
		}
		return apiErr
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
