package models

import "time"

// PasswordSentinel is stored as the password of users created through Google sign-in.
// It is not a bcrypt hash, so password login for such users always fails.
const PasswordSentinel = "google-auth"

// User represents a registered reader
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	ImageURL      string    `json:"imageUrl"`
	GoogleID      *string   `json:"googleId,omitempty"`
	RefreshTokens []string  `json:"-"`
	PushToken     *string   `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Profile is the public projection returned by /auth/me
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
}

// Owner is the projection of a user embedded in posts and comments
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Post represents a post about a book
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostView is a post with its owner, comments and liker set
type PostView struct {
	Post
	Owner         Owner         `json:"owner"`
	Comments      []CommentView `json:"comments"`
	UsersWhoLiked []string      `json:"usersWhoLiked"`
}

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	OwnerID   string    `json:"ownerId"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentView is a comment with its owner projection
type CommentView struct {
	Comment
	Owner Owner `json:"owner"`
}

// TokenPair is the session credential pair returned by login, refresh and Google sign-in
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// PagedPosts is one page of the feed
type PagedPosts struct {
	Posts      []*PostView `json:"posts"`
	TotalPages int         `json:"totalPages"`
}
