package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"readthis-backend/internal/models"
	"readthis-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const usernameAttempts = 5

// AuthResult is returned by login and refresh
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ID           string `json:"id"`
}

// GoogleAuthResult is returned by Google sign-in: the user fields plus the token pair
type GoogleAuthResult struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ImageURL     string `json:"imageUrl"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput carries the registration form
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Image    *Upload
}

// AuthService handles registration, sessions and profiles
type AuthService struct {
	users    UserStore
	tokens   *TokenManager
	media    *MediaService
	verifier IdentityVerifier
}

// NewAuthService creates a new auth service. verifier may be nil when Google sign-in is
// not configured.
func NewAuthService(users UserStore, tokens *TokenManager, media *MediaService, verifier IdentityVerifier) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		media:    media,
		verifier: verifier,
	}
}

// Authenticate verifies an access token and returns the user id. It does not consult the
// database.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	return s.tokens.ParseAccess(accessToken)
}

// Register creates a user with a hashed password and stores the profile image
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required: email, username, password.")
	}
	if in.Image == nil {
		return nil, models.NewValidationError("Profile image is required.")
	}
	if err := s.media.Validate(in.Image); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailOrUsernameExists(ctx, in.Email, in.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if exists {
		return nil, errUserExists()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errUserExists()
		}
		return nil, models.NewInternalError(err)
	}

	imageURL, err := s.media.StoreProfileImage(ctx, user.ID, in.Image)
	if err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			log.Error().Err(delErr).Str("user_id", user.ID).Msg("Failed to roll back user after image upload failure")
		}
		return nil, models.NewInternalError(err)
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, nil, &imageURL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return updated, nil
}

func errUserExists() *models.AppError {
	return models.NewValidationError("Username or Email already exists. Please try a different one.")
}

// Login verifies the password and opens a new session
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewValidationError("User not found")
		}
		return nil, models.NewInternalError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Wrong username or password")
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, ID: user.ID}, nil
}

// openSession mints a pair and appends its refresh token, pruning stale ones
func (s *AuthService) openSession(ctx context.Context, user *models.User) (models.TokenPair, error) {
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.TokenPair{}, models.NewInternalError(err)
	}
	if err := s.users.AddRefreshToken(ctx, user.ID, pair.RefreshToken, s.tokens.Stale(user.RefreshTokens)); err != nil {
		return models.TokenPair{}, models.NewInternalError(err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is removed in the
// same write that stores its replacement, so it can be used at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, models.NewValidationError("Refresh token is required")
	}

	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewUnauthorizedError("Invalid refresh token")
		}
		return nil, models.NewInternalError(err)
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken, s.tokens.Stale(user.RefreshTokens))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !rotated {
		log.Warn().Str("user_id", user.ID).Msg("Refresh token not in active list")
		return nil, models.NewUnauthorizedError("Invalid refresh token")
	}

	return &AuthResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, ID: user.ID}, nil
}

// Logout removes the refresh token from storage. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return models.NewValidationError("Refresh token is required")
	}
	if err := s.users.RemoveRefreshToken(ctx, refreshToken); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Me returns the caller's public profile
func (s *AuthService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		ImageURL: s.media.NormalizeURL(user.ImageURL),
	}, nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// UpdateProfile changes the username and/or avatar. Empty username and nil image leave
// the respective field unchanged.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, username string, image *Upload) (*models.User, error) {
	current, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var newUsername, newImage *string
	if username = strings.TrimSpace(username); username != "" && username != current.Username {
		taken, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if taken {
			return nil, models.NewValidationError("Username already exists")
		}
		newUsername = &username
	}

	if image != nil {
		url, err := s.media.StoreProfileImage(ctx, userID, image)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, appErr
			}
			return nil, models.NewInternalError(err)
		}
		newImage = &url
	}

	user, err := s.users.UpdateProfile(ctx, userID, newUsername, newImage)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, models.NewValidationError("Username already exists")
		case errors.Is(err, repository.ErrNotFound):
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, models.NewInternalError(err)
	}
	user.ImageURL = s.media.NormalizeURL(user.ImageURL)
	return user, nil
}

// UpdatePushToken registers or clears (empty token) the caller's APNs device token
func (s *AuthService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var value *string
	if token = strings.TrimSpace(token); token != "" {
		value = &token
	}
	if err := s.users.UpdatePushToken(ctx, userID, value); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.NewNotFoundError("User", userID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GoogleAuth verifies a Google credential, finds or creates the local user by email and
// opens a session exactly like a password login.
func (s *AuthService) GoogleAuth(ctx context.Context, credential string) (*GoogleAuthResult, error) {
	if credential == "" {
		return nil, models.NewValidationError("Credential is required")
	}
	if s.verifier == nil {
		return nil, models.NewInternalError(errors.New("google sign-in is not configured"))
	}

	identity, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		log.Warn().Err(err).Msg("Google credential rejected")
		return nil, models.NewUnauthorizedError("Invalid Google credential")
	}
	if identity.Email == "" {
		return nil, models.NewUnauthorizedError("Email missing from Google token")
	}
	if !identity.EmailVerified {
		return nil, models.NewUnauthorizedError("Google email is not verified")
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.createGoogleUser(ctx, identity)
	}
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(err)
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	return &GoogleAuthResult{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		ImageURL:     s.media.NormalizeURL(user.ImageURL),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *AuthService) createGoogleUser(ctx context.Context, identity *GoogleIdentity) (*models.User, error) {
	base := UsernameFromIdentity(identity.Name, identity.Email)

	username := base
	for attempt := 0; ; attempt++ {
		taken, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		if attempt == usernameAttempts {
			return nil, errors.New("could not derive a free username")
		}
		username = base + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        identity.Email,
		Username:     username,
		PasswordHash: models.PasswordSentinel,
		ImageURL:     identity.Picture,
		CreatedAt:    time.Now().UTC(),
	}
	if identity.Subject != "" {
		sub := identity.Subject
		user.GoogleID = &sub
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent first sign-in for the same email.
			return s.users.GetByEmail(ctx, identity.Email)
		}
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User created from Google sign-in")
	return user, nil
}

// UsernameFromIdentity derives a username from a display name (whitespace removed,
// lowercased) or, failing that, the local part of the email address.
func UsernameFromIdentity(name, email string) string {
	if u := strings.ToLower(strings.Join(strings.Fields(name), "")); u != "" {
		return u
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
