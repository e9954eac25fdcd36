package middleware

import (
	"context"
	"net/http"
	"strings"

	"readthis-backend/internal/models"

	json "github.com/goccy/go-json"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator verifies an access token and returns the user id it was issued to
type Authenticator interface {
	Authenticate(accessToken string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication. It only verifies the token;
// the database is not consulted.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := auth.Authenticate(strings.TrimSpace(token))
			if err != nil || userID == "" {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Code: models.CodeUnauthorized})
}

// ValidateWebSocketToken validates the JWT passed as the WebSocket token query parameter
func ValidateWebSocketToken(token string, auth Authenticator) (string, error) {
	if token == "" {
		return "", models.NewUnauthorizedError("token required")
	}
	return auth.Authenticate(token)
}
