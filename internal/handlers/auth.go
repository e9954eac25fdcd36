package handlers

import (
	"net/http"

	"readthis-backend/internal/middleware"
	"readthis-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles /auth requests
type AuthHandler struct {
	authService *services.AuthService
	maxUpload   int64
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, maxUpload int64) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		maxUpload:   maxUpload,
	}
}

type registerRequest struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,max=50"`
	Password string `validate:"required,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type googleAuthRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type pushTokenRequest struct {
	PushToken string `json:"pushToken" validate:"max=200"`
}

// Register handles POST /auth/register (multipart: email, username, password, image)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		respondAppError(w, r, err)
		return
	}

	req := registerRequest{
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		respondAppError(w, r, errAllFieldsRequired)
		return
	}
	if err := validateStruct(&req); err != nil {
		respondAppError(w, r, err)
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Image:    image,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	respondJSON(w, http.StatusOK, user)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Success"})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /auth/profile (multipart: username?, image?)
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		respondAppError(w, r, err)
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	user, err := h.authService.UpdateProfile(r.Context(), userID, r.FormValue("username"), image)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Profile updated")
	respondJSON(w, http.StatusOK, user)
}

// GoogleAuth handles POST /auth/google-auth
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	result, err := h.authService.GoogleAuth(r.Context(), req.Credential)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// UpdatePushToken handles PUT /auth/push-token
func (h *AuthHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := h.authService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Push token updated"})
}
