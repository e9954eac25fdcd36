package handlers

import (
	"net/http"

	"readthis-backend/internal/middleware"
	"readthis-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// CommentHandler handles /comments requests
type CommentHandler struct {
	commentService *services.CommentService
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

type createCommentRequest struct {
	PostID string `json:"postId" validate:"required"`
	Text   string `json:"text" validate:"required,max=2000"`
}

// List handles GET /comments with an optional ?post= filter
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.commentService.List(r.Context(), r.URL.Query().Get("post"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// GetByID handles GET /comments/{id}
func (h *CommentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	comment, err := h.commentService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

// Create handles POST /comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	comment, err := h.commentService.Create(r.Context(), middleware.GetUserID(r.Context()), req.PostID, req.Text)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.commentService.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}
