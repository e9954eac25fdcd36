package handlers

import (
	"net/http"

	"readthis-backend/internal/middleware"
	"readthis-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// PostHandler handles /posts requests
type PostHandler struct {
	postService *services.PostService
	maxUpload   int64
}

// NewPostHandler creates a new post handler
func NewPostHandler(postService *services.PostService, maxUpload int64) *PostHandler {
	return &PostHandler{
		postService: postService,
		maxUpload:   maxUpload,
	}
}

// PostResponse wraps a post with a status message
type PostResponse struct {
	Message string `json:"message"`
	Post    any    `json:"post"`
}

type commentTextRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// GetAll handles GET /posts with an optional ?owner= filter
func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.GetAll(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// GetPaged handles GET /posts/paged?page=&limit=
func (h *PostHandler) GetPaged(w http.ResponseWriter, r *http.Request) {
	page, err := h.postService.GetAllPaged(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// GetMine handles GET /posts/my-posts
func (h *PostHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.GetMine(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// Create handles POST /posts (multipart: title, content, image?)
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		respondAppError(w, r, err)
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	post, err := h.postService.Create(r.Context(), middleware.GetUserID(r.Context()), services.CreatePostInput{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
		Image:   image,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, PostResponse{Message: "Post created successfully.", Post: post})
}

// Update handles PUT /posts/{id} (multipart: title?, content?, image?)
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		respondAppError(w, r, err)
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	post, err := h.postService.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), services.UpdatePostInput{
		Title:   optionalFormValue(r, "title"),
		Content: optionalFormValue(r, "content"),
		Image:   image,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.postService.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully."})
}

// Like handles POST /posts/like/{id}
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.Like(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PostResponse{Message: "Post liked", Post: post})
}

// Unlike handles POST /posts/unlike/{id}
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.Unlike(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PostResponse{Message: "Post unliked", Post: post})
}

// AddComment handles POST /posts/comment/{id}
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	comment, err := h.postService.AddComment(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

