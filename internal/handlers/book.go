package handlers

import (
	"net/http"

	"readthis-backend/internal/services"
)

// BookHandler handles /books requests
type BookHandler struct {
	recommendService *services.RecommendService
}

// NewBookHandler creates a new book handler
func NewBookHandler(recommendService *services.RecommendService) *BookHandler {
	return &BookHandler{
		recommendService: recommendService,
	}
}

type recommendRequest struct {
	BookTitle string `json:"bookTitle"`
}

// RecommendResponse lists recommended books, one per line of the model's answer
type RecommendResponse struct {
	Recommendations []string `json:"recommendations"`
}

// Recommend handles POST /books/recommend
func (h *BookHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	lines, err := h.recommendService.Recommend(r.Context(), req.BookTitle)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, RecommendResponse{Recommendations: lines})
}
