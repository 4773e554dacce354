package handlers

import (
	"net/http"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// RatingHandler provides HTTP handlers for ratings.
type RatingHandler struct {
	ratingService *services.RatingService
}

func NewRatingHandler(ratingService *services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// RatingRouter registers rating routes. Every route requires a session.
func RatingRouter(r chi.Router, ratingService *services.RatingService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewRatingHandler(ratingService)

	r.Use(authMiddleware)
	r.Post("/", handler.RateMovie)
	r.Get("/movie/{movieRef}", handler.MovieSummary)
	r.Get("/user/{userID}", handler.ListUserRatings)
	r.Delete("/{ratingID}", handler.DeleteRating)
}

// RateMovie creates the caller's rating (201) or replaces it (200).
func (h *RatingHandler) RateMovie(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req RateMovieRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value: is required")
		return
	}

	rating, created, err := h.ratingService.CreateOrUpdate(r.Context(), userID, req.MovieRef, *req.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rating)
}

func (h *RatingHandler) MovieSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	summary, err := h.ratingService.Summary(r.Context(), userID, chi.URLParam(r, "movieRef"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *RatingHandler) ListUserRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratingService.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

func (h *RatingHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.ratingService.Delete(r.Context(), userID, chi.URLParam(r, "ratingID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type RateMovieRequest struct {
	MovieRef string `json:"movieRef"`
	Value    *int   `json:"value"`
}
