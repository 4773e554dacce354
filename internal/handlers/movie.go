package handlers

import (
	"bufio"
	"io"
	"net/http"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// MovieHandler provides HTTP handlers for the movie catalog.
type MovieHandler struct {
	movieService *services.MovieService
}

// NewMovieHandler constructs a handler with the provided service.
func NewMovieHandler(movieService *services.MovieService) *MovieHandler {
	return &MovieHandler{movieService: movieService}
}

// MovieRouter registers catalog routes. Every route requires a session.
func MovieRouter(r chi.Router, movieService *services.MovieService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMovieHandler(movieService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListMovies)
	r.Post("/", handler.CreateMovie)
	r.Route("/{movieID}", func(r chi.Router) {
		r.Get("/", handler.GetMovie)
		r.Delete("/", handler.DeleteMovie)
	})
}

// ThumbnailRouter serves mirrored thumbnails publicly.
func ThumbnailRouter(r chi.Router, movieService *services.MovieService) {
	handler := NewMovieHandler(movieService)
	r.Get("/{movieID}", handler.GetThumbnail)
}

func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.movieService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MovieListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := h.movieService.Get(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *MovieHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req CreateMovieRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.movieService.Create(r.Context(), userID, services.CreateMovieParams(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *MovieHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.movieService.Delete(r.Context(), userID, chi.URLParam(r, "movieID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MovieHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	rc, err := h.movieService.OpenThumbnail(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	head, _ := br.Peek(512)
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, br); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("thumbnail stream interrupted")
	}
}

type CreateMovieRequest struct {
	Title        string `json:"title"`
	VideoID      string `json:"videoId"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// MovieListResponse is the paginated list response payload.
type MovieListResponse struct {
	Items []types.Movie `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}
