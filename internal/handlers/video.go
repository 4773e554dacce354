package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

type VideoHandler struct {
	videoService *services.VideoService
}

func NewVideoHandler(videoService *services.VideoService) *VideoHandler {
	return &VideoHandler{videoService: videoService}
}

// VideoRouter registers the public video search passthrough.
func VideoRouter(r chi.Router, videoService *services.VideoService) {
	handler := NewVideoHandler(videoService)

	r.Get("/search", handler.Search)
	r.Get("/{videoID}", handler.GetVideo)
}

func (h *VideoHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var maxResults int64
	if raw := strings.TrimSpace(query.Get("maxResults")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid maxResults")
			return
		}
		maxResults = parsed
	}

	page, err := h.videoService.Search(r.Context(), query.Get("q"), query.Get("pageToken"), maxResults)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.videoService.Get(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
