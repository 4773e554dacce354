package handlers

import (
	"net/http"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// CommentHandler provides HTTP handlers for comments.
type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// CommentRouter registers comment routes. Every route requires a session.
func CommentRouter(r chi.Router, commentService *services.CommentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommentHandler(commentService)

	r.Use(authMiddleware)
	r.Post("/", handler.CreateComment)
	r.Get("/movie/{movieRef}", handler.ListMovieComments)
	r.Get("/user/{userID}", handler.ListUserComments)
	r.Route("/{commentID}", func(r chi.Router) {
		r.Put("/", handler.UpdateComment)
		r.Delete("/", handler.DeleteComment)
	})
}

func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Create(r.Context(), userID, req.MovieRef, req.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) ListMovieComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	comments, err := h.commentService.ListByMovie(r.Context(), userID, chi.URLParam(r, "movieRef"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) ListUserComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.commentService.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Update(r.Context(), userID, chi.URLParam(r, "commentID"), req.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), userID, chi.URLParam(r, "commentID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateCommentRequest struct {
	MovieRef string `json:"movieRef"`
	Body     string `json:"body"`
}

type UpdateCommentRequest struct {
	Body string `json:"body"`
}
