// Package memstore keeps every repository in process memory.
// It backs the memory driver and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// Store owns the shared state of all in-memory repositories.
type Store struct {
	mu       sync.Mutex
	users    map[string]types.User
	movies   map[string]types.Movie
	comments map[string]types.Comment
	ratings  map[string]types.Rating
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]types.User),
		movies:   make(map[string]types.Movie),
		comments: make(map[string]types.Comment),
		ratings:  make(map[string]types.Rating),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Movies() *MovieRepository     { return &MovieRepository{s: s} }
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }
func (s *Store) Ratings() *RatingRepository   { return &RatingRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.emailTakenLocked(user.Email, "") {
		return types.User{}, store.ErrConflict
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, id string, upd types.ProfileUpdate) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if upd.Email != nil {
		if r.s.emailTakenLocked(*upd.Email, id) {
			return types.User{}, store.ErrConflict
		}
		user.Email = *upd.Email
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Age != nil {
		user.Age = *upd.Age
	}
	user.UpdatedAt = r.s.now()
	r.s.users[id] = user
	return user, nil
}

func (r *UserRepository) SetResetToken(_ context.Context, id, tokenHash string, expiry time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetTokenHash = &tokenHash
	user.ResetTokenExpiry = &expiry
	user.UpdatedAt = r.s.now()
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, user := range r.s.users {
		if user.ResetTokenHash == nil || *user.ResetTokenHash != tokenHash {
			continue
		}
		if user.ResetTokenExpiry == nil || !now.Before(*user.ResetTokenExpiry) {
			return types.User{}, store.ErrNotFound
		}
		user.PasswordHash = passwordHash
		user.ResetTokenHash = nil
		user.ResetTokenExpiry = nil
		user.UpdatedAt = r.s.now()
		r.s.users[id] = user
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

// Delete removes the user together with everything it owns.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	for key, movie := range r.s.movies {
		if movie.UserID == id {
			delete(r.s.movies, key)
		}
	}
	for key, comment := range r.s.comments {
		if comment.UserID == id {
			delete(r.s.comments, key)
		}
	}
	for key, rating := range r.s.ratings {
		if rating.UserID == id {
			delete(r.s.ratings, key)
		}
	}
	return nil
}

func (s *Store) emailTakenLocked(email, exceptID string) bool {
	for id, user := range s.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

type MovieRepository struct{ s *Store }

func (r *MovieRepository) List(_ context.Context, offset, limit int) ([]types.Movie, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	movies := make([]types.Movie, 0, len(r.s.movies))
	for _, movie := range r.s.movies {
		movies = append(movies, movie)
	}
	sort.Slice(movies, func(i, j int) bool {
		return newer(movies[i].CreatedAt, movies[j].CreatedAt, movies[i].ID, movies[j].ID)
	})
	total := len(movies)
	if offset >= total {
		return []types.Movie{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return movies[offset:end], total, nil
}

func (r *MovieRepository) Get(_ context.Context, id string) (types.Movie, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	movie, ok := r.s.movies[id]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	return movie, nil
}

func (r *MovieRepository) Create(_ context.Context, movie types.Movie) (types.Movie, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.movies {
		if existing.UserID == movie.UserID && existing.VideoID == movie.VideoID {
			return types.Movie{}, store.ErrConflict
		}
	}
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	movie.CreatedAt = r.s.now()
	r.s.movies[movie.ID] = movie
	return movie, nil
}

func (r *MovieRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.movies[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.movies, id)
	return nil
}

type CommentRepository struct{ s *Store }

func (r *CommentRepository) Get(_ context.Context, id string) (types.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment, ok := r.s.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	return comment, nil
}

func (r *CommentRepository) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := r.s.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	r.s.comments[comment.ID] = comment
	return comment, nil
}

func (r *CommentRepository) UpdateBody(_ context.Context, id, body string) (types.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment, ok := r.s.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	comment.Body = body
	comment.UpdatedAt = r.s.now()
	r.s.comments[id] = comment
	return comment, nil
}

func (r *CommentRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}

func (r *CommentRepository) ListByMovie(_ context.Context, movieRef string) ([]types.CommentView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var views []types.CommentView
	for _, comment := range r.s.comments {
		if comment.MovieRef != movieRef {
			continue
		}
		author := r.s.users[comment.UserID]
		views = append(views, types.CommentView{
			Comment: comment,
			Author: types.CommentAuthor{
				ID:    author.ID,
				Name:  author.DisplayName(),
				Email: author.Email,
			},
		})
	}
	sort.Slice(views, func(i, j int) bool {
		return newer(views[i].CreatedAt, views[j].CreatedAt, views[i].ID, views[j].ID)
	})
	return views, nil
}

func (r *CommentRepository) ListByUser(_ context.Context, userID string) ([]types.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comments := []types.Comment{}
	for _, comment := range r.s.comments {
		if comment.UserID == userID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return newer(comments[i].CreatedAt, comments[j].CreatedAt, comments[i].ID, comments[j].ID)
	})
	return comments, nil
}

type RatingRepository struct{ s *Store }

func (r *RatingRepository) Get(_ context.Context, id string) (types.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rating, ok := r.s.ratings[id]
	if !ok {
		return types.Rating{}, store.ErrNotFound
	}
	return rating, nil
}

func (r *RatingRepository) GetByUserAndMovie(_ context.Context, userID, movieRef string) (types.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rating, ok := r.s.findRatingLocked(userID, movieRef); ok {
		return rating, nil
	}
	return types.Rating{}, store.ErrNotFound
}

func (r *RatingRepository) Upsert(_ context.Context, userID, movieRef string, value int) (types.Rating, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if rating, ok := r.s.findRatingLocked(userID, movieRef); ok {
		rating.Value = value
		rating.UpdatedAt = now
		r.s.ratings[rating.ID] = rating
		return rating, false, nil
	}
	rating := types.Rating{
		ID:        uuid.NewString(),
		Value:     value,
		MovieRef:  movieRef,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.ratings[rating.ID] = rating
	return rating, true, nil
}

func (r *RatingRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ratings[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.ratings, id)
	return nil
}

func (r *RatingRepository) ListByUser(_ context.Context, userID string) ([]types.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ratings := []types.Rating{}
	for _, rating := range r.s.ratings {
		if rating.UserID == userID {
			ratings = append(ratings, rating)
		}
	}
	sort.Slice(ratings, func(i, j int) bool {
		return newer(ratings[i].UpdatedAt, ratings[j].UpdatedAt, ratings[i].ID, ratings[j].ID)
	})
	return ratings, nil
}

func (r *RatingRepository) Summary(_ context.Context, movieRef string) (float64, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum, count int
	for _, rating := range r.s.ratings {
		if rating.MovieRef == movieRef {
			sum += rating.Value
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

// CountRatings returns how many ratings exist for the pair. Used by tests.
func (s *Store) CountRatings(userID, movieRef string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rating := range s.ratings {
		if rating.UserID == userID && rating.MovieRef == movieRef {
			n++
		}
	}
	return n
}

func (s *Store) findRatingLocked(userID, movieRef string) (types.Rating, bool) {
	for _, rating := range s.ratings {
		if rating.UserID == userID && rating.MovieRef == movieRef {
			return rating, true
		}
	}
	return types.Rating{}, false
}

// newer orders by timestamp descending with id as a stable tiebreak.
func newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}
