package types

import "time"

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// Rating is a user's star rating of a provider video.
// At most one rating exists per (UserID, MovieRef).
type Rating struct {
	ID        string    `json:"id" db:"id" bson:"_id"`
	Value     int       `json:"value" db:"value" bson:"value"`
	MovieRef  string    `json:"movieRef" db:"movie_ref" bson:"movie_ref"`
	UserID    string    `json:"userId" db:"user_id" bson:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updated_at"`
}

// RatingSummary aggregates the ratings of one movie.
type RatingSummary struct {
	MovieRef string  `json:"movieRef"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`

	// UserRating is the caller's own value, or 0 when they have not rated.
	UserRating int `json:"userRating"`
}
