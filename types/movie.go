package types

import "time"

// Movie is a catalog entry that points at a video hosted by the external provider.
type Movie struct {
	ID           string    `json:"id" db:"id" bson:"_id"`
	Title        string    `json:"title" db:"title" bson:"title"`
	VideoID      string    `json:"videoId" db:"video_id" bson:"video_id"`
	ThumbnailURL string    `json:"thumbnailUrl" db:"thumbnail_url" bson:"thumbnail_url"`
	UserID       string    `json:"userId" db:"user_id" bson:"user_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
}
