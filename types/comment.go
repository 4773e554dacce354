package types

import "time"

// Comment is a free-text remark a user left on a provider video.
type Comment struct {
	ID   string `json:"id" db:"id" bson:"_id"`
	Body string `json:"body" db:"body" bson:"body"`

	// MovieRef is the provider's video id, not a catalog movie id.
	MovieRef string `json:"movieRef" db:"movie_ref" bson:"movie_ref"`

	UserID    string    `json:"userId" db:"user_id" bson:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updated_at"`
}

// CommentAuthor is the public view of a comment's owner.
type CommentAuthor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	Comment
	Author CommentAuthor `json:"author"`
}

// MovieComments partitions the comments on one movie by ownership.
type MovieComments struct {
	Mine   []CommentView `json:"mine"`
	Others []CommentView `json:"others"`
}
