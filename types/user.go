package types

import (
	"strings"
	"time"
)

// User represents an account in the system.
type User struct {
	// ID is the opaque identifier of the user.
	ID string `json:"id" db:"id" bson:"_id"`

	// Email is unique across users and compared exactly as stored.
	Email string `json:"email" db:"email" bson:"email"`

	FirstName string `json:"firstName" db:"first_name" bson:"first_name"`
	LastName  string `json:"lastName" db:"last_name" bson:"last_name"`
	Age       int    `json:"age" db:"age" bson:"age"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"password_hash"`

	// ResetTokenHash and ResetTokenExpiry are either both set or both nil.
	ResetTokenHash   *string    `json:"-" db:"reset_token_hash" bson:"reset_token_hash,omitempty"`
	ResetTokenExpiry *time.Time `json:"-" db:"reset_token_expiry" bson:"reset_token_expiry,omitempty"`

	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updated_at"`
}

// DisplayName joins the first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfileUpdate holds the optional fields of a partial profile update.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Age       *int
	Email     *string
}
