package models

// User represents a row of the users table. Rows are never updated or deleted.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic"` // Server-side path of the stored image
}
