package models

import "time"

type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"` // "admin" or "user"
	APIToken       string    `json:"-"`
	Bio            string    `json:"bio,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Note struct {
	ID          int    `json:"id"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Example     string `json:"example,omitempty"`
	Tags        string `json:"tags,omitempty"`
	// UserID is 0 for legacy rows that predate accounts. Such rows are
	// owned by nobody and cannot be modified.
	UserID    int       `json:"user_id"`
	IsPublic  bool      `json:"is_public"`
	PublicID  string    `json:"public_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsSystem bool   `json:"is_system"`
}
