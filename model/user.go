package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account able to authenticate against the API.
type User struct {
	ID             string    `json:"id" bson:"id"`
	Username       string    `json:"username" bson:"username"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty"`
	Role           string    `json:"role" bson:"role"`
	HashedPassword string    `json:"-" bson:"hashed_password"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// IsAdmin reports whether u holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// PublicUser is the user shape returned to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips credentials from u.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}
