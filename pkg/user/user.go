// Package user holds the CRM user model and the login request and response shapes.
package user

import "time"

// Roles a CRM user can have.
const (
	RoleAdmin  = "admin"
	RoleSales  = "sales"
	RoleViewer = "viewer"
)

// User represents a CRM user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// New creates a User with the given bcrypt password hash. An empty role means sales.
func New(username, email, role, passwordHash string) *User {
	if role == "" {
		role = RoleSales
	}
	return &User{
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
	}
}

// IsAdmin reports whether the user may run sync tooling.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}
