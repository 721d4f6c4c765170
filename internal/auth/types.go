package auth

import "time"

// User is an account holder. PasswordHash never crosses the JSON boundary.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Roles        []Role     `json:"roles,omitempty"`
}

// Role groups permissions. At most one role should carry IsDefault in normal
// operation; nothing at the data layer enforces that, so readers order by
// creation and take the first.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	IsDefault   bool         `json:"is_default"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is a fine-grained capability named "resource:action".
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUser carries the fields required to persist a registration.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// UserUpdate applies only its non-nil fields.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
	IsActive     *bool
}

// RoleUpdate applies only its non-nil fields.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// TokenPair bundles freshly issued access and refresh tokens.
type TokenPair struct {
	AccessToken      string    `json:"token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
