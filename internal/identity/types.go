package identity

import "time"

// User is a login identity. Registration creates users inactive; the
// approval action is the only thing that activates them.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	Staff        bool      `json:"staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the department-and-approval extension of a user. Every user
// that went through registration has one; administratively created
// superusers may not.
type Profile struct {
	UserID     string     `json:"user_id"`
	Department Department `json:"department"`
	Approved   bool       `json:"approved"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Principal is a user with its profile resolved, as passed into every
// workflow call. There is no ambient "current user" anywhere.
type Principal struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}
