package models

import "time"

// User is a profile record keyed by email.
type User struct {
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Phone     string    `json:"phone" yaml:"phone"`
	Role      Role      `json:"role" yaml:"role"`
	District  string    `json:"district" yaml:"district"`
	State     string    `json:"state" yaml:"state"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Identity is the authenticated caller as supplied by the session layer.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Identity returns the caller identity of a stored profile.
func (u *User) Identity() Identity {
	return Identity{Email: u.Email, Name: u.Name, Phone: u.Phone}
}
