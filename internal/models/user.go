package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a staff account allowed to administer the event.
type User struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"-"`
	IsStaff     bool       `json:"is_staff"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CurrentUser is the session summary returned to the frontend.
type CurrentUser struct {
	IsAuthenticated bool    `json:"is_authenticated"`
	IsStaff         bool    `json:"is_staff"`
	Username        *string `json:"username"`
}
