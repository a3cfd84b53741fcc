package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant root. Every subscription, usage row and override
// hangs off one of these.
type Organization struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	AdminEmail *string    `json:"admin_email" db:"admin_email"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at" db:"deleted_at"`
}
