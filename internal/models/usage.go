package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKey identifies a countable resource subject to plan limits.
type ResourceKey string

const (
	ResourceStudents  ResourceKey = "students"
	ResourceStaff     ResourceKey = "staff"
	ResourceUsers     ResourceKey = "users"
	ResourceSchools   ResourceKey = "schools"
	ResourceClasses   ResourceKey = "classes"
	ResourceExams     ResourceKey = "exams"
	ResourceDocuments ResourceKey = "documents"
	ResourceStorageMB ResourceKey = "storage_mb"
)

// AllResourceKeys lists every tracked resource, in display order.
var AllResourceKeys = []ResourceKey{
	ResourceStudents,
	ResourceStaff,
	ResourceUsers,
	ResourceSchools,
	ResourceClasses,
	ResourceExams,
	ResourceDocuments,
	ResourceStorageMB,
}

func (k ResourceKey) Valid() bool {
	for _, known := range AllResourceKeys {
		if k == known {
			return true
		}
	}
	return false
}

// UsageCurrent is the cached count for one (organization, resource) pair.
// Rows are recomputed lazily when stale; they never track increments.
type UsageCurrent struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	OrganizationID    uuid.UUID   `json:"organization_id" db:"organization_id"`
	ResourceKey       ResourceKey `json:"resource_key" db:"resource_key"`
	CurrentCount      int         `json:"current_count" db:"current_count"`
	LastCalculatedAt  *time.Time  `json:"last_calculated_at" db:"last_calculated_at"`
	LastWarningSentAt *time.Time  `json:"last_warning_sent_at" db:"last_warning_sent_at"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// IsStale reports whether the cached count must be recomputed before use.
func (u *UsageCurrent) IsStale(now time.Time, ttl time.Duration) bool {
	if u.LastCalculatedAt == nil {
		return true
	}
	return now.Sub(*u.LastCalculatedAt) >= ttl
}

// LimitCheck is the outcome of evaluating a resource against its effective
// limit. Unlimited plans always allow; a zero limit always denies.
type LimitCheck struct {
	Allowed    bool        `json:"allowed"`
	Current    int         `json:"current"`
	Limit      int         `json:"limit"`
	Remaining  int         `json:"remaining"`
	Percentage float64     `json:"percentage"`
	Warning    bool        `json:"warning"`
	Unlimited  bool        `json:"unlimited"`
	Resource   ResourceKey `json:"resource"`
	Message    *string     `json:"message,omitempty"`
}

// OrganizationLimitOverride grants a per-organization limit that takes
// precedence over the plan limit until it expires or is removed.
type OrganizationLimitOverride struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	OrganizationID uuid.UUID   `json:"organization_id" db:"organization_id"`
	ResourceKey    ResourceKey `json:"resource_key" db:"resource_key"`
	LimitValue     int         `json:"limit_value" db:"limit_value"`
	Reason         *string     `json:"reason" db:"reason"`
	GrantedBy      *uuid.UUID  `json:"granted_by" db:"granted_by"`
	ExpiresAt      *time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time  `json:"deleted_at" db:"deleted_at"`
}
