package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan defines a purchasable tier. Lifecycle windows (trial, grace,
// readonly) are per-plan so premium tiers can be more forgiving.
type SubscriptionPlan struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	Slug               string     `json:"slug" db:"slug"`
	PriceYearlyAFN     float64    `json:"price_yearly_afn" db:"price_yearly_afn"`
	PriceYearlyUSD     float64    `json:"price_yearly_usd" db:"price_yearly_usd"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	TrialDays          int        `json:"trial_days" db:"trial_days"`
	GracePeriodDays    int        `json:"grace_period_days" db:"grace_period_days"`
	ReadonlyPeriodDays int        `json:"readonly_period_days" db:"readonly_period_days"`
	MaxSchools         int        `json:"max_schools" db:"max_schools"`
	SortOrder          int        `json:"sort_order" db:"sort_order"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at" db:"deleted_at"`
}

// PlanLimit caps one resource for one plan. LimitValue -1 means unlimited and
// 0 means the resource is disabled for the plan.
type PlanLimit struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	PlanID           uuid.UUID   `json:"plan_id" db:"plan_id"`
	ResourceKey      ResourceKey `json:"resource_key" db:"resource_key"`
	LimitValue       int         `json:"limit_value" db:"limit_value"`
	WarningThreshold int         `json:"warning_threshold" db:"warning_threshold"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}
