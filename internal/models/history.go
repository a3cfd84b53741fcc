package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionTrialStarted = "trial_started"
	ActionActivated    = "activated"
	ActionRenewed      = "renewed"
	ActionUpgraded     = "upgraded"
	ActionDowngraded   = "downgraded"
	ActionGracePeriod  = "grace_period"
	ActionReadonly     = "readonly"
	ActionExpired      = "expired"
	ActionCancelled    = "cancelled"
	ActionSuspended    = "suspended"
)

// SubscriptionHistory is an append-only audit row for every lifecycle change.
type SubscriptionHistory struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	OrganizationID uuid.UUID           `json:"organization_id" db:"organization_id"`
	SubscriptionID *uuid.UUID          `json:"subscription_id" db:"subscription_id"`
	Action         string              `json:"action" db:"action"`
	FromPlanID     *uuid.UUID          `json:"from_plan_id" db:"from_plan_id"`
	ToPlanID       *uuid.UUID          `json:"to_plan_id" db:"to_plan_id"`
	FromStatus     *SubscriptionStatus `json:"from_status" db:"from_status"`
	ToStatus       *SubscriptionStatus `json:"to_status" db:"to_status"`
	PerformedBy    *uuid.UUID          `json:"performed_by" db:"performed_by"`
	Notes          *string             `json:"notes" db:"notes"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
}
