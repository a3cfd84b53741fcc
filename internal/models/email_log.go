package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Email/notification type identifiers. Reminder types encode the day offset so
// each offset is delivered at most once per subscription.
const (
	EmailTrialWelcome          = "trial_welcome"
	EmailGracePeriodStart      = "grace_period_start"
	EmailReadonlyPeriodStart   = "readonly_period_start"
	EmailAccountSuspended      = "account_suspended"
	EmailSubscriptionActivated = "subscription_activated"
	EmailLimitWarning          = "limit_warning"
	EmailLimitReached          = "limit_reached"
)

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

func RenewalReminderType(daysBefore int) string {
	return fmt.Sprintf("renewal_reminder_%d", daysBefore)
}

func TrialEndingReminderType(daysBefore int) string {
	return fmt.Sprintf("trial_ending_%d", daysBefore)
}

func GracePeriodEndingReminderType(daysBefore int) string {
	return fmt.Sprintf("grace_period_ending_%d", daysBefore)
}

// SubscriptionEmailLog records every attempted delivery; reminder jobs consult
// it to avoid double-sending.
type SubscriptionEmailLog struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EmailType      string     `json:"email_type" db:"email_type"`
	Recipient      string     `json:"recipient" db:"recipient"`
	Subject        string     `json:"subject" db:"subject"`
	Status         string     `json:"status" db:"status"`
	Error          *string    `json:"error" db:"error"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
