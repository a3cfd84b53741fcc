package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	StatusTrial       SubscriptionStatus = "trial"
	StatusActive      SubscriptionStatus = "active"
	StatusGracePeriod SubscriptionStatus = "grace_period"
	StatusReadonly    SubscriptionStatus = "readonly"
	StatusExpired     SubscriptionStatus = "expired"
	StatusCancelled   SubscriptionStatus = "cancelled"
	StatusSuspended   SubscriptionStatus = "suspended"
)

// AccessLevel summarizes what an organization may do given its subscription.
type AccessLevel string

const (
	AccessFull     AccessLevel = "full"
	AccessGrace    AccessLevel = "grace"
	AccessReadonly AccessLevel = "readonly"
	AccessBlocked  AccessLevel = "blocked"
	AccessNone     AccessLevel = "none"
)

type Subscription struct {
	ID                   uuid.UUID          `json:"id" db:"id"`
	OrganizationID       uuid.UUID          `json:"organization_id" db:"organization_id"`
	PlanID               uuid.UUID          `json:"plan_id" db:"plan_id"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	StartedAt            *time.Time         `json:"started_at" db:"started_at"`
	ExpiresAt            *time.Time         `json:"expires_at" db:"expires_at"`
	TrialEndsAt          *time.Time         `json:"trial_ends_at" db:"trial_ends_at"`
	GracePeriodEndsAt    *time.Time         `json:"grace_period_ends_at" db:"grace_period_ends_at"`
	ReadonlyPeriodEndsAt *time.Time         `json:"readonly_period_ends_at" db:"readonly_period_ends_at"`
	CancelledAt          *time.Time         `json:"cancelled_at" db:"cancelled_at"`
	SuspensionReason     *string            `json:"suspension_reason" db:"suspension_reason"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
	DeletedAt            *time.Time         `json:"deleted_at" db:"deleted_at"`
}

// IsBlocked reports whether the subscription grants no access at all.
func (s *Subscription) IsBlocked() bool {
	return s.Status == StatusExpired || s.Status == StatusCancelled || s.Status == StatusSuspended
}

// CanWrite reports whether the subscription still permits mutations.
func (s *Subscription) CanWrite() bool {
	return s.Status == StatusTrial || s.Status == StatusActive || s.Status == StatusGracePeriod
}

func (s *Subscription) IsOnTrial() bool {
	return s.Status == StatusTrial
}

// DaysUntilExpiry returns whole days until expires_at, negative when past due.
func (s *Subscription) DaysUntilExpiry(now time.Time) *int {
	if s.ExpiresAt == nil {
		return nil
	}
	days := int(s.ExpiresAt.Sub(now).Hours() / 24)
	return &days
}

func (s *Subscription) TrialDaysLeft(now time.Time) *int {
	if s.TrialEndsAt == nil {
		return nil
	}
	days := int(s.TrialEndsAt.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// ValidateTimestamps enforces the boundary ordering
// trial_ends_at <= expires_at <= grace_period_ends_at <= readonly_period_ends_at
// for whichever timestamps are set.
func (s *Subscription) ValidateTimestamps() error {
	ordered := []struct {
		name string
		at   *time.Time
	}{
		{"trial_ends_at", s.TrialEndsAt},
		{"expires_at", s.ExpiresAt},
		{"grace_period_ends_at", s.GracePeriodEndsAt},
		{"readonly_period_ends_at", s.ReadonlyPeriodEndsAt},
	}

	var prevName string
	var prev *time.Time
	for _, b := range ordered {
		if b.at == nil {
			continue
		}
		if prev != nil && b.at.Before(*prev) {
			return fmt.Errorf("%s must not precede %s", b.name, prevName)
		}
		prevName = b.name
		prev = b.at
	}
	return nil
}

// TransitionCounts reports how many subscriptions each pass of a transition
// run advanced.
type TransitionCounts struct {
	ToGracePeriod int `json:"to_grace_period"`
	ToReadonly    int `json:"to_readonly"`
	ToExpired     int `json:"to_expired"`
}

func (c TransitionCounts) Total() int {
	return c.ToGracePeriod + c.ToReadonly + c.ToExpired
}

// SubscriptionStatusInfo is the display/status payload served to clients and
// cached in redis.
type SubscriptionStatusInfo struct {
	Status               SubscriptionStatus `json:"status"`
	AccessLevel          AccessLevel        `json:"access_level"`
	Message              string             `json:"message"`
	CanRead              bool               `json:"can_read"`
	CanWrite             bool               `json:"can_write"`
	PlanID               *uuid.UUID         `json:"plan_id"`
	PlanName             *string            `json:"plan_name"`
	PlanSlug             *string            `json:"plan_slug"`
	StartedAt            *time.Time         `json:"started_at"`
	ExpiresAt            *time.Time         `json:"expires_at"`
	TrialEndsAt          *time.Time         `json:"trial_ends_at"`
	GracePeriodEndsAt    *time.Time         `json:"grace_period_ends_at"`
	ReadonlyPeriodEndsAt *time.Time         `json:"readonly_period_ends_at"`
	DaysLeft             *int               `json:"days_left"`
	TrialDaysLeft        *int               `json:"trial_days_left"`
	IsTrial              bool               `json:"is_trial"`
}
