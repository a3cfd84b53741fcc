package models

import "time"

// Notification payloads are tagged per event kind with explicit fields, one
// struct per subscription event the platform emits.

type TrialWelcomeEvent struct {
	TrialDays int
}

type TrialEndingEvent struct {
	DaysLeft int
}

type RenewalReminderEvent struct {
	DaysBeforeExpiry int
	ExpiresAt        time.Time
}

type GracePeriodStartedEvent struct {
	GracePeriodDays int
}

type GracePeriodEndingEvent struct {
	DaysLeft int
}

type ReadonlyStartedEvent struct {
	ReadonlyPeriodDays int
}

type AccountSuspendedEvent struct {
	Reason string
}

type SubscriptionActivatedEvent struct {
	PlanName  string
	ExpiresAt time.Time
}

type LimitWarningEvent struct {
	Resource   ResourceKey
	Current    int
	Limit      int
	Percentage float64
}

type LimitReachedEvent struct {
	Resource ResourceKey
	Limit    int
}
