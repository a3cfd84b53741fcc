package jobs

import (
	"context"
	"log"
	"time"

	"nazim/internal/models"
	"nazim/internal/repositories"
	"nazim/internal/services"
)

// Reminder offsets in days before the relevant boundary. Each offset produces
// its own email type so a subscription receives it at most once.
var (
	renewalReminderOffsets = []int{30, 14, 7, 1}
	trialReminderOffsets   = []int{3, 1}
	graceReminderOffsets   = []int{7, 3, 1}
)

// ReminderJob sends expiry, trial-ending and grace-period-ending reminders.
// It scans exact-day windows, so it is meant to run once per day.
type ReminderJob struct {
	subRepo      repositories.SubscriptionRepository
	emailLogRepo repositories.EmailLogRepository
	notifier     services.SubscriptionNotifier
}

func NewReminderJob(
	subRepo repositories.SubscriptionRepository,
	emailLogRepo repositories.EmailLogRepository,
	notifier services.SubscriptionNotifier,
) *ReminderJob {
	return &ReminderJob{
		subRepo:      subRepo,
		emailLogRepo: emailLogRepo,
		notifier:     notifier,
	}
}

// Run returns the number of reminders actually delivered.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	return j.RunAt(ctx, time.Now().UTC())
}

func (j *ReminderJob) RunAt(ctx context.Context, now time.Time) (int, error) {
	sent := 0
	sent += j.sendRenewalReminders(ctx, now)
	sent += j.sendTrialReminders(ctx, now)
	sent += j.sendGraceReminders(ctx, now)
	if sent > 0 {
		log.Printf("Reminder run delivered %d notifications", sent)
	}
	return sent, nil
}

func (j *ReminderJob) sendRenewalReminders(ctx context.Context, now time.Time) int {
	sent := 0
	for _, days := range renewalReminderOffsets {
		windowStart := now.AddDate(0, 0, days-1)
		windowEnd := now.AddDate(0, 0, days)
		subs, err := j.subRepo.ListExpiringBetween(ctx, windowStart, windowEnd)
		if err != nil {
			log.Printf("ERROR: failed to scan subscriptions expiring in %d days: %v", days, err)
			continue
		}
		for _, sub := range subs {
			if sub.ExpiresAt == nil {
				continue
			}
			if j.alreadySent(ctx, sub, models.RenewalReminderType(days)) {
				continue
			}
			err := j.notifier.SendRenewalReminder(ctx, sub.OrganizationID, &sub.ID, models.RenewalReminderEvent{
				DaysBeforeExpiry: days,
				ExpiresAt:        *sub.ExpiresAt,
			})
			if err != nil {
				log.Printf("ERROR: failed to send %d-day renewal reminder for organization %s: %v", days, sub.OrganizationID, err)
				continue
			}
			sent++
		}
	}
	return sent
}

func (j *ReminderJob) sendTrialReminders(ctx context.Context, now time.Time) int {
	sent := 0
	for _, days := range trialReminderOffsets {
		windowStart := now.AddDate(0, 0, days-1)
		windowEnd := now.AddDate(0, 0, days)
		subs, err := j.subRepo.ListTrialsEndingBetween(ctx, windowStart, windowEnd)
		if err != nil {
			log.Printf("ERROR: failed to scan trials ending in %d days: %v", days, err)
			continue
		}
		for _, sub := range subs {
			if j.alreadySent(ctx, sub, models.TrialEndingReminderType(days)) {
				continue
			}
			err := j.notifier.SendTrialEndingReminder(ctx, sub.OrganizationID, &sub.ID, models.TrialEndingEvent{DaysLeft: days})
			if err != nil {
				log.Printf("ERROR: failed to send %d-day trial reminder for organization %s: %v", days, sub.OrganizationID, err)
				continue
			}
			sent++
		}
	}
	return sent
}

func (j *ReminderJob) sendGraceReminders(ctx context.Context, now time.Time) int {
	sent := 0
	for _, days := range graceReminderOffsets {
		windowStart := now.AddDate(0, 0, days-1)
		windowEnd := now.AddDate(0, 0, days)
		subs, err := j.subRepo.ListGracePeriodsEndingBetween(ctx, windowStart, windowEnd)
		if err != nil {
			log.Printf("ERROR: failed to scan grace periods ending in %d days: %v", days, err)
			continue
		}
		for _, sub := range subs {
			if j.alreadySent(ctx, sub, models.GracePeriodEndingReminderType(days)) {
				continue
			}
			err := j.notifier.SendGracePeriodEnding(ctx, sub.OrganizationID, &sub.ID, models.GracePeriodEndingEvent{DaysLeft: days})
			if err != nil {
				log.Printf("ERROR: failed to send %d-day grace reminder for organization %s: %v", days, sub.OrganizationID, err)
				continue
			}
			sent++
		}
	}
	return sent
}

// alreadySent treats a dedupe lookup failure as sent, preferring a missed
// reminder over a duplicate one.
func (j *ReminderJob) alreadySent(ctx context.Context, sub *models.Subscription, emailType string) bool {
	was, err := j.emailLogRepo.WasSent(ctx, sub.ID, emailType)
	if err != nil {
		log.Printf("ERROR: failed to check email log for subscription %s type %s: %v", sub.ID, emailType, err)
		return true
	}
	return was
}
