package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nazim/internal/caching"
	"nazim/internal/config"
	"nazim/internal/models"
	"nazim/internal/repositories"

	"github.com/google/uuid"
)

var (
	ErrNoSubscription    = errors.New("organization has no subscription")
	ErrAlreadySubscribed = errors.New("organization already has an active subscription")
	ErrPlanNotFound      = errors.New("subscription plan not found")
	ErrTrialPlanNotSetup = errors.New("no trial plan configured")
)

// SubscriptionService owns the subscription lifecycle: trial creation,
// activation, cancellation, suspension, status reads and the periodic status
// transition sweep.
type SubscriptionService interface {
	CreateTrialSubscription(ctx context.Context, organizationID uuid.UUID, performedBy *uuid.UUID) (*models.Subscription, error)
	ActivateSubscription(ctx context.Context, organizationID, planID uuid.UUID, performedBy *uuid.UUID, notes *string) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, organizationID uuid.UUID, reason string, performedBy *uuid.UUID) error
	SuspendSubscription(ctx context.Context, organizationID uuid.UUID, reason string, performedBy *uuid.UUID) error

	GetCurrentSubscription(ctx context.Context, organizationID uuid.UUID) (*models.Subscription, error)
	GetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionStatusInfo, error)
	AccessLevel(ctx context.Context, organizationID uuid.UUID) (models.AccessLevel, error)
	AvailablePlans(ctx context.Context) ([]*models.SubscriptionPlan, error)

	// ProcessStatusTransitions advances every overdue subscription one step
	// along trial/active -> grace_period -> readonly -> expired. Safe to run
	// concurrently and repeatedly; a second immediate run is a no-op.
	ProcessStatusTransitions(ctx context.Context, now time.Time) (models.TransitionCounts, error)
}

type subscriptionService struct {
	subRepo     repositories.SubscriptionRepository
	planRepo    repositories.PlanRepository
	orgRepo     repositories.OrganizationRepository
	historyRepo repositories.HistoryRepository
	cache       caching.CacheService
	notifier    SubscriptionNotifier
	cfg         *config.Config
}

func NewSubscriptionService(
	subRepo repositories.SubscriptionRepository,
	planRepo repositories.PlanRepository,
	orgRepo repositories.OrganizationRepository,
	historyRepo repositories.HistoryRepository,
	cache caching.CacheService,
	notifier SubscriptionNotifier,
	cfg *config.Config,
) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		planRepo:    planRepo,
		orgRepo:     orgRepo,
		historyRepo: historyRepo,
		cache:       cache,
		notifier:    notifier,
		cfg:         cfg,
	}
}

const trialPlanSlug = "trial"

func (s *subscriptionService) CreateTrialSubscription(ctx context.Context, organizationID uuid.UUID, performedBy *uuid.UUID) (*models.Subscription, error) {
	current, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}
	if current != nil && !current.IsBlocked() {
		return nil, ErrAlreadySubscribed
	}

	plan, err := s.planRepo.GetBySlug(ctx, trialPlanSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load trial plan: %w", err)
	}
	if plan == nil {
		// Fall back to the entry tier when no dedicated trial plan exists.
		plans, err := s.planRepo.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list plans: %w", err)
		}
		if len(plans) == 0 {
			return nil, ErrTrialPlanNotSetup
		}
		plan = plans[0]
	}

	trialDays := plan.TrialDays
	if trialDays <= 0 {
		trialDays = s.cfg.Lifecycle.TrialDays
	}

	now := time.Now().UTC()
	trialEnds := now.AddDate(0, 0, trialDays)
	sub := &models.Subscription{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		PlanID:         plan.ID,
		Status:         models.StatusTrial,
		StartedAt:      &now,
		TrialEndsAt:    &trialEnds,
		ExpiresAt:      &trialEnds,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create trial subscription: %w", err)
	}

	s.recordHistory(ctx, sub, models.ActionTrialStarted, nil, &sub.Status, performedBy, nil)
	if err := s.notifier.SendTrialWelcome(ctx, organizationID, &sub.ID, models.TrialWelcomeEvent{TrialDays: trialDays}); err != nil {
		log.Printf("WARN: failed to send trial welcome for organization %s: %v", organizationID, err)
	}
	s.invalidateStatus(ctx, organizationID)

	return sub, nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, organizationID, planID uuid.UUID, performedBy *uuid.UUID, notes *string) (*models.Subscription, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	current, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current subscription: %w", err)
	}

	action := models.ActionActivated
	var fromPlanID *uuid.UUID
	var fromStatus *models.SubscriptionStatus
	if current != nil {
		fromPlanID = &current.PlanID
		fromStatus = &current.Status
		action = s.activationAction(ctx, current, plan)
		if err := s.subRepo.SoftDelete(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("failed to retire subscription %s: %w", current.ID, err)
		}
	}

	now := time.Now().UTC()
	expires := now.AddDate(0, 0, s.cfg.Lifecycle.BillingPeriodDays)
	sub := &models.Subscription{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		PlanID:         plan.ID,
		Status:         models.StatusActive,
		StartedAt:      &now,
		ExpiresAt:      &expires,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	entry := &models.SubscriptionHistory{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		SubscriptionID: &sub.ID,
		Action:         action,
		FromPlanID:     fromPlanID,
		ToPlanID:       &sub.PlanID,
		FromStatus:     fromStatus,
		ToStatus:       &sub.Status,
		PerformedBy:    performedBy,
		Notes:          notes,
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		log.Printf("WARN: failed to record %s history for organization %s: %v", action, organizationID, err)
	}

	if err := s.notifier.SendSubscriptionActivated(ctx, organizationID, &sub.ID, models.SubscriptionActivatedEvent{
		PlanName:  plan.Name,
		ExpiresAt: expires,
	}); err != nil {
		log.Printf("WARN: failed to send activation notification for organization %s: %v", organizationID, err)
	}
	s.invalidateStatus(ctx, organizationID)

	return sub, nil
}

// activationAction classifies an activation relative to the outgoing
// subscription: same plan is a renewal, otherwise the yearly price decides
// upgrade versus downgrade.
func (s *subscriptionService) activationAction(ctx context.Context, current *models.Subscription, newPlan *models.SubscriptionPlan) string {
	if current.PlanID == newPlan.ID {
		return models.ActionRenewed
	}
	oldPlan, err := s.planRepo.GetByID(ctx, current.PlanID)
	if err != nil || oldPlan == nil {
		return models.ActionActivated
	}
	if newPlan.PriceYearlyUSD >= oldPlan.PriceYearlyUSD {
		return models.ActionUpgraded
	}
	return models.ActionDowngraded
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, organizationID uuid.UUID, reason string, performedBy *uuid.UUID) error {
	sub, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to load current subscription: %w", err)
	}
	if sub == nil {
		return ErrNoSubscription
	}
	if sub.Status == models.StatusCancelled {
		return nil
	}

	fromStatus := sub.Status
	now := time.Now().UTC()
	sub.Status = models.StatusCancelled
	sub.CancelledAt = &now
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
	}

	var notes *string
	if reason != "" {
		notes = &reason
	}
	s.recordHistory(ctx, sub, models.ActionCancelled, &fromStatus, &sub.Status, performedBy, notes)
	s.invalidateStatus(ctx, organizationID)
	return nil
}

func (s *subscriptionService) SuspendSubscription(ctx context.Context, organizationID uuid.UUID, reason string, performedBy *uuid.UUID) error {
	sub, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to load current subscription: %w", err)
	}
	if sub == nil {
		return ErrNoSubscription
	}
	if sub.Status == models.StatusSuspended {
		return nil
	}

	fromStatus := sub.Status
	sub.Status = models.StatusSuspended
	sub.SuspensionReason = &reason
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to suspend subscription %s: %w", sub.ID, err)
	}

	s.recordHistory(ctx, sub, models.ActionSuspended, &fromStatus, &sub.Status, performedBy, &reason)
	if err := s.notifier.SendAccountSuspended(ctx, organizationID, &sub.ID, models.AccountSuspendedEvent{Reason: reason}); err != nil {
		log.Printf("WARN: failed to send suspension notification for organization %s: %v", organizationID, err)
	}
	s.invalidateStatus(ctx, organizationID)
	return nil
}

func (s *subscriptionService) GetCurrentSubscription(ctx context.Context, organizationID uuid.UUID) (*models.Subscription, error) {
	return s.subRepo.GetCurrent(ctx, organizationID)
}

func (s *subscriptionService) GetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionStatusInfo, error) {
	cached, err := s.cache.GetSubscriptionStatus(ctx, organizationID)
	if err != nil {
		log.Printf("WARN: subscription status cache read failed for organization %s: %v", organizationID, err)
	} else if cached != nil {
		return cached, nil
	}

	sub, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current subscription: %w", err)
	}

	info := s.buildStatusInfo(ctx, sub, time.Now().UTC())

	ttl := time.Duration(s.cfg.Lifecycle.StatusCacheTTLSeconds) * time.Second
	if err := s.cache.SetSubscriptionStatus(ctx, organizationID, info, ttl); err != nil {
		log.Printf("WARN: subscription status cache write failed for organization %s: %v", organizationID, err)
	}
	return info, nil
}

func (s *subscriptionService) buildStatusInfo(ctx context.Context, sub *models.Subscription, now time.Time) *models.SubscriptionStatusInfo {
	if sub == nil {
		return &models.SubscriptionStatusInfo{
			AccessLevel: models.AccessNone,
			Message:     "No subscription found. Please contact support.",
		}
	}

	info := &models.SubscriptionStatusInfo{
		Status:               sub.Status,
		AccessLevel:          accessLevelFor(sub.Status),
		CanRead:              !sub.IsBlocked(),
		CanWrite:             sub.CanWrite(),
		PlanID:               &sub.PlanID,
		StartedAt:            sub.StartedAt,
		ExpiresAt:            sub.ExpiresAt,
		TrialEndsAt:          sub.TrialEndsAt,
		GracePeriodEndsAt:    sub.GracePeriodEndsAt,
		ReadonlyPeriodEndsAt: sub.ReadonlyPeriodEndsAt,
		DaysLeft:             sub.DaysUntilExpiry(now),
		TrialDaysLeft:        sub.TrialDaysLeft(now),
		IsTrial:              sub.IsOnTrial(),
	}

	if plan, err := s.planRepo.GetByID(ctx, sub.PlanID); err != nil {
		log.Printf("WARN: failed to load plan %s: %v", sub.PlanID, err)
	} else if plan != nil {
		info.PlanName = &plan.Name
		info.PlanSlug = &plan.Slug
	}

	switch sub.Status {
	case models.StatusTrial:
		info.Message = "Trial subscription active."
	case models.StatusActive:
		info.Message = "Subscription active."
	case models.StatusGracePeriod:
		info.Message = "Subscription expired. You are in a grace period; please renew."
	case models.StatusReadonly:
		info.Message = "Account is read-only. Renew to restore full access."
	case models.StatusExpired:
		info.Message = "Subscription expired. Renew to regain access."
	case models.StatusCancelled:
		info.Message = "Subscription cancelled."
	case models.StatusSuspended:
		info.Message = "Account suspended. Please contact support."
	}
	return info
}

func accessLevelFor(status models.SubscriptionStatus) models.AccessLevel {
	switch status {
	case models.StatusTrial, models.StatusActive:
		return models.AccessFull
	case models.StatusGracePeriod:
		return models.AccessGrace
	case models.StatusReadonly:
		return models.AccessReadonly
	case models.StatusExpired, models.StatusCancelled, models.StatusSuspended:
		return models.AccessBlocked
	default:
		return models.AccessNone
	}
}

func (s *subscriptionService) AccessLevel(ctx context.Context, organizationID uuid.UUID) (models.AccessLevel, error) {
	info, err := s.GetSubscriptionStatus(ctx, organizationID)
	if err != nil {
		return models.AccessNone, err
	}
	return info.AccessLevel, nil
}

func (s *subscriptionService) AvailablePlans(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	return s.planRepo.ListActive(ctx)
}

func (s *subscriptionService) ProcessStatusTransitions(ctx context.Context, now time.Time) (models.TransitionCounts, error) {
	var counts models.TransitionCounts
	var passErrs []error

	// Pass 1: trial/active whose expires_at has passed enter the grace period.
	due, err := s.subRepo.ListDueForGracePeriod(ctx, now)
	if err != nil {
		passErrs = append(passErrs, fmt.Errorf("grace period scan failed: %w", err))
	} else {
		for _, sub := range due {
			days := s.gracePeriodDays(ctx, sub.PlanID)
			endsAt := now.AddDate(0, 0, days)
			moved, err := s.subRepo.BeginGracePeriod(ctx, sub.ID, sub.Status, endsAt)
			if err != nil {
				log.Printf("ERROR: failed to move subscription %s (org %s) to grace period: %v", sub.ID, sub.OrganizationID, err)
				continue
			}
			if !moved {
				continue
			}
			counts.ToGracePeriod++
			from := sub.Status
			to := models.StatusGracePeriod
			s.recordHistory(ctx, sub, models.ActionGracePeriod, &from, &to, nil, nil)
			if err := s.notifier.SendGracePeriodStart(ctx, sub.OrganizationID, &sub.ID, models.GracePeriodStartedEvent{GracePeriodDays: days}); err != nil {
				log.Printf("WARN: failed to send grace period notification for organization %s: %v", sub.OrganizationID, err)
			}
			s.invalidateStatus(ctx, sub.OrganizationID)
		}
	}

	// Pass 2: grace periods that have run out become readonly.
	due, err = s.subRepo.ListDueForReadonly(ctx, now)
	if err != nil {
		passErrs = append(passErrs, fmt.Errorf("readonly scan failed: %w", err))
	} else {
		for _, sub := range due {
			days := s.readonlyPeriodDays(ctx, sub.PlanID)
			endsAt := now.AddDate(0, 0, days)
			moved, err := s.subRepo.BeginReadonly(ctx, sub.ID, endsAt)
			if err != nil {
				log.Printf("ERROR: failed to move subscription %s (org %s) to readonly: %v", sub.ID, sub.OrganizationID, err)
				continue
			}
			if !moved {
				continue
			}
			counts.ToReadonly++
			from := sub.Status
			to := models.StatusReadonly
			s.recordHistory(ctx, sub, models.ActionReadonly, &from, &to, nil, nil)
			if err := s.notifier.SendReadonlyPeriodStart(ctx, sub.OrganizationID, &sub.ID, models.ReadonlyStartedEvent{ReadonlyPeriodDays: days}); err != nil {
				log.Printf("WARN: failed to send readonly notification for organization %s: %v", sub.OrganizationID, err)
			}
			s.invalidateStatus(ctx, sub.OrganizationID)
		}
	}

	// Pass 3: readonly windows that have run out are fully expired.
	due, err = s.subRepo.ListDueForExpiry(ctx, now)
	if err != nil {
		passErrs = append(passErrs, fmt.Errorf("expiry scan failed: %w", err))
	} else {
		for _, sub := range due {
			moved, err := s.subRepo.MarkExpired(ctx, sub.ID)
			if err != nil {
				log.Printf("ERROR: failed to expire subscription %s (org %s): %v", sub.ID, sub.OrganizationID, err)
				continue
			}
			if !moved {
				continue
			}
			counts.ToExpired++
			from := sub.Status
			to := models.StatusExpired
			s.recordHistory(ctx, sub, models.ActionExpired, &from, &to, nil, nil)
			if err := s.notifier.SendAccountSuspended(ctx, sub.OrganizationID, &sub.ID, models.AccountSuspendedEvent{
				Reason: "Subscription expired after the readonly period ended.",
			}); err != nil {
				log.Printf("WARN: failed to send expiry notification for organization %s: %v", sub.OrganizationID, err)
			}
			s.invalidateStatus(ctx, sub.OrganizationID)
		}
	}

	return counts, errors.Join(passErrs...)
}

func (s *subscriptionService) gracePeriodDays(ctx context.Context, planID uuid.UUID) int {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		log.Printf("WARN: failed to load plan %s, using default grace period: %v", planID, err)
	}
	if plan != nil && plan.GracePeriodDays > 0 {
		return plan.GracePeriodDays
	}
	return s.cfg.Lifecycle.GracePeriodDays
}

func (s *subscriptionService) readonlyPeriodDays(ctx context.Context, planID uuid.UUID) int {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		log.Printf("WARN: failed to load plan %s, using default readonly period: %v", planID, err)
	}
	if plan != nil && plan.ReadonlyPeriodDays > 0 {
		return plan.ReadonlyPeriodDays
	}
	return s.cfg.Lifecycle.ReadonlyPeriodDays
}

func (s *subscriptionService) recordHistory(ctx context.Context, sub *models.Subscription, action string, from, to *models.SubscriptionStatus, performedBy *uuid.UUID, notes *string) {
	entry := &models.SubscriptionHistory{
		ID:             uuid.New(),
		OrganizationID: sub.OrganizationID,
		SubscriptionID: &sub.ID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		PerformedBy:    performedBy,
		Notes:          notes,
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		log.Printf("WARN: failed to record %s history for organization %s: %v", action, sub.OrganizationID, err)
	}
}

func (s *subscriptionService) invalidateStatus(ctx context.Context, organizationID uuid.UUID) {
	if err := s.cache.InvalidateSubscriptionStatus(ctx, organizationID); err != nil {
		log.Printf("WARN: failed to invalidate status cache for organization %s: %v", organizationID, err)
	}
}
