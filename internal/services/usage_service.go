package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"nazim/internal/config"
	"nazim/internal/models"
	"nazim/internal/repositories"

	"github.com/google/uuid"
)

// ErrLimitReached is returned by AssertCanCreate when the effective limit is
// already met or the resource is disabled for the plan.
type ErrLimitReached struct {
	Resource models.ResourceKey
	Limit    int
}

func (e *ErrLimitReached) Error() string {
	return fmt.Sprintf("limit reached for %s (limit %d)", e.Resource, e.Limit)
}

const defaultWarningThreshold = 80

// UsageService serves cached usage counts and evaluates them against plan
// limits. Counts are recomputed from source tables when the cached value is
// older than the configured TTL; nothing ever increments a counter in place.
type UsageService interface {
	// GetUsage returns the current count for a resource, recomputing the
	// cached row synchronously when it is missing or stale.
	GetUsage(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error)
	// RecalculateUsage forces a fresh count of every resource.
	RecalculateUsage(ctx context.Context, organizationID uuid.UUID) (map[models.ResourceKey]int, error)
	// GetAllUsage evaluates every resource against its effective limit, for the
	// usage dashboard.
	GetAllUsage(ctx context.Context, organizationID uuid.UUID) (map[models.ResourceKey]*models.LimitCheck, error)
	// UsageRows returns the stored counter rows with their calculation and
	// warning timestamps.
	UsageRows(ctx context.Context, organizationID uuid.UUID) ([]*models.UsageCurrent, error)

	// GetLimit resolves the effective limit for a resource: an active
	// organization override wins over the plan limit; no plan means 0.
	GetLimit(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error)
	WarningThreshold(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error)

	CanCreate(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.LimitCheck, error)
	AssertCanCreate(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) error
}

type usageService struct {
	usageRepo    repositories.UsageRepository
	subRepo      repositories.SubscriptionRepository
	planRepo     repositories.PlanRepository
	overrideRepo repositories.LimitOverrideRepository
	storage      StorageService
	cfg          *config.Config
}

func NewUsageService(
	usageRepo repositories.UsageRepository,
	subRepo repositories.SubscriptionRepository,
	planRepo repositories.PlanRepository,
	overrideRepo repositories.LimitOverrideRepository,
	storage StorageService,
	cfg *config.Config,
) UsageService {
	return &usageService{
		usageRepo:    usageRepo,
		subRepo:      subRepo,
		planRepo:     planRepo,
		overrideRepo: overrideRepo,
		storage:      storage,
		cfg:          cfg,
	}
}

func (s *usageService) cacheTTL() time.Duration {
	return time.Duration(s.cfg.Lifecycle.UsageCacheTTLMinutes) * time.Minute
}

func (s *usageService) GetUsage(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error) {
	if !resourceKey.Valid() {
		return 0, fmt.Errorf("unknown resource key %q", resourceKey)
	}

	now := time.Now().UTC()
	cached, err := s.usageRepo.Get(ctx, organizationID, resourceKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read usage for %s: %w", resourceKey, err)
	}
	if cached != nil && !cached.IsStale(now, s.cacheTTL()) {
		return cached.CurrentCount, nil
	}

	return s.refresh(ctx, organizationID, resourceKey, now)
}

func (s *usageService) RecalculateUsage(ctx context.Context, organizationID uuid.UUID) (map[models.ResourceKey]int, error) {
	now := time.Now().UTC()
	counts := make(map[models.ResourceKey]int, len(models.AllResourceKeys))
	for _, key := range models.AllResourceKeys {
		count, err := s.refresh(ctx, organizationID, key, now)
		if err != nil {
			return nil, fmt.Errorf("failed to recalculate %s: %w", key, err)
		}
		counts[key] = count
	}
	return counts, nil
}

func (s *usageService) GetAllUsage(ctx context.Context, organizationID uuid.UUID) (map[models.ResourceKey]*models.LimitCheck, error) {
	checks := make(map[models.ResourceKey]*models.LimitCheck, len(models.AllResourceKeys))
	for _, key := range models.AllResourceKeys {
		check, err := s.CanCreate(ctx, organizationID, key)
		if err != nil {
			return nil, err
		}
		checks[key] = check
	}
	return checks, nil
}

func (s *usageService) UsageRows(ctx context.Context, organizationID uuid.UUID) ([]*models.UsageCurrent, error) {
	return s.usageRepo.ListByOrganization(ctx, organizationID)
}

// refresh recounts one resource from its source of truth and persists the
// result.
func (s *usageService) refresh(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, now time.Time) (int, error) {
	var count int
	var err error
	if resourceKey == models.ResourceStorageMB {
		count, err = s.storage.OrganizationUsageMB(ctx, organizationID)
	} else {
		count, err = s.usageRepo.CountResource(ctx, organizationID, resourceKey)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", resourceKey, err)
	}

	if err := s.usageRepo.Upsert(ctx, organizationID, resourceKey, count, now); err != nil {
		return 0, fmt.Errorf("failed to store usage for %s: %w", resourceKey, err)
	}
	return count, nil
}

func (s *usageService) GetLimit(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error) {
	override, err := s.overrideRepo.GetActive(ctx, organizationID, resourceKey, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to read limit override: %w", err)
	}
	if override != nil {
		return override.LimitValue, nil
	}

	limit, err := s.planLimit(ctx, organizationID, resourceKey)
	if err != nil {
		return 0, err
	}
	if limit == nil {
		return 0, nil
	}
	return limit.LimitValue, nil
}

func (s *usageService) WarningThreshold(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error) {
	limit, err := s.planLimit(ctx, organizationID, resourceKey)
	if err != nil {
		return 0, err
	}
	if limit == nil || limit.WarningThreshold <= 0 {
		return defaultWarningThreshold, nil
	}
	return limit.WarningThreshold, nil
}

func (s *usageService) planLimit(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.PlanLimit, error) {
	sub, err := s.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current subscription: %w", err)
	}
	if sub == nil {
		return nil, nil
	}
	limit, err := s.planRepo.GetLimit(ctx, sub.PlanID, resourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan limit for %s: %w", resourceKey, err)
	}
	return limit, nil
}

func (s *usageService) CanCreate(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.LimitCheck, error) {
	if !resourceKey.Valid() {
		return nil, fmt.Errorf("unknown resource key %q", resourceKey)
	}

	limit, err := s.GetLimit(ctx, organizationID, resourceKey)
	if err != nil {
		return nil, err
	}

	check := &models.LimitCheck{
		Resource: resourceKey,
		Limit:    limit,
	}

	if limit == -1 {
		check.Allowed = true
		check.Unlimited = true
		check.Remaining = -1
		current, err := s.GetUsage(ctx, organizationID, resourceKey)
		if err != nil {
			log.Printf("WARN: failed to read usage for unlimited resource %s: %v", resourceKey, err)
		} else {
			check.Current = current
		}
		return check, nil
	}

	if limit == 0 {
		msg := fmt.Sprintf("%s is not available on your current plan", resourceKey)
		check.Message = &msg
		return check, nil
	}

	current, err := s.GetUsage(ctx, organizationID, resourceKey)
	if err != nil {
		return nil, err
	}
	check.Current = current
	check.Remaining = limit - current
	if check.Remaining < 0 {
		check.Remaining = 0
	}
	check.Percentage = float64(current) / float64(limit) * 100
	check.Allowed = current < limit

	threshold, err := s.WarningThreshold(ctx, organizationID, resourceKey)
	if err != nil {
		return nil, err
	}
	check.Warning = check.Percentage >= float64(threshold) && check.Percentage < 100

	if !check.Allowed {
		msg := fmt.Sprintf("you have reached your %s limit of %d", resourceKey, limit)
		check.Message = &msg
	}
	return check, nil
}

func (s *usageService) AssertCanCreate(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) error {
	check, err := s.CanCreate(ctx, organizationID, resourceKey)
	if err != nil {
		return err
	}
	if !check.Allowed {
		return &ErrLimitReached{Resource: resourceKey, Limit: check.Limit}
	}
	return nil
}
