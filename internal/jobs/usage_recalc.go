package jobs

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nazim/internal/config"
	"nazim/internal/models"
	"nazim/internal/repositories"
	"nazim/internal/services"

	"github.com/google/uuid"
)

const recalcPageSize = 100

// UsageRecalcJob refreshes usage counters for every active organization and
// sends limit warnings where usage crosses the plan threshold.
type UsageRecalcJob struct {
	orgRepo      repositories.OrganizationRepository
	subRepo      repositories.SubscriptionRepository
	usageRepo    repositories.UsageRepository
	usageService services.UsageService
	notifier     services.SubscriptionNotifier
	cfg          *config.Config
}

func NewUsageRecalcJob(
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	usageRepo repositories.UsageRepository,
	usageService services.UsageService,
	notifier services.SubscriptionNotifier,
	cfg *config.Config,
) *UsageRecalcJob {
	return &UsageRecalcJob{
		orgRepo:      orgRepo,
		subRepo:      subRepo,
		usageRepo:    usageRepo,
		usageService: usageService,
		notifier:     notifier,
		cfg:          cfg,
	}
}

// Run walks active organizations in pages, recalculating each one with bounded
// concurrency. Per-organization failures are logged and do not stop the sweep.
func (j *UsageRecalcJob) Run(ctx context.Context) (processed int, failed int, err error) {
	start := time.Now()
	var failures int64

	concurrency := j.cfg.Jobs.RecalcConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	offset := 0
	for {
		orgs, err := j.orgRepo.ListActive(ctx, recalcPageSize, offset)
		if err != nil {
			return processed, int(failures), err
		}
		if len(orgs) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, org := range orgs {
			wg.Add(1)
			semaphore <- struct{}{}
			go func(org *models.Organization) {
				defer wg.Done()
				defer func() { <-semaphore }()
				if err := j.recalcOrganization(ctx, org.ID); err != nil {
					atomic.AddInt64(&failures, 1)
					log.Printf("ERROR: usage recalculation failed for organization %s: %v", org.ID, err)
				}
			}(org)
		}
		wg.Wait()

		processed += len(orgs)
		offset += recalcPageSize
		if len(orgs) < recalcPageSize {
			break
		}
	}

	log.Printf("Usage recalculation processed %d organizations (%d failed) in %v", processed, failures, time.Since(start))
	return processed, int(failures), nil
}

func (j *UsageRecalcJob) recalcOrganization(ctx context.Context, organizationID uuid.UUID) error {
	if _, err := j.usageService.RecalculateUsage(ctx, organizationID); err != nil {
		return err
	}
	j.sweepWarnings(ctx, organizationID)
	return nil
}

// sweepWarnings notifies organizations approaching or exceeding a limit. A
// cooldown keeps the daily sweep from repeating the same warning.
func (j *UsageRecalcJob) sweepWarnings(ctx context.Context, organizationID uuid.UUID) {
	sub, err := j.subRepo.GetCurrent(ctx, organizationID)
	if err != nil {
		log.Printf("WARN: failed to load subscription for warning sweep of organization %s: %v", organizationID, err)
	}
	var subID *uuid.UUID
	if sub != nil {
		subID = &sub.ID
	}

	now := time.Now().UTC()
	cooldown := time.Duration(j.cfg.Jobs.WarningCooldownHours) * time.Hour

	for _, key := range models.AllResourceKeys {
		check, err := j.usageService.CanCreate(ctx, organizationID, key)
		if err != nil {
			log.Printf("WARN: limit check failed for organization %s resource %s: %v", organizationID, key, err)
			continue
		}
		if check.Unlimited || check.Limit == 0 {
			continue
		}
		if check.Allowed && !check.Warning {
			continue
		}

		usage, err := j.usageRepo.Get(ctx, organizationID, key)
		if err != nil {
			log.Printf("WARN: failed to read usage row for organization %s resource %s: %v", organizationID, key, err)
			continue
		}
		if usage != nil && usage.LastWarningSentAt != nil && now.Sub(*usage.LastWarningSentAt) < cooldown {
			continue
		}

		if !check.Allowed {
			err = j.notifier.SendLimitReached(ctx, organizationID, subID, models.LimitReachedEvent{
				Resource: key,
				Limit:    check.Limit,
			})
		} else {
			err = j.notifier.SendLimitWarning(ctx, organizationID, subID, models.LimitWarningEvent{
				Resource:   key,
				Current:    check.Current,
				Limit:      check.Limit,
				Percentage: check.Percentage,
			})
		}
		if err != nil {
			log.Printf("WARN: failed to send limit notification for organization %s resource %s: %v", organizationID, key, err)
			continue
		}

		if err := j.usageRepo.MarkWarningSent(ctx, organizationID, key, now); err != nil {
			log.Printf("WARN: failed to mark warning sent for organization %s resource %s: %v", organizationID, key, err)
		}
	}
}
