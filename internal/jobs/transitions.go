package jobs

import (
	"context"
	"log"
	"time"

	"nazim/internal/models"
	"nazim/internal/services"
)

// TransitionJob runs the periodic subscription status sweep.
type TransitionJob struct {
	subscriptionService services.SubscriptionService
}

func NewTransitionJob(subscriptionService services.SubscriptionService) *TransitionJob {
	return &TransitionJob{subscriptionService: subscriptionService}
}

func (j *TransitionJob) Run(ctx context.Context) (models.TransitionCounts, error) {
	start := time.Now()
	counts, err := j.subscriptionService.ProcessStatusTransitions(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("ERROR: status transition run finished with errors after %v: %v", time.Since(start), err)
		return counts, err
	}
	if counts.Total() > 0 {
		log.Printf("Status transitions: %d to grace period, %d to readonly, %d expired (%v)",
			counts.ToGracePeriod, counts.ToReadonly, counts.ToExpired, time.Since(start))
	}
	return counts, nil
}
