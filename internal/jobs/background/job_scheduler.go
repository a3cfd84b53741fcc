package background

import (
	"context"
	"log"
	"sync"
	"time"

	"nazim/internal/config"
	"nazim/internal/jobs"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler manages the recurring subscription lifecycle jobs
type JobScheduler struct {
	scheduler     gocron.Scheduler
	transitionJob *jobs.TransitionJob
	reminderJob   *jobs.ReminderJob
	recalcJob     *jobs.UsageRecalcJob
	cfg           *config.Config
	jobJobs       map[string]gocron.Job
	mu            sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(transitionJob *jobs.TransitionJob, reminderJob *jobs.ReminderJob,
	recalcJob *jobs.UsageRecalcJob, cfg *config.Config) *JobScheduler {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		transitionJob: transitionJob,
		reminderJob:   reminderJob,
		recalcJob:     recalcJob,
		cfg:           cfg,
		jobJobs:       make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Status transitions run frequently. Singleton mode keeps overlapping runs
	// from racing each other on slow databases.
	transitionJob, err := js.scheduler.NewJob(
		gocron.DurationJob(time.Duration(js.cfg.Jobs.TransitionIntervalMinutes)*time.Minute),
		gocron.NewTask(js.runTransitions, context.Background()),
		gocron.WithName("subscription-transitions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create transitions job: %v", err)
	} else {
		js.jobJobs["transitions"] = transitionJob
	}

	reminderJob, err := js.scheduler.NewJob(
		gocron.DurationJob(time.Duration(js.cfg.Jobs.ReminderIntervalHours)*time.Hour),
		gocron.NewTask(js.runReminders, context.Background()),
		gocron.WithName("subscription-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create reminders job: %v", err)
	} else {
		js.jobJobs["reminders"] = reminderJob
	}

	recalcJob, err := js.scheduler.NewJob(
		gocron.DurationJob(time.Duration(js.cfg.Jobs.RecalcIntervalHours)*time.Hour),
		gocron.NewTask(js.runUsageRecalc, context.Background()),
		gocron.WithName("usage-recalculation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create usage recalculation job: %v", err)
	} else {
		js.jobJobs["usage-recalc"] = recalcJob
	}

	log.Printf("Registered %d background jobs", len(js.jobJobs))
}

func (js *JobScheduler) runTransitions(ctx context.Context) error {
	_, err := js.transitionJob.Run(ctx)
	return err
}

func (js *JobScheduler) runReminders(ctx context.Context) error {
	_, err := js.reminderJob.Run(ctx)
	return err
}

func (js *JobScheduler) runUsageRecalc(ctx context.Context) error {
	_, _, err := js.recalcJob.Run(ctx)
	return err
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobJobs)
	jobNames := make([]string, 0, len(js.jobJobs))

	for name := range js.jobJobs {
		jobNames = append(jobNames, name)
	}

	status["jobs"] = jobNames

	return status
}
