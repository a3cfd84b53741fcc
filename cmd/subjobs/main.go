// Command subjobs runs the subscription lifecycle jobs once and exits, for
// cron or operator use. Commands: process-transitions, send-reminders,
// recalculate-usage [org-id].
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"nazim/internal/caching"
	"nazim/internal/config"
	"nazim/internal/jobs"
	"nazim/internal/repositories"
	"nazim/internal/services"
	"nazim/pkg/database"

	"github.com/google/uuid"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <process-transitions|send-reminders|recalculate-usage [org-id]>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	cfg := config.Default()
	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}
	cacheSvc := caching.NewRedisCacheService(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)

	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioBucket := os.Getenv("MINIO_BUCKET")
	if minioBucket == "" {
		minioBucket = "nazim-documents"
	}
	minioClient, err := services.NewMinioClient(minioEndpoint,
		envOr("MINIO_ACCESS_KEY", "minioadmin"), envOr("MINIO_SECRET_KEY", "minioadmin"),
		os.Getenv("MINIO_USE_SSL") == "true")
	if err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}
	storageSvc := services.NewStorageService(minioClient, minioBucket)

	orgRepo := repositories.NewOrganizationRepo(pool)
	planRepo := repositories.NewPlanRepo(pool)
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	usageRepo := repositories.NewUsageRepo(pool)
	overrideRepo := repositories.NewLimitOverrideRepo(pool)
	emailLogRepo := repositories.NewEmailLogRepo(pool)
	historyRepo := repositories.NewHistoryRepo(pool)

	notifier := services.NewNotificationService(orgRepo, emailLogRepo)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, planRepo, orgRepo, historyRepo, cacheSvc, notifier, cfg)
	usageSvc := services.NewUsageService(usageRepo, subscriptionRepo, planRepo, overrideRepo, storageSvc, cfg)

	ctx := context.Background()

	switch command {
	case "process-transitions":
		counts, err := jobs.NewTransitionJob(subscriptionSvc).Run(ctx)
		fmt.Printf("to_grace_period=%d to_readonly=%d to_expired=%d\n",
			counts.ToGracePeriod, counts.ToReadonly, counts.ToExpired)
		if err != nil {
			log.Printf("ERROR: %v", err)
			os.Exit(1)
		}

	case "send-reminders":
		sent, err := jobs.NewReminderJob(subscriptionRepo, emailLogRepo, notifier).Run(ctx)
		fmt.Printf("reminders_sent=%d\n", sent)
		if err != nil {
			log.Printf("ERROR: %v", err)
			os.Exit(1)
		}

	case "recalculate-usage":
		if flag.NArg() >= 2 {
			organizationID, err := uuid.Parse(flag.Arg(1))
			if err != nil {
				log.Fatalf("Invalid organization id %q: %v", flag.Arg(1), err)
			}
			counts, err := usageSvc.RecalculateUsage(ctx, organizationID)
			if err != nil {
				log.Printf("ERROR: %v", err)
				os.Exit(1)
			}
			for key, count := range counts {
				fmt.Printf("%s=%d\n", key, count)
			}
			return
		}
		recalcJob := jobs.NewUsageRecalcJob(orgRepo, subscriptionRepo, usageRepo, usageSvc, notifier, cfg)
		processed, failed, err := recalcJob.Run(ctx)
		fmt.Printf("organizations_processed=%d failed=%d\n", processed, failed)
		if err != nil || failed > 0 {
			if err != nil {
				log.Printf("ERROR: %v", err)
			}
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
