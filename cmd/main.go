package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"nazim/internal/caching"
	"nazim/internal/config"
	"nazim/internal/handlers"
	"nazim/internal/jobs"
	"nazim/internal/jobs/background"
	"nazim/internal/middleware"
	"nazim/internal/repositories"
	"nazim/internal/services"
	"nazim/pkg/database"
)

func main() {
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

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	minioUseSSL := os.Getenv("MINIO_USE_SSL") == "true"
	minioBucket := os.Getenv("MINIO_BUCKET")
	if minioBucket == "" {
		minioBucket = "nazim-documents"
	}

	minioClient, err := services.NewMinioClient(minioEndpoint, minioAccessKey, minioSecretKey, minioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}
	storageSvc := services.NewStorageService(minioClient, minioBucket)
	if err := storageSvc.EnsureBucketExists(context.Background()); err != nil {
		log.Printf("WARN: failed to verify storage bucket: %v", err)
	}

	// Repositories
	orgRepo := repositories.NewOrganizationRepo(pool)
	planRepo := repositories.NewPlanRepo(pool)
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	usageRepo := repositories.NewUsageRepo(pool)
	overrideRepo := repositories.NewLimitOverrideRepo(pool)
	emailLogRepo := repositories.NewEmailLogRepo(pool)
	historyRepo := repositories.NewHistoryRepo(pool)

	// Cache
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Services
	notifier := services.NewNotificationService(orgRepo, emailLogRepo)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, planRepo, orgRepo, historyRepo, cacheSvc, notifier, cfg)
	usageSvc := services.NewUsageService(usageRepo, subscriptionRepo, planRepo, overrideRepo, storageSvc, cfg)

	// Background jobs
	transitionJob := jobs.NewTransitionJob(subscriptionSvc)
	reminderJob := jobs.NewReminderJob(subscriptionRepo, emailLogRepo, notifier)
	recalcJob := jobs.NewUsageRecalcJob(orgRepo, subscriptionRepo, usageRepo, usageSvc, notifier, cfg)
	scheduler := background.NewJobScheduler(transitionJob, reminderJob, recalcJob, cfg)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("WARN: failed to stop scheduler cleanly: %v", err)
		}
	}()

	// Handlers
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc, usageSvc)
	adminHandlers := handlers.NewAdminHandlers(subscriptionSvc, usageSvc, historyRepo)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, scheduler)

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/health/jobs", healthHandlers.JobStatus)

	v1 := e.Group("/api/v1")
	v1.GET("/plans", subscriptionHandlers.ListPlans)

	protected := v1.Group("")
	protected.Use(middleware.JWTMiddleware(orgRepo, jwtSecret))
	protected.GET("/subscription", subscriptionHandlers.GetStatus)
	protected.GET("/subscription/usage", subscriptionHandlers.GetAllUsage, middleware.RequireReadAccess(subscriptionSvc))
	protected.GET("/subscription/usage/:resource", subscriptionHandlers.GetUsageByResource, middleware.RequireReadAccess(subscriptionSvc))

	admin := v1.Group("/admin")
	admin.Use(middleware.JWTMiddleware(orgRepo, jwtSecret))
	writeGate := middleware.RequireWriteAccess(subscriptionSvc)
	admin.POST("/subscriptions/process-transitions", adminHandlers.ProcessTransitions)
	admin.GET("/organizations/:org_id/subscription/history", adminHandlers.History)
	admin.GET("/organizations/:org_id/usage", adminHandlers.UsageRows)
	admin.POST("/organizations/:org_id/recalculate-usage", adminHandlers.RecalculateUsage)
	admin.POST("/organizations/:org_id/subscription/trial", adminHandlers.StartTrial, writeGate)
	admin.POST("/organizations/:org_id/subscription/activate", adminHandlers.Activate, writeGate)
	admin.POST("/organizations/:org_id/subscription/cancel", adminHandlers.Cancel, writeGate)
	admin.POST("/organizations/:org_id/subscription/suspend", adminHandlers.Suspend, writeGate)

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	if err := e.Shutdown(context.Background()); err != nil {
		log.Printf("WARN: server shutdown error: %v", err)
	}
}
