package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/api/handlers"
	"github.com/maheshrc27/contentflow/internal/api/middleware"
	job "github.com/maheshrc27/contentflow/internal/jobs"
	"github.com/maheshrc27/contentflow/internal/logging"
	"github.com/maheshrc27/contentflow/internal/queue"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/robfig/cron"
)

func main() {
	cfg := config.LoadConfig()
	appLogger := logging.New(cfg.LogLevel)

	postRepo, err := repository.NewPostRepository(cfg.Scheduler.DataDir,
		repository.WithDefaultMaxAttempts(cfg.Scheduler.MaxAttempts),
		repository.WithLogger(appLogger),
	)
	if err != nil {
		log.Fatalf("Failed to open post store: %v", err)
	}
	if _, err := postRepo.LoadAll(context.Background()); err != nil {
		log.Fatalf("Failed to load scheduled posts: %v", err)
	}

	var db *sql.DB
	var historyRepo repository.PostingHistoryRepository
	if cfg.PostgresURI != "" {
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}
		historyRepo = repository.NewPostingHistoryRepository(db)
		if err := historyRepo.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate posting history: %v", err)
		}
	}

	credentialService := service.NewCredentialService(*cfg)
	publishers := []service.Publisher{
		service.NewLinkedInService(*cfg, appLogger),
		service.NewFacebookService(*cfg, appLogger),
	}
	dispatcher := service.NewDispatcher(publishers, credentialService, service.DispatcherOptions{
		Timeout:   cfg.Scheduler.PublishTimeout,
		SecretKey: cfg.SecretKey,
		Logger:    appLogger,
	})

	worker := queue.NewWorker(postRepo, dispatcher, historyRepo, queue.WorkerOptions{
		Interval:    cfg.Scheduler.PollInterval,
		Backoff:     cfg.Scheduler.RetryBackoff,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		Logger:      appLogger,
	})
	schedulerService := service.NewSchedulerService(postRepo, worker, service.SchedulerOptions{
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		SecretKey:   cfg.SecretKey,
		Logger:      appLogger,
	})
	if cfg.Scheduler.AutoStart {
		if err := schedulerService.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	var client *asynq.Client
	var asynqServer *asynq.Server
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client = asynq.NewClient(redisConn)
		defer client.Close()

		contentService, err := service.NewContentService(context.Background(), *cfg, nil)
		if err != nil {
			log.Printf("Content generation disabled: %v", err)
		} else {
			queueW := queue.NewQueue(
				contentService,
				service.NewImageService(*cfg),
				service.NewR2Service(*cfg),
				schedulerService,
				filepath.Join(cfg.Scheduler.DataDir, "content"),
			)

			asynqServer = asynq.NewServer(redisConn, asynq.Config{
				Concurrency: 2,
			})
			go func() {
				mux := asynq.NewServeMux()
				mux.HandleFunc(queue.TaskTypeGenerateContent, queueW.HandleGenerateContentTask)

				log.Println("Starting the Asynq server...")
				if err := asynqServer.Run(mux); err != nil {
					log.Fatalf("Could not start Asynq server: %v", err)
				}
			}()
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		MaxAge:       3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "scheduler_running": schedulerService.Running()})
	})

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	if !authMiddleware.Enabled() {
		slog.Warn("API_KEY and SECRET_KEY are unset; the control API is unauthenticated")
	}

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(schedulerService, historyRepo, filepath.Join(cfg.Scheduler.DataDir, "content"))
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/schedule-file", post.ScheduleFromFile)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/diagnostics", post.Diagnostics)
	api.Get("/posts/:id", post.GetPost)
	api.Get("/posts/:id/history", post.PostHistory)
	api.Post("/posts/:id/cancel", post.CancelPost)

	scheduler := handlers.NewSchedulerHandler(schedulerService)
	api.Post("/scheduler/start", scheduler.Start)
	api.Post("/scheduler/stop", scheduler.Stop)
	api.Get("/scheduler/status", scheduler.Status)

	content := handlers.NewContentHandler(client)
	api.Post("/content/generate", content.Generate)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(credentialService)
	storeAuditJob := job.NewStoreAuditJob(schedulerService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", storeAuditJob.Audit)
	c.Start()

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, c, schedulerService, asynqServer, db)
}

func closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, ss service.SchedulerService, asynqServer *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	c.Stop()
	if asynqServer != nil {
		asynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ss.Stop(ctx); err != nil {
		log.Printf("Scheduler did not stop cleanly: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
