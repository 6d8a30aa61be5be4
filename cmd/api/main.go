package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/anjiri1684/learning_assessment/cache"
	config "github.com/anjiri1684/learning_assessment/configs"
	"github.com/anjiri1684/learning_assessment/database"
	"github.com/anjiri1684/learning_assessment/handlers"
	"github.com/anjiri1684/learning_assessment/jobs"
	"github.com/anjiri1684/learning_assessment/notifications"
	"github.com/anjiri1684/learning_assessment/routes"
	"github.com/anjiri1684/learning_assessment/services"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/anjiri1684/learning_assessment/websocket"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database.ConnectDB()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	database.TunePool(database.DB)

	attempts := store.NewAttemptStore(database.DB)
	catalog := store.NewCatalog(database.DB)
	grader := services.NewGradingEngine(config.ConfigFloat("PASS_THRESHOLD", services.DefaultPassThreshold))

	results := services.NewResultService(attempts, catalog, grader,
		services.WithCache(resultCache(ctx), config.ConfigDuration("RESULT_CACHE_TTL", services.DefaultOverviewTTL)),
	)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	lifecycle := services.NewAttemptService(attempts, catalog, grader,
		services.WithFinishListener(results),
		services.WithFinishListener(hub),
	)
	authoring := services.NewAuthoringService(catalog)
	roster := services.NewRosterService(store.NewRoster(database.DB))

	reminder := &jobs.TestReminder{
		Tests:   catalog,
		Results: results,
		Lead:    time.Hour,
		Span:    5 * time.Minute,
		Now:     func() time.Time { return time.Now().UTC() },
	}
	if mailer := notifications.NewEmailService(); mailer != nil {
		reminder.Mailer = mailer
	}

	sweepBatch := config.ConfigInt("SWEEP_BATCH", 100)
	c := cron.New()
	if _, err := c.AddFunc(config.ConfigOr("SWEEP_SCHEDULE", "@every 1m"), func() {
		jobs.SweepOverdueAttempts(ctx, lifecycle, sweepBatch)
	}); err != nil {
		log.Fatalf("🔥 Invalid SWEEP_SCHEDULE: %v", err)
	}
	if _, err := c.AddFunc(config.ConfigOr("REMINDER_SCHEDULE", "*/5 * * * *"), func() {
		sent, err := reminder.SendTestReminders(ctx)
		if err != nil {
			log.Printf("🔥 Test reminder job failed: %v", err)
			return
		}
		log.Printf("Sent %d test reminders.", sent)
	}); err != nil {
		log.Fatalf("🔥 Invalid REMINDER_SCHEDULE: %v", err)
	}
	c.Start()
	log.Println("✅ Cron jobs for overdue attempts and test reminders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "Learning Assessment",
		CaseSensitive: true,
		StrictRouting: true,
		JSONEncoder:   sonic.Marshal,
		JSONDecoder:   sonic.Unmarshal,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.ConfigOr("CORS_ORIGINS", "*"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Learning Assessment API",
		})
	})

	routes.ExamRoutes(app, handlers.NewExamHandler(lifecycle))
	routes.TeacherRoutes(app, handlers.NewTeacherHandler(authoring, results, hub))
	routes.AdminRoutes(app, handlers.NewAdminHandler(roster))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.ConfigOr("PORT", "8080")
	go func() {
		log.Printf("✅ Server is running on port %s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("🔥 Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	cronDone := c.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
	select {
	case <-cronDone.Done():
	case <-shutdownCtx.Done():
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// resultCache prefers Redis when REDIS_URL is set and falls back to process memory.
func resultCache(ctx context.Context) cache.Cache {
	url := config.Config("REDIS_URL")
	if url == "" {
		return cache.NewMemory()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedis(pingCtx, url, config.ConfigOr("REDIS_PREFIX", "assessment:"))
	if err != nil {
		log.Printf("⚠️ Redis unavailable, using in-memory result cache: %v", err)
		return cache.NewMemory()
	}
	log.Println("✅ Redis result cache connected")
	return rc
}
