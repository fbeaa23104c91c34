package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/theleywin/Backend-Social-Feed/src/cache"
	"github.com/theleywin/Backend-Social-Feed/src/controllers"
	"github.com/theleywin/Backend-Social-Feed/src/events"
	"github.com/theleywin/Backend-Social-Feed/src/lib"
	"github.com/theleywin/Backend-Social-Feed/src/middleware"
	"github.com/theleywin/Backend-Social-Feed/src/routes"
	"github.com/theleywin/Backend-Social-Feed/src/services"
	"github.com/theleywin/Backend-Social-Feed/src/worker"
)

func main() {
	cfg, err := lib.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	lib.InitLogger(cfg)
	slog.Info("Starting social feed API", "env", cfg.Env, "store", cfg.StoreDriver, "delete_policy", cfg.DeletePolicy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OtelEndpoint != "" {
		tp, err := lib.InitTracer(ctx, cfg)
		if err != nil {
			slog.Error("Failed to init tracer", "error", err)
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	st, blobs, err := lib.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close(context.Background()) }()

	var feedCache services.FeedCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Warn("Redis unreachable, feed cache disabled", "error", err)
		} else {
			defer rdb.Close()
			feedCache = cache.NewRedisFeedCache(rdb, cfg.FeedCacheTTL)
			slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	notifications := services.NewNotificationService(st)

	var publisher events.Publisher
	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL)
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer func() { _ = nc.Drain() }()

		if _, err := events.Subscribe(nc, notifications.HandleEvent); err != nil {
			slog.Error("Failed to subscribe to NATS", "error", err)
			os.Exit(1)
		}
		publisher = events.NewNatsPublisher(nc)
		slog.Info("Connected to NATS", "subject", events.SubjectAll)
	} else {
		bus := events.NewLocalBus()
		bus.Subscribe(notifications.HandleEvent)
		publisher = bus
	}

	posts := services.NewPostService(st, blobs, services.PostServiceOptions{
		Cache:          feedCache,
		Publisher:      publisher,
		CascadeDelete:  cfg.DeletePolicy == lib.DeletePolicyCascade,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: controllers.ErrorHandler,
		// Room for the multipart envelope around the largest image.
		BodyLimit: int(cfg.MaxUploadBytes) + 64<<10,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	protect := middleware.ProtectRoute(cfg.JWTSecret)

	// Register routes
	routes.PostRoutes(app, controllers.NewPostController(posts), protect)
	routes.NotificationRoutes(app, controllers.NewNotificationController(notifications), protect)
	routes.HealthRoutes(app, controllers.NewHealthController(st))

	reaper := worker.NewReaper(st, cfg.ReapInterval)
	reaper.Start(ctx)

	go func() {
		slog.Info("Server is running", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	reaper.Stop()
	slog.Info("Server exited")
}
