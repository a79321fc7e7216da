package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"

	"cinepasse-backoffice/internal/auth"
	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/backend/memory"
	"cinepasse-backoffice/internal/config"
	"cinepasse-backoffice/internal/database"
	"cinepasse-backoffice/internal/handler"
	"cinepasse-backoffice/internal/middleware"
	"cinepasse-backoffice/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis (non-fatal if unavailable)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, sign-outs stay local and login is not rate limited", "error", err)
		rdb = nil
	}

	var (
		store    backend.Store
		blobs    backend.BlobStorage
		authSvc  *auth.Service
		shutdown func()
	)

	switch cfg.Backend {
	case config.BackendMemory:
		mem := memory.New(backend.Index{
			Collection: backend.CollectionTickets,
			Field:      "purchaser_id",
			OrderBy:    "created_at",
		})
		creds := memory.NewCredentials()
		store = mem
		blobs = memory.NewBlobs(cfg.Storage.PublicBaseURL)
		authSvc = auth.NewService(creds, cfg.Auth, rdb)
		shutdown = func() {}

		if cfg.Admin.Email != "" {
			if _, err := auth.SeedAdmin(ctx, creds, mem.Users(), cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
				slog.Error("failed to seed admin", "error", err)
				os.Exit(1)
			}
		}
		slog.Warn("running with in-memory backend, data is lost on exit")

	default:
		// Connect to PostgreSQL
		db, err := database.NewPostgres(cfg.DB)
		if err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		pg := repository.NewStore(db)
		if err := pg.Listen(ctx, cfg.DB.DSN()); err != nil {
			slog.Error("failed to listen for record changes", "error", err)
			os.Exit(1)
		}
		store = pg
		blobs = repository.NewBlobRepository(db, cfg.Storage.PublicBaseURL)
		authSvc = auth.NewService(repository.NewCredentialRepository(db), cfg.Auth, rdb)
		shutdown = func() {
			if err := db.Close(); err != nil {
				slog.Error("error closing PostgreSQL connection", "error", err)
			} else {
				slog.Info("PostgreSQL connection closed")
			}
		}
	}

	// Relay sign-outs from other instances
	go authSvc.Run(ctx)

	h := handler.NewHandler(authSvc, store, blobs, cfg)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CinePasse Backoffice",
		ServerHeader: "CinePasse-Backoffice",
		BodyLimit:    cfg.MaxUploadSize + 1024*1024,
		ErrorHandler: handler.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	if len(cfg.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins, AllowCredentials: true}))
	} else {
		app.Use(cors.New())
	}
	app.Use(middleware.RequireSession(authSvc, cfg.Auth.CookieName))

	// Swagger docs
	swaggerYAML, err := os.ReadFile(cfg.SwaggerPath)
	if err != nil {
		slog.Warn("swagger.yaml not found, swagger UI will be unavailable", "error", err)
	} else {
		handler.RegisterSwagger(app, swaggerYAML)
	}

	loginLimiter := middleware.NewRateLimiter(rdb, cfg.Auth.RateLimitKeyScope, cfg.Auth.LoginRateMax, cfg.Auth.LoginRateWindow)
	h.RegisterRoutes(app, loginLimiter.Handler())

	go func() {
		slog.Info("backoffice starting", "port", cfg.Port, "backend", cfg.Backend)
		if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down backoffice...")

	// End event streams, then stop accepting new requests
	h.Close()
	if err := app.Shutdown(); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
	slog.Info("HTTP server stopped")

	shutdown()
	closeRedis(rdb)

	slog.Info("backoffice shutdown complete")
}

func closeRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		slog.Error("error closing Redis connection", "error", err)
	} else {
		slog.Info("Redis connection closed")
	}
}
