package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"tightlines/achievements"
	"tightlines/catalog"
	"tightlines/config"
	"tightlines/database"
	"tightlines/handlers"
	"tightlines/logging"
	"tightlines/middleware"
	"tightlines/services"
	"tightlines/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("FATAL: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		_, _ = os.Stderr.WriteString("FATAL: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flush traces", zap.Error(err))
		}
	}()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	defs, err := catalog.Load()
	if err != nil {
		return err
	}
	if err := catalog.Seed(ctx, db, defs); err != nil {
		return err
	}
	registry := achievements.DefaultRegistry()
	if inert := catalog.Unregistered(defs, registry.Has); len(inert) > 0 {
		log.Warn("catalog entries with unregistered criteria", zap.Strings("achievement_ids", inert))
	}
	log.Info("achievement catalog seeded", zap.Int("achievements", len(defs)))

	hub := services.NewHub(log)
	store := database.NewAchievementStore(db)
	retryStore := database.NewRetryStore(db)

	engineOpts := []achievements.Option{
		achievements.WithLogger(log),
		achievements.WithRegistry(registry),
		achievements.WithNotifier(hub),
	}
	deps := handlers.Deps{
		DB:        db,
		Hub:       hub,
		Logger:    log,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}

	if cfg.Retry.Enabled {
		engineOpts = append(engineOpts, achievements.WithRetryQueue(retryStore))
		worker := services.NewRewardRetryWorker(retryStore, cfg.Retry, log)
		worker.Start()
		defer worker.Stop()
		deps.Retries = retryStore
		deps.RetryRun = worker
	}

	engine := achievements.New(store, engineOpts...)
	// Let in-flight passes finish before the database closes.
	defer engine.Close()
	deps.Engine = engine

	if cfg.Limits.Enabled {
		general := middleware.NewRateLimiter(cfg.Limits.MaxRequests, cfg.Limits.Window)
		auth := middleware.NewRateLimiter(cfg.Limits.AuthMax, cfg.Limits.AuthWindow)
		go general.RunJanitor(ctx)
		go auth.RunJanitor(ctx)
		deps.Limit = middleware.RateLimit(general, "Rate limit exceeded. Please try again later.")
		deps.AuthLimit = middleware.RateLimit(auth, "Too many authentication attempts. Please try again later.")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(cfg.IsProduction(), log),
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	handlers.New(deps).Register(app)

	errc := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.Bool("reward_retry", cfg.Retry.Enabled),
			zap.Bool("rate_limit", cfg.Limits.Enabled))
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
