package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/taskflow/backend/internal/auth"
	"github.com/taskflow/backend/internal/config"
	"github.com/taskflow/backend/internal/dashboard"
	"github.com/taskflow/backend/internal/handlers"
	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/notify"
	"github.com/taskflow/backend/internal/repository"
	"github.com/taskflow/backend/internal/router"
	"github.com/taskflow/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not read .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := repository.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	submissionRepo := repository.NewSubmissionRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	notificationRepo := repository.NewNotificationRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool))

	// Notifications: insert func is set after the River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn notify.InsertFunc
	insertNotification := func(ctx context.Context, args notify.Args) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, args)
	}
	notifier := notify.NewRiverNotifier(insertNotification, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewWorker(notificationRepo))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.NotifyWorkers},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, args notify.Args) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Core services
	registry := services.NewTaskRegistry(pool, userRepo, taskRepo, submissionRepo, ledgerSvc, notifier, logger)
	engine := services.NewSubmissionEngine(pool, userRepo, submissionRepo, registry, ledgerSvc, notifier, logger)
	withdrawals := services.NewWithdrawalEngine(pool, userRepo, withdrawalRepo, ledgerSvc, notifier, logger)
	payments := services.NewPaymentService(pool, paymentRepo, ledgerSvc, services.StubProvider{}, logger)
	userAdmin := services.NewUserAdmin(pool, userRepo, submissionRepo, registry, ledgerSvc, notifier, logger)

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// Auth
	authSvc := auth.NewService(auth.NewRepository(pool, userRepo), ledgerSvc, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), logger)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("Failed to seed admin account", "error", err)
		os.Exit(1)
	}

	api := router.New(router.Deps{
		Tokens:        authSvc,
		Validator:     validator,
		Auth:          auth.NewHandler(authSvc, logger),
		Tasks:         &handlers.TaskHandler{Tasks: registry, Logger: logger},
		Submissions:   &handlers.SubmissionHandler{Submissions: engine, Logger: logger},
		Withdrawals:   &handlers.WithdrawalHandler{Withdrawals: withdrawals, Logger: logger},
		Payments:      &handlers.PaymentHandler{Payments: payments, Logger: logger},
		Notifications: &handlers.NotificationHandler{Notifications: notificationRepo, Logger: logger},
		Users:         &handlers.UserHandler{Users: userRepo, Accounts: userAdmin, Logger: logger},
		Dashboard:     dashboard.NewHandler(statsRepo, ledgerSvc, logger),
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.RequestLogger(logger)(limiter.Middleware(api)))

	// Start River client (processes jobs)
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River shutdown failed", "error", err)
	}
}
