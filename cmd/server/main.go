package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"VoteService/internal/api/middleware"
	"VoteService/internal/api/routes"
	"VoteService/internal/bus"
	"VoteService/internal/config"
	"VoteService/internal/core/votes"
	"VoteService/internal/db/migrations"
	postgresRepo "VoteService/internal/db/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env.dev")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	// The pool is the only shared storage resource; saturated callers queue here
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to vote database")

	if err := migrations.Up(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed successfully")

	// Repository -> service -> bus
	voteRepo := postgresRepo.NewVoteRepository(db,
		postgresRepo.WithOperationTimeout(cfg.StorageTimeout),
		postgresRepo.WithCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerOpenDuration),
		postgresRepo.WithLogger(logger),
	)
	voteService := votes.NewService(voteRepo, logger)

	requestBus := bus.New(
		bus.WithTimeout(cfg.BusTimeout),
		bus.WithMaxInFlight(cfg.BusMaxInFlight),
		bus.WithLogger(logger),
	)
	if err := votes.RegisterHandlers(requestBus, voteService); err != nil {
		return err
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Use(rateLimiter.Middleware)

	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.JWTSecret), logger)
	routes.RegisterVoteRoutes(r, requestBus, authMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("vote service starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		// Handlers detached from timed-out callers may still be writing
		if err := requestBus.Drain(shutdownCtx); err != nil {
			logger.Warn("bus drain incomplete", "error", err)
		}
		return nil
	})

	return g.Wait()
}
