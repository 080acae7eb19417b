package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cardtalk/api/config"
	"cardtalk/api/database"
	"cardtalk/api/handlers"
	"cardtalk/api/logger"
	"cardtalk/api/services"
	"cardtalk/api/store"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, os.Args[1:]); err != nil {
		log.Error("exiting", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, args []string) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	dbClient, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize PostgreSQL: %w", err)
	}
	defer dbClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := dbClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply PostgreSQL schema: %w", err)
	}

	userStore := store.NewUserStore(dbClient.DB)
	auth := services.NewAuth(userStore, services.LockoutPolicy{
		Enabled:     cfg.LoginLockoutEnabled,
		MaxAttempts: cfg.LoginMaxAttempts,
		Duration:    cfg.LoginLockDuration,
	}, log)

	if len(args) > 0 {
		return runCommand(ctx, auth, log, args)
	}

	questionStore := store.NewQuestionStore(dbClient.DB)
	categoryStore := store.NewCategoryStore(dbClient.DB)
	reviewStore := store.NewReviewStore(dbClient.DB)

	// Both stay nil interfaces when their backend is not configured.
	var audit services.InteractionLog
	if cfg.ClickHouseHost != "" {
		chClient, err := database.NewClickHouseDB(database.ClickHouseOptions{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return fmt.Errorf("initialize ClickHouse: %w", err)
		}
		defer chClient.Close()
		if err := chClient.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply ClickHouse schema: %w", err)
		}
		audit = store.NewInteractionStore(chClient)
	} else {
		log.Warn("CLICKHOUSE_HOST not set, interaction audit trail disabled")
	}

	var cache services.CategoryCache
	if cfg.RedisAddr != "" {
		rdb, err := database.NewRedisClient(database.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("initialize Redis: %w", err)
		}
		defer rdb.Close()
		cache = store.NewCategoryCache(rdb, cfg.CategoryCacheTTL)
	} else {
		log.Warn("REDIS_ADDR not set, category listing is not cached")
	}

	filtered, err := services.ResolveSkipRateFilter(ctx, cfg.SkipRateIndex, questionStore.HasSkipRateIndex)
	if err != nil {
		return fmt.Errorf("resolve skip rate index mode: %w", err)
	}
	log.Info("skip rate ranking", "mode", cfg.SkipRateIndex, "filtered", filtered)

	counters := services.NewCounters(questionStore, categoryStore)
	router := handlers.NewRouter(handlers.Deps{
		Auth:           auth,
		Recorder:       services.NewRecorder(questionStore, counters, audit, log),
		Counters:       counters,
		Reviews:        services.NewReviews(reviewStore, cache, log),
		Catalog:        services.NewCatalog(categoryStore, questionStore, cache, log),
		Analytics:      services.NewAnalytics(questionStore, categoryStore, filtered),
		DB:             dbClient.DB,
		JWTSecret:      []byte(cfg.JWTSecret),
		SecureCookies:  cfg.SecureCookies,
		FrontendOrigin: cfg.FrontendOrigin,
		Log:            log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("API server failed: %w", err)
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

// runCommand handles one-off maintenance commands:
//
//	create-admin <username> <password>
func runCommand(ctx context.Context, auth *services.Auth, log *logger.Logger, args []string) error {
	switch args[0] {
	case "create-admin":
		if len(args) != 3 {
			return errors.New("usage: create-admin <username> <password>")
		}
		if err := auth.CreateAdmin(ctx, args[1], args[2], nil); err != nil {
			return err
		}
		log.Info("admin account saved", "username", args[1])
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
