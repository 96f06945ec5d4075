package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/league-manager/cache"
	"github.com/Dosada05/league-manager/config"
	"github.com/Dosada05/league-manager/db"
	"github.com/Dosada05/league-manager/handlers"
	"github.com/Dosada05/league-manager/live"
	"github.com/Dosada05/league-manager/repositories"
	api "github.com/Dosada05/league-manager/routes"
	"github.com/Dosada05/league-manager/scheduler"
	"github.com/Dosada05/league-manager/services"
	"github.com/Dosada05/league-manager/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbConn, err := db.Connect(appCtx, cfg.DatabaseURL, cfg.DBConnectTimeout, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Кэш таблиц (опционально)
	var standingsCache services.StandingsCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(appCtx, cfg.RedisURL, cfg.DBMaxOpenConns)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		standingsCache = cache.NewRedisStandingsCache(redisClient, cfg.StandingsCacheTTL)
		logger.Info("standings cache enabled", slog.Duration("ttl", cfg.StandingsCacheTTL))
	}

	logoResolver, err := newLogoResolver(appCtx, cfg)
	if err != nil {
		logger.Error("failed to initialize logo resolver", slog.Any("error", err))
		os.Exit(1)
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run(appCtx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	transactor := repositories.NewPostgresTransactor(dbConn, cfg.TxMaxRetries, logger)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn, cfg.DBQueryTimeout)
	scheduleRepo := repositories.NewPostgresScheduleRepository(dbConn, cfg.DBQueryTimeout)
	lookupRepo := repositories.NewPostgresLookupRepository(dbConn, cfg.DBQueryTimeout)
	standingsRepo := repositories.NewPostgresStandingsRepository(dbConn, cfg.DBQueryTimeout)

	// Инициализация сервисов
	matchService := services.NewMatchService(transactor, matchRepo, scheduleRepo, lookupRepo, standingsCache, wsHub, logger)
	standingsService := services.NewStandingsService(transactor, standingsRepo, standingsCache, logoResolver, logger)

	// Фоновый пересчет счетчиков leagueteam
	jobs, err := scheduler.NewService(logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := scheduler.RegisterCountersJob(jobs, standingsService, cfg.CountersRebuildCron, cfg.CountersRebuildTimeout); err != nil {
		logger.Error("failed to register counters job", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		ctx, cancel := context.WithTimeout(appCtx, cfg.CountersRebuildTimeout)
		defer cancel()
		if err := standingsService.RebuildCounters(ctx); err != nil {
			logger.Error("initial counters rebuild failed", slog.Any("error", err))
		}
	}()
	jobs.Start()
	defer func() {
		if err := jobs.Stop(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	matchHandler := handlers.NewMatchHandler(matchService)
	standingsHandler := handlers.NewStandingsHandler(standingsService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger)
	healthHandler := handlers.NewHealthHandler(dbConn, cfg.DBConnectTimeout)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, matchHandler, standingsHandler, webSocketHandler, healthHandler, api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stopApp()
			return
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	// останавливаем hub и фоновые задачи до закрытия БД
	stopApp()
	logger.Info("application exited")
}

// newLogoResolver: R2 presign, публичный базовый URL или ничего (ключи не резолвятся).
func newLogoResolver(ctx context.Context, cfg *config.Config) (storage.LogoResolver, error) {
	switch {
	case cfg.R2Enabled():
		return storage.NewCloudflareR2Resolver(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			PresignTTL:      cfg.LogoPresignTTL,
		})
	case cfg.LogoBaseURL != "":
		return storage.NewPublicURLResolver(cfg.LogoBaseURL)
	default:
		return nil, nil
	}
}
