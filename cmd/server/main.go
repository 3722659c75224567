package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/cache"
	"github.com/satprep/session-service/internal/config"
	"github.com/satprep/session-service/internal/handlers"
	"github.com/satprep/session-service/internal/repositories/postgres"
	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
	"github.com/satprep/session-service/pkg"
)

// expirySweepInterval bounds how long an abandoned-in-place session can
// sit past its deadline before the reaper force-completes it.
const expirySweepInterval = time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	sessionCache := cache.NewSessionCache(cache.NewRedisCache(redisClient, logger))
	validator := utils.NewValidator()

	eventService := services.NewSessionEventService(publisher, logger)
	timeWarning := time.Duration(cfg.TimeWarningSeconds) * time.Second
	sessionService := services.NewSessionService(repo, sessionCache, eventService, validator, timeWarning, logger)
	examService := services.NewExamService(repo, sessionCache, eventService, validator, logger)
	questionService := services.NewQuestionService(repo, logger)
	reportService := services.NewReportService(sessionService, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handlerLogger := utils.NewSlogLogger(logger)
	router.Use(utils.LoggerMiddleware(handlerLogger))
	auth := handlers.NewAuthMiddleware(cfg, handlerLogger)
	manager := handlers.NewHandlerManager(
		sessionService,
		examService,
		questionService,
		reportService,
		validator,
		handlerLogger,
	)
	manager.SetupRoutes(router, auth.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepExpiredSessions(ctx, sessionService, logger)

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func sweepExpiredSessions(ctx context.Context, sessions services.SessionService, logger *slog.Logger) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warned, err := sessions.WarnApproachingDeadlines(ctx)
			if err != nil {
				logger.Error("time-warning sweep failed", "error", err)
			} else if warned > 0 {
				logger.Info("time warnings sent", "count", warned)
			}

			closed, err := sessions.ExpireOverdue(ctx)
			if err != nil {
				logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if closed > 0 {
				logger.Info("expired sessions closed", "count", closed)
			}
		}
	}
}
