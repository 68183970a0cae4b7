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

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/handler"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
	"github.com/Dan9191/strata-service/internal/service"
	"github.com/Dan9191/strata-service/internal/sweeper"
	"github.com/Dan9191/strata-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db, logger, "up"); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Notifications go out after commit on a background worker
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if sender := email.NewSender(cfg, logger); sender.Enabled() {
		notifiers = append(notifiers, sender)
	}
	dispatcher := notify.NewDispatcher(notifiers, logger, 256)
	// Not tied to the signal context so Stop can flush the queue on shutdown
	dispatcher.Start(context.Background())

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, logger, cfg, repository.NewDirectory(db), dispatcher)
	h := handler.NewHandler(svc, logger)

	sweeps, err := sweeper.New(svc, logger, cfg.SweepSchedule)
	if err != nil {
		logger.Fatalf("Failed to schedule sweeps: %v", err)
	}
	sweeps.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sweeps.Stop(shutdownCtx)
	dispatcher.Stop()
}
