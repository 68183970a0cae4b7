package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
	"github.com/Dan9191/strata-service/internal/service"
)

// adminState is the configuration and database a command runs against.
type adminState struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *sqlx.DB
	ctx    context.Context
	cancel context.CancelFunc
}

func newAdminState() (*adminState, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBConn)
	if err != nil {
		cancel()
		return nil, err
	}
	return &adminState{cfg: cfg, log: log, db: db, ctx: ctx, cancel: cancel}, nil
}

// service builds a service whose notifications are logged. Email delivery
// belongs to the API process.
func (s *adminState) service() *service.Service {
	return service.NewService(
		repository.NewRepository(s.db),
		s.log,
		s.cfg,
		repository.NewDirectory(s.db),
		logPublisher{notifier: notify.NewLogNotifier(s.log), ctx: s.ctx},
	)
}

func (s *adminState) Close() {
	s.db.Close()
	s.cancel()
}

type logPublisher struct {
	notifier notify.Notifier
	ctx      context.Context
}

func (p logPublisher) Publish(ev notify.Event) {
	_ = p.notifier.Notify(p.ctx, ev)
}
