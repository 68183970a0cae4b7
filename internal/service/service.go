package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
)

// Directory is the read-only building/lot directory used for authorization.
type Directory interface {
	LotBuilding(ctx context.Context, lotID string) (string, error)
	MemberRole(ctx context.Context, buildingID, userID string) (models.Role, error)
}

// Service handles the levy arrears and payment plan business logic
type Service struct {
	repo      *repository.Repository
	log       *logrus.Logger
	config    *config.Config
	directory Directory
	events    notify.Publisher
	locks     *keyedMutex
	now       func() time.Time
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config, directory Directory, events notify.Publisher) *Service {
	return &Service{
		repo:      repo,
		log:       log,
		config:    cfg,
		directory: directory,
		events:    events,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// SetClock replaces the clock used to derive today's date.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) today() models.Date {
	return models.NewDate(s.now())
}

// publish hands events to the notifier once the producing transaction has committed.
func (s *Service) publish(events ...notify.Event) {
	if s.events == nil {
		return
	}
	for _, ev := range events {
		s.events.Publish(ev)
	}
}

func planEvent(t notify.EventType, plan *models.PaymentPlan, on models.Date) notify.Event {
	return notify.Event{
		Type:       t,
		PlanID:     plan.ID,
		LotID:      plan.LotID,
		BuildingID: plan.BuildingID,
		UserID:     plan.UserID,
		OccurredOn: on,
	}
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
