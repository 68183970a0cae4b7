// Package notify delivers plan lifecycle events to residents and managers
// after the state change that produced them has been committed.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/models"
)

type EventType string

const (
	PlanRequested      EventType = "planRequested"
	PlanApproved       EventType = "planApproved"
	PlanRejected       EventType = "planRejected"
	InstallmentOverdue EventType = "installmentOverdue"
	PlanDefaulted      EventType = "planDefaulted"
)

// Event is one notification about a payment plan.
type Event struct {
	Type              EventType   `json:"type"`
	PlanID            string      `json:"plan_id"`
	LotID             string      `json:"lot_id"`
	BuildingID        string      `json:"building_id"`
	UserID            string      `json:"user_id"`
	InstallmentNumber int         `json:"installment_number,omitempty"`
	Reason            string      `json:"reason,omitempty"`
	OccurredOn        models.Date `json:"occurred_on"`
}

// Notifier delivers a single event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher accepts events for asynchronous delivery. Publish never blocks on delivery.
type Publisher interface {
	Publish(ev Event)
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the application log.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	entry := n.log.WithFields(logrus.Fields{
		"event":       ev.Type,
		"plan_id":     ev.PlanID,
		"lot_id":      ev.LotID,
		"building_id": ev.BuildingID,
		"user_id":     ev.UserID,
	})
	if ev.InstallmentNumber > 0 {
		entry = entry.WithField("installment", ev.InstallmentNumber)
	}
	if ev.Reason != "" {
		entry = entry.WithField("reason", ev.Reason)
	}
	entry.Info("Plan notification")
	return nil
}
