package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/repository"
	"github.com/Dan9191/strata-service/internal/schedule"
)

// RequestExtension asks to move the end date of an active plan.
func (s *Service) RequestExtension(ctx context.Context, actor models.Actor, planID string, requestedEnd models.Date, reason string) (*models.Extension, error) {
	reason = strings.TrimSpace(reason)
	var fields []apperr.FieldError
	if requestedEnd.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "requested_end_date", Error: "is required"})
	}
	if reason == "" {
		fields = append(fields, apperr.FieldError{Field: "reason", Error: "is required"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid extension request", fields...)
	}

	current, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, actor, current.BuildingID, "request a plan extension"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock("plan:" + planID)
	defer unlock()

	ext := &models.Extension{
		PlanID:           planID,
		RequestDate:      s.today(),
		RequestedEndDate: requestedEnd,
		Reason:           reason,
		Status:           models.ExtensionPending,
	}
	err = s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if plan.Status != models.PlanActive {
			return apperr.State("payment plan", plan.ID, string(plan.Status), "request an extension")
		}
		if plan.EndDate != nil && !requestedEnd.After(*plan.EndDate) {
			return apperr.Field("requested_end_date", "must be after the current end date "+plan.EndDate.String())
		}
		pending, err := tx.CountPendingExtensions(ctx, planID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return apperr.State("payment plan", plan.ID, string(plan.Status), "request an extension while another is pending")
		}
		return tx.InsertExtension(ctx, ext)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"extension_id": ext.ID,
		"plan_id":      planID,
		"end_date":     requestedEnd,
	}).Info("Plan extension requested")
	return ext, nil
}

// DecideExtension approves or rejects a pending extension. Approval replaces
// the unpaid installments with a schedule running to the requested end date.
func (s *Service) DecideExtension(ctx context.Context, actor models.Actor, extensionID string, approve bool, note string) (*models.Extension, error) {
	var ext *models.Extension
	var plan *models.PaymentPlan
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if ext, err = tx.GetExtension(ctx, extensionID); err != nil {
			return err
		}
		plan, err = tx.GetPlan(ctx, ext.PlanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.requireDecider(ctx, actor, plan.BuildingID, "decide plan extensions"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock("plan:"+plan.ID, "ext:"+extensionID)
	defer unlock()

	today := s.today()
	err = s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if ext, err = tx.GetExtension(ctx, extensionID); err != nil {
			return err
		}
		if ext.Status != models.ExtensionPending {
			return apperr.State("extension", ext.ID, string(ext.Status), "decide")
		}
		if approve {
			if plan, err = tx.GetPlanWithInstallments(ctx, ext.PlanID); err != nil {
				return err
			}
			if plan.Status != models.PlanActive {
				return apperr.State("payment plan", plan.ID, string(plan.Status), "extend")
			}
			if err := s.extendSchedule(ctx, tx, plan, ext.RequestedEndDate, today); err != nil {
				return err
			}
			ext.Status = models.ExtensionApproved
		} else {
			ext.Status = models.ExtensionRejected
		}

		ext.DecidedBy = &actor.ID
		ext.DecisionDate = &today
		if note = strings.TrimSpace(note); note != "" {
			ext.DecisionNote = &note
		}
		return tx.DecideExtension(ctx, ext)
	})
	if err != nil {
		if errors.Is(err, schedule.ErrSumMismatch) {
			s.log.WithFields(logrus.Fields{"extension_id": extensionID, "reconcile": true}).Errorf("Schedule invariant violated: %v", err)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"extension_id": ext.ID,
		"plan_id":      ext.PlanID,
		"status":       ext.Status,
		"actor_id":     actor.ID,
	}).Info("Plan extension decided")
	return ext, nil
}

// extendSchedule keeps the paid installments and regenerates the rest from
// the first unpaid due date (or today, if later) through the new end date.
// Partial payments on replaced installments carry forward in order.
func (s *Service) extendSchedule(ctx context.Context, tx *repository.Tx, plan *models.PaymentPlan, end, today models.Date) error {
	var paid, unpaid []models.Installment
	for _, it := range plan.Installments {
		if it.IsPaid() {
			paid = append(paid, it)
		} else {
			unpaid = append(unpaid, it)
		}
	}
	if len(unpaid) == 0 {
		return apperr.State("payment plan", plan.ID, string(plan.Status), "extend without unpaid installments")
	}

	var remaining, carried money.Amount
	var carriedRef *string
	for _, it := range unpaid {
		remaining += it.Amount
		carried += it.PaidAmount
		if it.PaymentReference != nil {
			carriedRef = it.PaymentReference
		}
	}

	start := unpaid[0].DueDate
	if today.After(start) {
		start = today
	}
	lastPaid := 0
	if len(paid) > 0 {
		lastPaid = paid[len(paid)-1].InstallmentNumber
	}
	items, err := schedule.Rebuild(remaining, start, end, plan.InstallmentFrequency, lastPaid+1)
	if err != nil {
		return err
	}
	if total := lastPaid + len(items); total > s.config.MaxInstallments {
		return apperr.Field("requested_end_date",
			fmt.Sprintf("extends the plan to %d installments, more than the maximum of %d", total, s.config.MaxInstallments))
	}
	for i := range items {
		if carried == 0 {
			break
		}
		take := money.Min(carried, items[i].Amount)
		items[i].PaidAmount = take
		items[i].PaymentReference = carriedRef
		if take == items[i].Amount {
			items[i].Status = models.InstallmentPaid
			items[i].PaidDate = &today
		}
		carried -= take
	}

	full := append(append([]models.Installment{}, paid...), items...)
	if err := schedule.Verify(full, plan.ScheduledTotal()); err != nil {
		return err
	}

	if err := tx.DeleteInstallmentsAfter(ctx, plan.ID, lastPaid); err != nil {
		return err
	}
	if err := tx.InsertInstallments(ctx, plan.ID, items); err != nil {
		return err
	}

	newEnd := schedule.EndDate(items)
	plan.Installments = append(paid, items...)
	plan.NumberOfInstallments = len(plan.Installments)
	plan.InstallmentAmount = items[0].Amount
	plan.EndDate = &newEnd
	recomputeProgress(plan)
	return tx.UpdatePlan(ctx, plan)
}
