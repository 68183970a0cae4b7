package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
)

// SweepReport counts what a sweep changed. A repeated sweep reports zeros.
type SweepReport struct {
	AsOf                models.Date `json:"as_of"`
	LeviesOverdue       int         `json:"levies_overdue"`
	InstallmentsOverdue int         `json:"installments_overdue"`
	PlansDefaulted      int         `json:"plans_defaulted"`
}

// SweepInstallments marks pending installments past their due date overdue
// and defaults active plans whose run of consecutive overdue installments
// reaches the configured threshold. A plan that fails is logged and skipped;
// the joined errors are returned with the report of the plans that succeeded.
func (s *Service) SweepInstallments(ctx context.Context, asOf models.Date) (*SweepReport, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var active []models.PaymentPlan
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		active, err = tx.ListPlansByStatus(ctx, "", models.PlanActive)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &SweepReport{AsOf: asOf}
	var errs []error
	for _, p := range active {
		if err := ctx.Err(); err != nil {
			return report, errors.Join(append(errs, err)...)
		}
		overdue, defaulted, err := s.sweepPlan(ctx, p.ID, asOf)
		if err != nil {
			s.log.WithField("plan_id", p.ID).Errorf("Installment sweep failed for plan: %v", err)
			errs = append(errs, fmt.Errorf("plan %s: %w", p.ID, err))
			continue
		}
		report.InstallmentsOverdue += overdue
		if defaulted {
			report.PlansDefaulted++
		}
	}
	return report, errors.Join(errs...)
}

func (s *Service) sweepPlan(ctx context.Context, planID string, asOf models.Date) (int, bool, error) {
	unlock := s.locks.lock("plan:" + planID)
	defer unlock()

	var plan *models.PaymentPlan
	var events []notify.Event
	overdue, defaulted := 0, false
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if plan, err = tx.GetPlanWithInstallments(ctx, planID); err != nil {
			return err
		}
		if plan.Status != models.PlanActive {
			return nil
		}

		for i := range plan.Installments {
			it := &plan.Installments[i]
			if it.Status != models.InstallmentPending || !asOf.After(it.DueDate) {
				continue
			}
			it.Status = models.InstallmentOverdue
			if err := tx.UpdateInstallment(ctx, it); err != nil {
				return err
			}
			overdue++
			ev := planEvent(notify.InstallmentOverdue, plan, asOf)
			ev.InstallmentNumber = it.InstallmentNumber
			events = append(events, ev)
		}

		defaulted = consecutiveOverdue(plan.Installments) >= s.config.DefaultMissedInstallments &&
			plan.Status.CanTransition(models.PlanDefaulted)
		if defaulted {
			plan.Status = models.PlanDefaulted
			events = append(events, planEvent(notify.PlanDefaulted, plan, asOf))
		}
		if overdue == 0 && !defaulted {
			return nil
		}
		recomputeProgress(plan)
		return tx.UpdatePlan(ctx, plan)
	})
	if err != nil {
		return 0, false, err
	}

	if overdue > 0 || defaulted {
		s.log.WithFields(logrus.Fields{
			"plan_id":   planID,
			"overdue":   overdue,
			"defaulted": defaulted,
		}).Info("Installment sweep updated plan")
	}
	s.publish(events...)
	return overdue, defaulted, nil
}

// consecutiveOverdue returns the longest run of overdue installments in number order.
func consecutiveOverdue(items []models.Installment) int {
	longest, run := 0, 0
	for _, it := range items {
		if it.Status == models.InstallmentOverdue {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}

// SweepAll runs the levy overdue sweep for every building and then the installment sweep.
func (s *Service) SweepAll(ctx context.Context, asOf models.Date) (*SweepReport, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var buildings []string
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		buildings, err = tx.ListLevyBuildings(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	levies := 0
	var errs []error
	for _, b := range buildings {
		n, err := s.markOverdue(ctx, b, asOf)
		if err != nil {
			s.log.WithField("building_id", b).Errorf("Levy sweep failed for building: %v", err)
			errs = append(errs, fmt.Errorf("building %s: %w", b, err))
			continue
		}
		levies += n
	}

	report, err := s.SweepInstallments(ctx, asOf)
	if report == nil {
		return nil, errors.Join(append(errs, err)...)
	}
	if err != nil {
		errs = append(errs, err)
	}
	report.LeviesOverdue = levies
	s.log.WithFields(logrus.Fields{
		"as_of":                asOf,
		"levies_overdue":       report.LeviesOverdue,
		"installments_overdue": report.InstallmentsOverdue,
		"plans_defaulted":      report.PlansDefaulted,
	}).Info("Sweep completed")
	return report, errors.Join(errs...)
}
