package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/repository"
)

// ComputeDaysOverdue returns the whole days from the levy due date to asOf, never negative.
func ComputeDaysOverdue(levy models.Levy, asOf models.Date) int {
	days := levy.DueDate.DaysUntil(asOf)
	if days < 0 {
		return 0
	}
	return days
}

// AccruedInterest is the simple interest owed on the levy amount for each day
// overdue. Partial principal payments do not reduce the base. Accrual stops on
// the day the levy was paid.
func (s *Service) AccruedInterest(levy models.Levy, asOf models.Date) money.Amount {
	end := asOf
	if levy.PaidAt != nil && levy.PaidAt.Before(end) {
		end = *levy.PaidAt
	}
	return money.SimpleInterest(levy.Amount, s.config.LevyInterestRate, ComputeDaysOverdue(levy, end))
}

func (s *Service) outstandingInterest(levy models.Levy, asOf models.Date) money.Amount {
	accrued := s.AccruedInterest(levy, asOf)
	if accrued <= levy.InterestPaid {
		return 0
	}
	return accrued - levy.InterestPaid
}

// RecordLevy stores a levy raised by billing.
func (s *Service) RecordLevy(ctx context.Context, levy models.Levy) (*models.Levy, error) {
	var fields []apperr.FieldError
	if strings.TrimSpace(levy.LotID) == "" {
		fields = append(fields, apperr.FieldError{Field: "lot_id", Error: "is required"})
	}
	if strings.TrimSpace(levy.BuildingID) == "" {
		fields = append(fields, apperr.FieldError{Field: "building_id", Error: "is required"})
	}
	if strings.TrimSpace(levy.Period) == "" {
		fields = append(fields, apperr.FieldError{Field: "period", Error: "is required"})
	}
	if levy.Amount <= 0 {
		fields = append(fields, apperr.FieldError{Field: "amount", Error: "must be greater than zero"})
	}
	if levy.DueDate.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "due_date", Error: "is required"})
	}
	if levy.RecoveryCosts < 0 {
		fields = append(fields, apperr.FieldError{Field: "recovery_costs", Error: "must not be negative"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid levy", fields...)
	}

	levy.ID = ""
	levy.Status = models.LevyPending
	levy.PaidAt = nil
	levy.PrincipalPaid, levy.InterestPaid, levy.CostsPaid = 0, 0, 0

	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		return tx.InsertLevy(ctx, &levy)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"levy_id": levy.ID, "lot_id": levy.LotID}).Info("Levy recorded")
	return &levy, nil
}

// GetLevy returns a levy by id.
func (s *Service) GetLevy(ctx context.Context, levyID string) (*models.Levy, error) {
	var levy *models.Levy
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		levy, err = tx.GetLevy(ctx, levyID)
		return err
	})
	return levy, err
}

// MarkOverdueSweep moves pending levies of a building past their due date to
// overdue. Re-running it has no further effect.
func (s *Service) MarkOverdueSweep(ctx context.Context, buildingID string) (int, error) {
	return s.markOverdue(ctx, buildingID, s.today())
}

func (s *Service) markOverdue(ctx context.Context, buildingID string, asOf models.Date) (int, error) {
	if strings.TrimSpace(buildingID) == "" {
		return 0, apperr.Field("building_id", "is required")
	}
	var n int
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		n, err = tx.MarkLeviesOverdue(ctx, buildingID, asOf)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"building_id": buildingID, "count": n}).Info("Levies marked overdue")
	}
	return n, nil
}

// MarkPaid records a levy as paid. A levy can only be paid once.
func (s *Service) MarkPaid(ctx context.Context, levyID string, paidAt models.Date) (*models.Levy, error) {
	if paidAt.IsZero() {
		paidAt = s.today()
	}
	unlock := s.locks.lock("levy:" + levyID)
	defer unlock()

	var levy *models.Levy
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if levy, err = tx.GetLevy(ctx, levyID); err != nil {
			return err
		}
		if levy.Status != models.LevyPaid {
			if err := ensureUncovered(ctx, tx, levy, "mark paid"); err != nil {
				return err
			}
		}
		if err := markLevyPaid(levy, paidAt); err != nil {
			return err
		}
		return tx.UpdateLevy(ctx, levy)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"levy_id": levyID, "paid_at": paidAt}).Info("Levy marked paid")
	return levy, nil
}

func markLevyPaid(levy *models.Levy, paidAt models.Date) error {
	if levy.Status == models.LevyPaid {
		return apperr.State("levy", levy.ID, string(levy.Status), "mark paid")
	}
	levy.Status = models.LevyPaid
	levy.PaidAt = &paidAt
	return nil
}

// RecordRecoveryCost adds recovery costs (legal fees, collection charges) to an unpaid levy.
func (s *Service) RecordRecoveryCost(ctx context.Context, levyID string, amount money.Amount) (*models.Levy, error) {
	if amount <= 0 {
		return nil, apperr.Field("amount", "must be greater than zero")
	}
	unlock := s.locks.lock("levy:" + levyID)
	defer unlock()

	var levy *models.Levy
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if levy, err = tx.GetLevy(ctx, levyID); err != nil {
			return err
		}
		if levy.Status == models.LevyPaid {
			return apperr.State("levy", levy.ID, string(levy.Status), "add recovery costs")
		}
		levy.RecoveryCosts += amount
		return tx.UpdateLevy(ctx, levy)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"levy_id": levyID, "amount": amount}).Info("Recovery cost recorded")
	return levy, nil
}

// Arrears reports the unpaid levies of a lot as of a date. Paid levies never appear.
func (s *Service) Arrears(ctx context.Context, lotID string, asOf models.Date) (*models.ArrearsSummary, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	summary := &models.ArrearsSummary{LotID: lotID, AsOf: asOf, Levies: []models.LevyArrears{}}
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		levies, err := tx.ListUnpaidLevies(ctx, lotID)
		if err != nil {
			return err
		}
		for _, levy := range levies {
			item := models.LevyArrears{
				Levy:                 levy,
				DaysOverdue:          ComputeDaysOverdue(levy, asOf),
				Overdue:              levy.Status == models.LevyOverdue || asOf.After(levy.DueDate),
				OutstandingPrincipal: levy.OutstandingPrincipal(),
				OutstandingInterest:  s.outstandingInterest(levy, asOf),
				OutstandingCosts:     levy.OutstandingCosts(),
			}
			summary.TotalOutstanding += item.OutstandingPrincipal + item.OutstandingInterest + item.OutstandingCosts
			summary.Levies = append(summary.Levies, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
