package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/repository"
)

// ApplyPayment applies a settled payment to a plan or a levy. A reference that
// was already applied to the same target returns the stored result unchanged.
func (s *Service) ApplyPayment(ctx context.Context, in models.IncomingPayment) (*models.PaymentResult, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	var fields []apperr.FieldError
	if in.Amount <= 0 {
		fields = append(fields, apperr.FieldError{Field: "amount", Error: "must be greater than zero"})
	}
	if in.Reference == "" {
		fields = append(fields, apperr.FieldError{Field: "reference", Error: "is required"})
	}
	if strings.TrimSpace(in.TargetID) == "" {
		fields = append(fields, apperr.FieldError{Field: "target_id", Error: "is required"})
	}
	if in.TargetType != models.TargetPlan && in.TargetType != models.TargetLevy {
		fields = append(fields, apperr.FieldError{Field: "target_type", Error: "must be plan or levy"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid payment", fields...)
	}
	if in.PaidDate.IsZero() {
		in.PaidDate = s.today()
	}

	var result *models.PaymentResult
	var err error
	if in.TargetType == models.TargetPlan {
		result, err = s.applyPlanPayment(ctx, in)
	} else {
		result, err = s.applyLevyPayment(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"target_type": in.TargetType,
		"target_id":   in.TargetID,
		"reference":   in.Reference,
		"amount":      in.Amount,
	})
	if result.Duplicate {
		entry.Info("Duplicate payment reference, returning prior result")
	} else {
		entry.Info("Payment applied")
	}
	return result, nil
}

func (s *Service) applyPlanPayment(ctx context.Context, in models.IncomingPayment) (*models.PaymentResult, error) {
	unlock := s.locks.lock("plan:" + in.TargetID)
	defer unlock()

	result := &models.PaymentResult{}
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		prior, err := tx.FindPayment(ctx, models.TargetPlan, in.TargetID, in.Reference)
		if err != nil {
			return err
		}
		plan, err := tx.GetPlanWithInstallments(ctx, in.TargetID)
		if err != nil {
			return err
		}
		if prior != nil {
			return replay(ctx, tx, result, prior, func() {
				result.PlanStatus = plan.Status
			})
		}
		if plan.Status != models.PlanActive {
			return apperr.State("payment plan", plan.ID, string(plan.Status), "apply payment")
		}

		allocations, err := allocateInstallments(plan, in)
		if err != nil {
			return err
		}
		for _, it := range plan.Installments {
			if touched(allocations, it.InstallmentNumber) {
				item := it
				if err := tx.UpdateInstallment(ctx, &item); err != nil {
					return err
				}
			}
		}

		principal, interest := plan.SplitPayment(in.Amount)
		plan.PrincipalPaid += principal
		plan.InterestPaid += interest
		recomputeProgress(plan)
		if err := tx.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		if err := s.settlePlanLevies(ctx, tx, plan, in.PaidDate); err != nil {
			return err
		}

		result.Payment = models.Payment{
			TargetType: models.TargetPlan,
			TargetID:   plan.ID,
			Reference:  in.Reference,
			Amount:     in.Amount,
			Principal:  principal,
			Interest:   interest,
			PaidDate:   in.PaidDate,
		}
		if err := tx.InsertPayment(ctx, &result.Payment, allocations); err != nil {
			return err
		}
		result.Allocations = allocations
		result.PlanStatus = plan.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.PlanStatus == models.PlanCompleted && !result.Duplicate {
		s.log.WithField("plan_id", in.TargetID).Info("Payment plan completed")
	}
	return result, nil
}

// allocateInstallments credits the amount to the lowest-numbered unpaid
// installments. An installment is paid only once its full amount has arrived.
func allocateInstallments(plan *models.PaymentPlan, in models.IncomingPayment) ([]models.PaymentAllocation, error) {
	var outstanding money.Amount
	for _, it := range plan.Installments {
		if !it.IsPaid() {
			outstanding += it.Outstanding()
		}
	}
	if in.Amount > outstanding {
		return nil, apperr.Field("amount", fmt.Sprintf("exceeds the %s outstanding on the plan", outstanding))
	}

	var allocations []models.PaymentAllocation
	remaining := in.Amount
	for i := range plan.Installments {
		if remaining == 0 {
			break
		}
		it := &plan.Installments[i]
		if it.IsPaid() {
			continue
		}
		take := money.Min(remaining, it.Outstanding())
		if take == 0 {
			continue
		}
		it.PaidAmount += take
		ref := in.Reference
		it.PaymentReference = &ref
		settled := it.PaidAmount == it.Amount
		if settled {
			paidDate := in.PaidDate
			it.Status = models.InstallmentPaid
			it.PaidDate = &paidDate
		}
		allocations = append(allocations, models.PaymentAllocation{
			InstallmentNumber: it.InstallmentNumber,
			Amount:            take,
			Settled:           settled,
		})
		remaining -= take
	}
	return allocations, nil
}

func touched(allocations []models.PaymentAllocation, number int) bool {
	for _, a := range allocations {
		if a.InstallmentNumber == number {
			return true
		}
	}
	return false
}

// recomputeProgress derives paidInstallments and completion from installment
// state. Every write to a plan's installments goes through here.
func recomputeProgress(plan *models.PaymentPlan) {
	paid := 0
	for _, it := range plan.Installments {
		if it.IsPaid() {
			paid++
		}
	}
	plan.PaidInstallments = paid
	if plan.Status == models.PlanActive &&
		paid == plan.NumberOfInstallments &&
		paid == len(plan.Installments) &&
		plan.Status.CanTransition(models.PlanCompleted) {
		plan.Status = models.PlanCompleted
	}
}

// settlePlanLevies marks the plan's levies paid, oldest due first, as the
// principal paid on the plan covers them.
func (s *Service) settlePlanLevies(ctx context.Context, tx *repository.Tx, plan *models.PaymentPlan, paidAt models.Date) error {
	levies, err := tx.ListPlanLevies(ctx, plan.ID)
	if err != nil {
		return err
	}
	budget := plan.PrincipalPaid
	for _, pl := range levies {
		if budget < pl.Covered {
			break
		}
		budget -= pl.Covered
		if pl.Status == models.LevyPaid {
			continue
		}
		levy := pl.Levy
		levy.PrincipalPaid += money.Min(pl.Covered, levy.OutstandingPrincipal())
		if err := markLevyPaid(&levy, paidAt); err != nil {
			return err
		}
		if err := tx.UpdateLevy(ctx, &levy); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"levy_id": levy.ID, "plan_id": plan.ID}).Info("Levy settled through payment plan")
	}
	return nil
}

func (s *Service) applyLevyPayment(ctx context.Context, in models.IncomingPayment) (*models.PaymentResult, error) {
	unlock := s.locks.lock("levy:" + in.TargetID)
	defer unlock()

	result := &models.PaymentResult{}
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		prior, err := tx.FindPayment(ctx, models.TargetLevy, in.TargetID, in.Reference)
		if err != nil {
			return err
		}
		levy, err := tx.GetLevy(ctx, in.TargetID)
		if err != nil {
			return err
		}
		if prior != nil {
			return replay(ctx, tx, result, prior, func() {
				result.LevyStatus = levy.Status
			})
		}

		if err := ensureUncovered(ctx, tx, levy, "accept a direct payment"); err != nil {
			return err
		}

		principalDue := levy.OutstandingPrincipal()
		interestDue := s.outstandingInterest(*levy, in.PaidDate)
		costsDue := levy.OutstandingCosts()
		if owed := principalDue + interestDue + costsDue; in.Amount > owed {
			return apperr.Field("amount", fmt.Sprintf("exceeds the %s outstanding on the levy", owed))
		}

		principal := money.Min(in.Amount, principalDue)
		interest := money.Min(in.Amount-principal, interestDue)
		costs := in.Amount - principal - interest
		levy.PrincipalPaid += principal
		levy.InterestPaid += interest
		levy.CostsPaid += costs
		if levy.OutstandingPrincipal() == 0 && levy.Status != models.LevyPaid {
			if err := markLevyPaid(levy, in.PaidDate); err != nil {
				return err
			}
		}
		if err := tx.UpdateLevy(ctx, levy); err != nil {
			return err
		}

		result.Payment = models.Payment{
			TargetType: models.TargetLevy,
			TargetID:   levy.ID,
			Reference:  in.Reference,
			Amount:     in.Amount,
			Principal:  principal,
			Interest:   interest,
			Costs:      costs,
			PaidDate:   in.PaidDate,
		}
		if err := tx.InsertPayment(ctx, &result.Payment, nil); err != nil {
			return err
		}
		result.LevyStatus = levy.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureUncovered refuses to settle a levy directly while a pending, approved
// or active plan has taken over its principal.
func ensureUncovered(ctx context.Context, tx *repository.Tx, levy *models.Levy, op string) error {
	covering, err := tx.ListLevyPlans(ctx, levy.ID, models.PlanPending, models.PlanApproved, models.PlanActive)
	if err != nil {
		return err
	}
	if len(covering) > 0 {
		return apperr.State("levy", levy.ID, string(levy.Status),
			fmt.Sprintf("%s while covered by %s payment plan %s", op, covering[0].Status, covering[0].ID))
	}
	return nil
}

func replay(ctx context.Context, tx *repository.Tx, result *models.PaymentResult, prior *models.Payment, status func()) error {
	allocations, err := tx.ListAllocations(ctx, prior.ID)
	if err != nil {
		return err
	}
	result.Payment = *prior
	result.Allocations = allocations
	result.Duplicate = true
	status()
	return nil
}
