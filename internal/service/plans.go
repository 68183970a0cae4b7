package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
	"github.com/Dan9191/strata-service/internal/schedule"
)

// ResponseWindowDays is the statutory period for deciding a plan request.
const ResponseWindowDays = 28

// RequestPlanInput is a resident's payment plan request.
type RequestPlanInput struct {
	LotID                 string
	TotalOwed             money.Amount
	InterestOwed          money.Amount
	NumberOfInstallments  int
	Frequency             models.Frequency
	RequestInterestWaiver bool
	LevyIDs               []string
	Notes                 string
}

// DecisionInput approves or rejects a pending plan.
type DecisionInput struct {
	Approve        bool
	Reason         string
	InterestWaived bool
	StartDate      *models.Date
}

func (s *Service) validatePlanRequest(in RequestPlanInput) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(in.LotID) == "" {
		fields = append(fields, apperr.FieldError{Field: "lot_id", Error: "is required"})
	}
	if in.TotalOwed <= 0 {
		fields = append(fields, apperr.FieldError{Field: "total_owed", Error: "must be greater than zero"})
	}
	if in.InterestOwed < 0 {
		fields = append(fields, apperr.FieldError{Field: "interest_owed", Error: "must not be negative"})
	}
	if in.NumberOfInstallments < 1 || in.NumberOfInstallments > s.config.MaxInstallments {
		fields = append(fields, apperr.FieldError{
			Field: "number_of_installments",
			Error: fmt.Sprintf("must be between 1 and %d", s.config.MaxInstallments),
		})
	} else if int64(in.TotalOwed) < int64(in.NumberOfInstallments) {
		fields = append(fields, apperr.FieldError{Field: "number_of_installments", Error: "exceeds the total owed in minor units"})
	}
	if !in.Frequency.Valid() {
		fields = append(fields, apperr.FieldError{Field: "installment_frequency", Error: fmt.Sprintf("unknown frequency %q", in.Frequency)})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid payment plan request", fields...)
	}
	return nil
}

// RequestPlan stores a pending plan for a lot and records the plan offer in
// the recovery log. A lot has at most one pending, approved or active plan.
func (s *Service) RequestPlan(ctx context.Context, actor models.Actor, in RequestPlanInput) (*models.PaymentPlan, error) {
	if err := s.validatePlanRequest(in); err != nil {
		return nil, err
	}
	buildingID, err := s.directory.LotBuilding(ctx, in.LotID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, actor, buildingID, "request a payment plan"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock("lot:" + in.LotID)
	defer unlock()

	today := s.today()
	plan := &models.PaymentPlan{
		LotID:                 in.LotID,
		BuildingID:            buildingID,
		UserID:                actor.ID,
		TotalOwed:             in.TotalOwed,
		InterestOwed:          in.InterestOwed,
		RequestInterestWaiver: in.RequestInterestWaiver,
		NumberOfInstallments:  in.NumberOfInstallments,
		InstallmentAmount:     (in.TotalOwed + in.InterestOwed) / money.Amount(in.NumberOfInstallments),
		InstallmentFrequency:  in.Frequency,
		RequestDate:           today,
		Status:                models.PlanPending,
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		plan.Notes = &notes
	}

	err = s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		open, err := tx.ListPlansByLot(ctx, in.LotID, models.PlanPending, models.PlanApproved, models.PlanActive)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return apperr.State("lot", in.LotID, string(open[0].Status), "request another payment plan")
		}

		levies, err := s.planLevies(ctx, tx, in.LotID, in.LevyIDs)
		if err != nil {
			return err
		}
		if err := tx.InsertPlan(ctx, plan); err != nil {
			return err
		}
		if err := tx.LinkLevies(ctx, plan.ID, levies); err != nil {
			return err
		}

		note := fmt.Sprintf("payment plan %s requested", plan.ID)
		return tx.InsertRecoveryAction(ctx, &models.RecoveryAction{
			BuildingID: buildingID,
			LotID:      in.LotID,
			ActionType: models.ActionPaymentPlanOffered,
			ActionDate: today,
			ActorID:    &actor.ID,
			Notes:      &note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"plan_id": plan.ID,
		"lot_id":  plan.LotID,
		"user_id": actor.ID,
	}).Info("Payment plan requested")
	s.publish(planEvent(notify.PlanRequested, plan, today))
	return plan, nil
}

// planLevies resolves the levies a new plan covers. Without explicit ids every
// unpaid levy of the lot is covered.
func (s *Service) planLevies(ctx context.Context, tx *repository.Tx, lotID string, levyIDs []string) ([]models.Levy, error) {
	if len(levyIDs) == 0 {
		return tx.ListUnpaidLevies(ctx, lotID)
	}
	levies := make([]models.Levy, 0, len(levyIDs))
	seen := make(map[string]bool, len(levyIDs))
	for _, id := range levyIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		levy, err := tx.GetLevy(ctx, id)
		if err != nil {
			return nil, err
		}
		if levy.LotID != lotID {
			return nil, apperr.Field("levy_ids", fmt.Sprintf("levy %s does not belong to lot %s", id, lotID))
		}
		if levy.Status == models.LevyPaid {
			return nil, apperr.State("levy", id, string(levy.Status), "cover with a payment plan")
		}
		levies = append(levies, *levy)
	}
	return levies, nil
}

// Decide approves or rejects a pending plan. Approval activates the plan at
// once with a generated schedule.
func (s *Service) Decide(ctx context.Context, actor models.Actor, planID string, in DecisionInput) (*models.PaymentPlan, error) {
	reason := strings.TrimSpace(in.Reason)
	if !in.Approve && reason == "" {
		return nil, apperr.Field("reason", "is required when rejecting a plan")
	}

	current, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.requireDecider(ctx, actor, current.BuildingID, "decide payment plans"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock("lot:"+current.LotID, "plan:"+planID)
	defer unlock()

	today := s.today()
	var plan *models.PaymentPlan
	err = s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if plan, err = tx.GetPlan(ctx, planID); err != nil {
			return err
		}
		if in.Approve {
			return s.approve(ctx, tx, plan, in, today)
		}
		if !plan.Status.CanTransition(models.PlanRejected) {
			return apperr.State("payment plan", plan.ID, string(plan.Status), "reject")
		}
		plan.Status = models.PlanRejected
		plan.RefusalReason = &reason
		return tx.UpdatePlan(ctx, plan)
	})
	if err != nil {
		if errors.Is(err, schedule.ErrSumMismatch) {
			s.log.WithFields(logrus.Fields{"plan_id": planID, "reconcile": true}).Errorf("Schedule invariant violated: %v", err)
		}
		return nil, err
	}

	fields := logrus.Fields{"plan_id": plan.ID, "actor_id": actor.ID, "status": plan.Status}
	if plan.Status == models.PlanRejected {
		s.log.WithFields(fields).Info("Payment plan rejected")
		ev := planEvent(notify.PlanRejected, plan, today)
		ev.Reason = reason
		s.publish(ev)
	} else {
		s.log.WithFields(fields).Info("Payment plan approved")
		s.publish(planEvent(notify.PlanApproved, plan, today))
	}
	return plan, nil
}

func (s *Service) approve(ctx context.Context, tx *repository.Tx, plan *models.PaymentPlan, in DecisionInput, today models.Date) error {
	if !plan.Status.CanTransition(models.PlanApproved) {
		return apperr.State("payment plan", plan.ID, string(plan.Status), "approve")
	}
	if in.InterestWaived && !plan.RequestInterestWaiver {
		return apperr.Field("interest_waived", "interest waiver was not requested")
	}
	linked, err := tx.ListPlanLevies(ctx, plan.ID)
	if err != nil {
		return err
	}
	for _, pl := range linked {
		if pl.Status == models.LevyPaid {
			return apperr.State("payment plan", plan.ID, string(plan.Status),
				fmt.Sprintf("approve while covered levy %s is already paid", pl.ID))
		}
	}
	start := today
	if in.StartDate != nil && !in.StartDate.IsZero() {
		if in.StartDate.Before(today) {
			return apperr.Field("start_date", "must not be before the approval date")
		}
		start = *in.StartDate
	}

	plan.Status = models.PlanApproved
	plan.ApprovedDate = &today
	plan.InterestWaived = in.InterestWaived

	interest := plan.InterestOwed
	if plan.InterestWaived {
		interest = 0
	}
	items, err := schedule.Build(plan.TotalOwed, interest, plan.NumberOfInstallments, plan.InstallmentFrequency, start)
	if err != nil {
		return err
	}
	if !plan.Status.CanTransition(models.PlanActive) {
		return apperr.State("payment plan", plan.ID, string(plan.Status), "activate")
	}
	end := schedule.EndDate(items)
	plan.Status = models.PlanActive
	plan.StartDate = &start
	plan.EndDate = &end
	plan.InstallmentAmount = items[0].Amount

	if err := tx.UpdatePlan(ctx, plan); err != nil {
		return err
	}
	if err := tx.InsertInstallments(ctx, plan.ID, items); err != nil {
		return err
	}
	plan.Installments = items
	return nil
}

// GetPlan returns a plan with its installments.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.PaymentPlan, error) {
	var plan *models.PaymentPlan
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		plan, err = tx.GetPlanWithInstallments(ctx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Progress aggregates payment progress from the plan's installments in one snapshot.
func (s *Service) Progress(ctx context.Context, planID string) (*models.PlanProgress, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return progressOf(plan), nil
}

func progressOf(plan *models.PaymentPlan) *models.PlanProgress {
	p := &models.PlanProgress{PlanID: plan.ID, Status: plan.Status}
	if len(plan.Installments) == 0 {
		p.TotalRemaining = plan.ScheduledTotal()
		p.InstallmentsRemaining = plan.NumberOfInstallments
		return p
	}

	var scheduled money.Amount
	for _, it := range plan.Installments {
		scheduled += it.Amount
		p.TotalPaid += money.Min(it.PaidAmount, it.Amount)
		if it.IsPaid() {
			p.InstallmentsPaid++
		}
	}
	p.TotalRemaining = scheduled - p.TotalPaid
	p.InstallmentsRemaining = len(plan.Installments) - p.InstallmentsPaid
	if scheduled > 0 {
		p.PercentComplete = p.TotalPaid.Decimal().
			Mul(decimal.NewFromInt(100)).
			Div(scheduled.Decimal()).
			Round(2).
			InexactFloat64()
	}
	return p
}

// ResponseDeadlineFor computes the statutory decision window of a plan as of a date.
// The window is 28 days from the request; urgency and breach only apply while pending.
func ResponseDeadlineFor(plan models.PaymentPlan, asOf models.Date, urgentDays int) models.ResponseDeadline {
	elapsed := plan.RequestDate.DaysUntil(asOf)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := ResponseWindowDays - elapsed
	if remaining < 0 {
		remaining = 0
	}
	pending := plan.Status == models.PlanPending
	return models.ResponseDeadline{
		PlanID:        plan.ID,
		RequestDate:   plan.RequestDate,
		Deadline:      plan.RequestDate.AddDays(ResponseWindowDays),
		DaysElapsed:   elapsed,
		DaysRemaining: remaining,
		Urgent:        pending && remaining <= urgentDays,
		Breached:      pending && elapsed > ResponseWindowDays,
	}
}

// ResponseDeadline reports the decision window of a plan.
func (s *Service) ResponseDeadline(ctx context.Context, planID string, asOf models.Date) (*models.ResponseDeadline, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var deadline models.ResponseDeadline
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		deadline = ResponseDeadlineFor(*plan, asOf, s.config.UrgentThresholdDays)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deadline, nil
}

// PendingDecisions lists the pending plans of a building, most urgent first.
func (s *Service) PendingDecisions(ctx context.Context, buildingID string, asOf models.Date) ([]models.PendingDecision, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var plans []models.PaymentPlan
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		plans, err = tx.ListPlansByStatus(ctx, buildingID, models.PlanPending)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.PendingDecision, 0, len(plans))
	for _, plan := range plans {
		out = append(out, models.PendingDecision{
			Plan:     plan,
			Deadline: ResponseDeadlineFor(plan, asOf, s.config.UrgentThresholdDays),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Deadline.DaysElapsed > out[j].Deadline.DaysElapsed
	})
	return out, nil
}
