package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dan9191/strata-service/internal/models"
)

const planColumns = `id, lot_id, building_id, user_id, total_owed, interest_owed,
	request_interest_waiver, interest_waived, number_of_installments, installment_amount,
	installment_frequency, request_date, approved_date, start_date, end_date,
	paid_installments, status, refusal_reason, notes, principal_paid, interest_paid, version`

const installmentColumns = `id, plan_id, installment_number, due_date, amount, status,
	paid_amount, paid_date, payment_reference`

// InsertPlan stores a new payment plan without installments.
func (t *Tx) InsertPlan(ctx context.Context, plan *models.PaymentPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.Version = 1
	query := `
		INSERT INTO payment_plans (` + planColumns + `)
		VALUES (:id, :lot_id, :building_id, :user_id, :total_owed, :interest_owed,
			:request_interest_waiver, :interest_waived, :number_of_installments, :installment_amount,
			:installment_frequency, :request_date, :approved_date, :start_date, :end_date,
			:paid_installments, :status, :refusal_reason, :notes, :principal_paid, :interest_paid, :version)`
	if err := t.namedExec(ctx, query, plan); err != nil {
		return fmt.Errorf("failed to create payment plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by id, without installments.
func (t *Tx) GetPlan(ctx context.Context, id string) (*models.PaymentPlan, error) {
	plan := &models.PaymentPlan{}
	if err := t.get(ctx, plan, `SELECT `+planColumns+` FROM payment_plans WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "payment plan", id)
	}
	return plan, nil
}

// GetPlanWithInstallments retrieves a plan and its installments in number order.
func (t *Tx) GetPlanWithInstallments(ctx context.Context, id string) (*models.PaymentPlan, error) {
	plan, err := t.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Installments, err = t.ListInstallments(ctx, id); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan writes the mutable plan fields guarded by the version column.
func (t *Tx) UpdatePlan(ctx context.Context, plan *models.PaymentPlan) error {
	query := `
		UPDATE payment_plans
		SET interest_waived = ?, number_of_installments = ?, installment_amount = ?,
			approved_date = ?, start_date = ?, end_date = ?, paid_installments = ?, status = ?,
			refusal_reason = ?, principal_paid = ?, interest_paid = ?, version = version + 1
		WHERE id = ? AND version = ?`
	err := t.execVersioned(ctx, "payment plan", plan.ID, query,
		plan.InterestWaived, plan.NumberOfInstallments, plan.InstallmentAmount,
		plan.ApprovedDate, plan.StartDate, plan.EndDate, plan.PaidInstallments, plan.Status,
		plan.RefusalReason, plan.PrincipalPaid, plan.InterestPaid, plan.ID, plan.Version)
	if err != nil {
		return err
	}
	plan.Version++
	return nil
}

// ListPlansByLot returns plans of a lot in the given statuses, newest request first.
func (t *Tx) ListPlansByLot(ctx context.Context, lotID string, statuses ...models.PlanStatus) ([]models.PaymentPlan, error) {
	query, args, err := t.in(`SELECT `+planColumns+` FROM payment_plans
		WHERE lot_id = ? AND status IN (?)
		ORDER BY request_date DESC, id`, lotID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to build plan query: %w", err)
	}
	var plans []models.PaymentPlan
	if err := t.tx.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// ListPlansByStatus returns plans in a status. An empty buildingID matches all buildings.
func (t *Tx) ListPlansByStatus(ctx context.Context, buildingID string, status models.PlanStatus) ([]models.PaymentPlan, error) {
	var plans []models.PaymentPlan
	var err error
	if buildingID == "" {
		err = t.selectAll(ctx, &plans, `SELECT `+planColumns+` FROM payment_plans
			WHERE status = ? ORDER BY request_date, id`, status)
	} else {
		err = t.selectAll(ctx, &plans, `SELECT `+planColumns+` FROM payment_plans
			WHERE building_id = ? AND status = ? ORDER BY request_date, id`, buildingID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// InsertInstallments stores generated installments for a plan.
func (t *Tx) InsertInstallments(ctx context.Context, planID string, items []models.Installment) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES (:id, :plan_id, :installment_number, :due_date, :amount, :status,
			:paid_amount, :paid_date, :payment_reference)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].PlanID = planID
		if err := t.namedExec(ctx, query, &items[i]); err != nil {
			return fmt.Errorf("failed to create installment %d: %w", items[i].InstallmentNumber, err)
		}
	}
	return nil
}

// ListInstallments returns the installments of a plan in number order.
func (t *Tx) ListInstallments(ctx context.Context, planID string) ([]models.Installment, error) {
	var items []models.Installment
	query := `SELECT ` + installmentColumns + ` FROM installments
		WHERE plan_id = ? ORDER BY installment_number`
	if err := t.selectAll(ctx, &items, query, planID); err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	return items, nil
}

// UpdateInstallment writes payment progress and status of one installment.
func (t *Tx) UpdateInstallment(ctx context.Context, item *models.Installment) error {
	query := `
		UPDATE installments
		SET status = ?, paid_amount = ?, paid_date = ?, payment_reference = ?
		WHERE id = ?`
	if _, err := t.exec(ctx, query, item.Status, item.PaidAmount, item.PaidDate, item.PaymentReference, item.ID); err != nil {
		return fmt.Errorf("failed to update installment %d: %w", item.InstallmentNumber, err)
	}
	return nil
}

// DeleteInstallmentsAfter removes the installments numbered above number.
func (t *Tx) DeleteInstallmentsAfter(ctx context.Context, planID string, number int) error {
	if _, err := t.exec(ctx, `DELETE FROM installments WHERE plan_id = ? AND installment_number > ?`, planID, number); err != nil {
		return fmt.Errorf("failed to delete installments: %w", err)
	}
	return nil
}

// LinkLevies records the levies a plan covers with their outstanding principal at link time.
func (t *Tx) LinkLevies(ctx context.Context, planID string, levies []models.Levy) error {
	for _, levy := range levies {
		query := `INSERT INTO plan_levies (plan_id, levy_id, covered) VALUES (?, ?, ?)`
		if _, err := t.exec(ctx, query, planID, levy.ID, levy.OutstandingPrincipal()); err != nil {
			return fmt.Errorf("failed to link levy %s: %w", levy.ID, err)
		}
	}
	return nil
}

// ListPlanLevies returns the levies covered by a plan, oldest due first.
func (t *Tx) ListPlanLevies(ctx context.Context, planID string) ([]models.PlanLevy, error) {
	var levies []models.PlanLevy
	query := `SELECT l.id, l.lot_id, l.building_id, l.period, l.amount, l.due_date, l.status, l.paid_at,
			l.recovery_costs, l.principal_paid, l.interest_paid, l.costs_paid, l.version, pl.covered
		FROM levies l JOIN plan_levies pl ON pl.levy_id = l.id
		WHERE pl.plan_id = ?
		ORDER BY l.due_date, l.id`
	if err := t.selectAll(ctx, &levies, query, planID); err != nil {
		return nil, fmt.Errorf("failed to list plan levies: %w", err)
	}
	return levies, nil
}

// ListLevyPlans returns the plans covering a levy in the given statuses.
func (t *Tx) ListLevyPlans(ctx context.Context, levyID string, statuses ...models.PlanStatus) ([]models.PaymentPlan, error) {
	query, args, err := t.in(`SELECT p.id, p.status FROM payment_plans p
		JOIN plan_levies pl ON pl.plan_id = p.id
		WHERE pl.levy_id = ? AND p.status IN (?)`, levyID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to build plan query: %w", err)
	}
	var plans []models.PaymentPlan
	if err := t.tx.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list levy plans: %w", err)
	}
	return plans, nil
}

func statusStrings(statuses []models.PlanStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
