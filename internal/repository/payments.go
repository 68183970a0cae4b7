package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dan9191/strata-service/internal/models"
)

const paymentColumns = `id, target_type, target_id, reference, amount, principal, interest, costs, paid_date`

// FindPayment returns the payment recorded for a reference on a target, or nil.
func (t *Tx) FindPayment(ctx context.Context, targetType models.TargetType, targetID, reference string) (*models.Payment, error) {
	p := &models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE target_type = ? AND target_id = ? AND reference = ?`
	err := t.get(ctx, p, query, targetType, targetID, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return p, nil
}

// InsertPayment stores an applied payment with its installment allocations.
func (t *Tx) InsertPayment(ctx context.Context, p *models.Payment, allocations []models.PaymentAllocation) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :target_type, :target_id, :reference, :amount, :principal, :interest, :costs, :paid_date)`
	if err := t.namedExec(ctx, query, p); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	for i := range allocations {
		allocations[i].PaymentID = p.ID
		if err := t.namedExec(ctx, `
			INSERT INTO payment_allocations (payment_id, installment_number, amount, settled)
			VALUES (:payment_id, :installment_number, :amount, :settled)`, &allocations[i]); err != nil {
			return fmt.Errorf("failed to record payment allocation: %w", err)
		}
	}
	return nil
}

// ListAllocations returns the installment allocations of a payment.
func (t *Tx) ListAllocations(ctx context.Context, paymentID string) ([]models.PaymentAllocation, error) {
	var allocations []models.PaymentAllocation
	query := `SELECT payment_id, installment_number, amount, settled
		FROM payment_allocations WHERE payment_id = ? ORDER BY installment_number`
	if err := t.selectAll(ctx, &allocations, query, paymentID); err != nil {
		return nil, fmt.Errorf("failed to list payment allocations: %w", err)
	}
	return allocations, nil
}
