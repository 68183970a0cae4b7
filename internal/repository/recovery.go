package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dan9191/strata-service/internal/models"
)

// InsertRecoveryAction appends an entry to the recovery log. Entries are never updated.
func (t *Tx) InsertRecoveryAction(ctx context.Context, action *models.RecoveryAction) error {
	if action.ID == "" {
		// v7 ids sort by creation time, which orders same-day entries
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate recovery action id: %w", err)
		}
		action.ID = id.String()
	}
	query := `
		INSERT INTO recovery_actions (id, building_id, lot_id, action_type, action_date, actor_id, notes)
		VALUES (:id, :building_id, :lot_id, :action_type, :action_date, :actor_id, :notes)`
	if err := t.namedExec(ctx, query, action); err != nil {
		return fmt.Errorf("failed to record recovery action: %w", err)
	}
	return nil
}

// ListRecoveryActions returns the recovery log of a lot in recorded order.
func (t *Tx) ListRecoveryActions(ctx context.Context, lotID string) ([]models.RecoveryAction, error) {
	var actions []models.RecoveryAction
	query := `SELECT id, building_id, lot_id, action_type, action_date, actor_id, notes
		FROM recovery_actions WHERE lot_id = ? ORDER BY action_date, id`
	if err := t.selectAll(ctx, &actions, query, lotID); err != nil {
		return nil, fmt.Errorf("failed to list recovery actions: %w", err)
	}
	return actions, nil
}

// HasRecoveryAction reports whether the lot has at least one action of the given type.
func (t *Tx) HasRecoveryAction(ctx context.Context, lotID string, actionType models.ActionType) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM recovery_actions WHERE lot_id = ? AND action_type = ?`
	if err := t.get(ctx, &n, query, lotID, actionType); err != nil {
		return false, fmt.Errorf("failed to check recovery actions: %w", err)
	}
	return n > 0, nil
}
