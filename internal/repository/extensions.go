package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dan9191/strata-service/internal/models"
)

const extensionColumns = `id, plan_id, request_date, requested_end_date, reason, status,
	decided_by, decision_date, decision_note`

func (t *Tx) InsertExtension(ctx context.Context, ext *models.Extension) error {
	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	query := `
		INSERT INTO extensions (` + extensionColumns + `)
		VALUES (:id, :plan_id, :request_date, :requested_end_date, :reason, :status,
			:decided_by, :decision_date, :decision_note)`
	if err := t.namedExec(ctx, query, ext); err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}
	return nil
}

func (t *Tx) GetExtension(ctx context.Context, id string) (*models.Extension, error) {
	ext := &models.Extension{}
	if err := t.get(ctx, ext, `SELECT `+extensionColumns+` FROM extensions WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "extension", id)
	}
	return ext, nil
}

// CountPendingExtensions counts undecided extension requests of a plan.
func (t *Tx) CountPendingExtensions(ctx context.Context, planID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM extensions WHERE plan_id = ? AND status = ?`
	if err := t.get(ctx, &n, query, planID, models.ExtensionPending); err != nil {
		return 0, fmt.Errorf("failed to count extensions: %w", err)
	}
	return n, nil
}

// DecideExtension records a decision on a pending extension.
func (t *Tx) DecideExtension(ctx context.Context, ext *models.Extension) error {
	query := `
		UPDATE extensions
		SET status = ?, decided_by = ?, decision_date = ?, decision_note = ?
		WHERE id = ? AND status = ?`
	return t.execVersioned(ctx, "extension", ext.ID, query,
		ext.Status, ext.DecidedBy, ext.DecisionDate, ext.DecisionNote, ext.ID, models.ExtensionPending)
}
