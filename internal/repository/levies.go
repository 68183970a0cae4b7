package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dan9191/strata-service/internal/models"
)

const levyColumns = `id, lot_id, building_id, period, amount, due_date, status, paid_at,
	recovery_costs, principal_paid, interest_paid, costs_paid, version`

// InsertLevy stores a new levy, assigning an id when empty.
func (t *Tx) InsertLevy(ctx context.Context, levy *models.Levy) error {
	if levy.ID == "" {
		levy.ID = uuid.NewString()
	}
	if levy.Status == "" {
		levy.Status = models.LevyPending
	}
	levy.Version = 1
	query := `
		INSERT INTO levies (` + levyColumns + `)
		VALUES (:id, :lot_id, :building_id, :period, :amount, :due_date, :status, :paid_at,
			:recovery_costs, :principal_paid, :interest_paid, :costs_paid, :version)`
	if err := t.namedExec(ctx, query, levy); err != nil {
		return fmt.Errorf("failed to create levy: %w", err)
	}
	return nil
}

// GetLevy retrieves a levy by id
func (t *Tx) GetLevy(ctx context.Context, id string) (*models.Levy, error) {
	levy := &models.Levy{}
	if err := t.get(ctx, levy, `SELECT `+levyColumns+` FROM levies WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "levy", id)
	}
	return levy, nil
}

// ListUnpaidLevies returns the pending and overdue levies of a lot, oldest due first.
func (t *Tx) ListUnpaidLevies(ctx context.Context, lotID string) ([]models.Levy, error) {
	var levies []models.Levy
	query := `SELECT ` + levyColumns + ` FROM levies
		WHERE lot_id = ? AND status <> ?
		ORDER BY due_date, id`
	if err := t.selectAll(ctx, &levies, query, lotID, models.LevyPaid); err != nil {
		return nil, fmt.Errorf("failed to list levies: %w", err)
	}
	return levies, nil
}

// UpdateLevy writes the mutable levy fields guarded by the version column.
func (t *Tx) UpdateLevy(ctx context.Context, levy *models.Levy) error {
	query := `
		UPDATE levies
		SET status = ?, paid_at = ?, recovery_costs = ?, principal_paid = ?,
			interest_paid = ?, costs_paid = ?, version = version + 1
		WHERE id = ? AND version = ?`
	err := t.execVersioned(ctx, "levy", levy.ID, query,
		levy.Status, levy.PaidAt, levy.RecoveryCosts, levy.PrincipalPaid,
		levy.InterestPaid, levy.CostsPaid, levy.ID, levy.Version)
	if err != nil {
		return err
	}
	levy.Version++
	return nil
}

// MarkLeviesOverdue moves pending levies of a building with a due date before
// asOf to overdue and returns how many changed. Paid levies are never touched.
func (t *Tx) MarkLeviesOverdue(ctx context.Context, buildingID string, asOf models.Date) (int, error) {
	query := `
		UPDATE levies SET status = ?, version = version + 1
		WHERE building_id = ? AND status = ? AND due_date < ?`
	res, err := t.exec(ctx, query, models.LevyOverdue, buildingID, models.LevyPending, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to mark levies overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark levies overdue: %w", err)
	}
	return int(n), nil
}

// ListLevyBuildings returns every building that has levies.
func (t *Tx) ListLevyBuildings(ctx context.Context) ([]string, error) {
	var ids []string
	if err := t.selectAll(ctx, &ids, `SELECT DISTINCT building_id FROM levies ORDER BY building_id`); err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	return ids, nil
}
