package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
)

// Directory answers building and membership lookups from the lots and
// building_members tables, which are maintained by the directory owner.
type Directory struct {
	db *sqlx.DB
}

func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

// LotBuilding returns the building a lot belongs to.
func (d *Directory) LotBuilding(ctx context.Context, lotID string) (string, error) {
	var buildingID string
	err := d.db.GetContext(ctx, &buildingID, d.db.Rebind(`SELECT building_id FROM lots WHERE id = ?`), lotID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("lot", lotID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to find lot: %w", err)
	}
	return buildingID, nil
}

// MemberRole returns the role of a user in a building, or "" when not a member.
func (d *Directory) MemberRole(ctx context.Context, buildingID, userID string) (models.Role, error) {
	var role models.Role
	query := d.db.Rebind(`SELECT role FROM building_members WHERE building_id = ? AND user_id = ?`)
	err := d.db.GetContext(ctx, &role, query, buildingID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find member: %w", err)
	}
	return role, nil
}

// PutLot creates or moves a lot.
func (d *Directory) PutLot(ctx context.Context, lotID, buildingID, unitNumber string) error {
	query := d.db.Rebind(`
		INSERT INTO lots (id, building_id, unit_number) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET building_id = excluded.building_id, unit_number = excluded.unit_number`)
	if _, err := d.db.ExecContext(ctx, query, lotID, buildingID, unitNumber); err != nil {
		return fmt.Errorf("failed to save lot: %w", err)
	}
	return nil
}

// PutMember creates or updates a building membership.
func (d *Directory) PutMember(ctx context.Context, buildingID, userID string, role models.Role) error {
	query := d.db.Rebind(`
		INSERT INTO building_members (building_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (building_id, user_id) DO UPDATE SET role = excluded.role`)
	if _, err := d.db.ExecContext(ctx, query, buildingID, userID, role); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}
