package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
)

// requireMember checks that the actor belongs to the building.
// Must not be called while a transaction is open.
func (s *Service) requireMember(ctx context.Context, actor models.Actor, buildingID, op string) error {
	if actor.ID == "" {
		return apperr.Forbidden("anonymous", op)
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	role, err := s.directory.MemberRole(ctx, buildingID, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if role == "" {
		return apperr.Forbidden(actor.ID, op)
	}
	return nil
}

// requireDecider checks that the actor is an admin or a manager/committee member of the building.
// Must not be called while a transaction is open.
func (s *Service) requireDecider(ctx context.Context, actor models.Actor, buildingID, op string) error {
	if actor.ID == "" {
		return apperr.Forbidden("anonymous", op)
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	role, err := s.directory.MemberRole(ctx, buildingID, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !role.CanDecide() {
		return apperr.Forbidden(actor.ID, op)
	}
	return nil
}

// AuthorizeDecider reports a ForbiddenError unless the actor may decide for the building.
func (s *Service) AuthorizeDecider(ctx context.Context, actor models.Actor, buildingID string) error {
	return s.requireDecider(ctx, actor, buildingID, "review building payment plans")
}

// AuthorizeReader reports a ForbiddenError unless the actor belongs to the building.
func (s *Service) AuthorizeReader(ctx context.Context, actor models.Actor, buildingID string) error {
	return s.requireMember(ctx, actor, buildingID, "read building records")
}

// AuthorizeLotReader resolves the lot's building and checks membership.
func (s *Service) AuthorizeLotReader(ctx context.Context, actor models.Actor, lotID string) error {
	buildingID, err := s.directory.LotBuilding(ctx, lotID)
	if err != nil {
		return err
	}
	return s.AuthorizeReader(ctx, actor, buildingID)
}
