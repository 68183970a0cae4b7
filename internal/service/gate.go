package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/repository"
)

const (
	reasonPlanInEffect = "active or approved payment plan in effect"
	reasonNoPlanOffer  = "no payment plan has been offered for this lot"
	reasonOfferAllowed = "payment plan offers are always permitted"
	reasonNoPlan       = "no active or approved payment plan"
)

// EvaluateEligibility decides whether a recovery action may proceed against a
// lot. It only reads state.
func (s *Service) EvaluateEligibility(ctx context.Context, lotID string, actionType models.ActionType) (*models.Eligibility, error) {
	if err := validateAction(lotID, actionType); err != nil {
		return nil, err
	}
	var out *models.Eligibility
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = s.evaluate(ctx, tx, lotID, actionType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validateAction(lotID string, actionType models.ActionType) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(lotID) == "" {
		fields = append(fields, apperr.FieldError{Field: "lot_id", Error: "is required"})
	}
	if !actionType.Valid() {
		fields = append(fields, apperr.FieldError{Field: "action_type", Error: fmt.Sprintf("unknown action type %q", actionType)})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid recovery action", fields...)
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, tx *repository.Tx, lotID string, actionType models.ActionType) (*models.Eligibility, error) {
	out := &models.Eligibility{LotID: lotID, ActionType: actionType, Allowed: true}
	if actionType == models.ActionPaymentPlanOffered {
		out.Reason = reasonOfferAllowed
		return out, nil
	}

	plans, err := tx.ListPlansByLot(ctx, lotID, models.PlanApproved, models.PlanActive)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		out.Allowed = false
		out.Reason = reasonPlanInEffect
		out.PlanID = plans[0].ID
		return out, nil
	}

	if s.config.RequirePlanOfferOnRecovery {
		offered, err := tx.HasRecoveryAction(ctx, lotID, models.ActionPaymentPlanOffered)
		if err != nil {
			return nil, err
		}
		if !offered {
			out.Allowed = false
			out.Reason = reasonNoPlanOffer
			return out, nil
		}
	}

	out.Reason = reasonNoPlan
	return out, nil
}

// RecordRecoveryAction appends a recovery action after consulting the gate.
// A blocked action returns ComplianceViolation and is logged for audit.
func (s *Service) RecordRecoveryAction(ctx context.Context, actor models.Actor, lotID string, actionType models.ActionType, notes string) (*models.RecoveryAction, error) {
	if err := validateAction(lotID, actionType); err != nil {
		return nil, err
	}
	buildingID, err := s.directory.LotBuilding(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if err := s.requireDecider(ctx, actor, buildingID, "record recovery actions"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock("lot:" + lotID)
	defer unlock()

	action := &models.RecoveryAction{
		BuildingID: buildingID,
		LotID:      lotID,
		ActionType: actionType,
		ActionDate: s.today(),
		ActorID:    &actor.ID,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		action.Notes = &notes
	}

	var verdict *models.Eligibility
	err = s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		if verdict, err = s.evaluate(ctx, tx, lotID, actionType); err != nil {
			return err
		}
		if !verdict.Allowed {
			return nil
		}
		return tx.InsertRecoveryAction(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"lot_id":      lotID,
		"building_id": buildingID,
		"action_type": actionType,
		"actor_id":    actor.ID,
	}
	if !verdict.Allowed {
		fields["reason"] = verdict.Reason
		if verdict.PlanID != "" {
			fields["plan_id"] = verdict.PlanID
		}
		s.log.WithFields(fields).Warn("Recovery action blocked")
		return nil, &apperr.ComplianceViolation{LotID: lotID, ActionType: string(actionType), Reason: verdict.Reason}
	}
	s.log.WithFields(fields).Info("Recovery action recorded")
	return action, nil
}

// RecoveryHistory returns the recovery log of a lot.
func (s *Service) RecoveryHistory(ctx context.Context, lotID string) ([]models.RecoveryAction, error) {
	var actions []models.RecoveryAction
	err := s.repo.RunInTx(ctx, func(tx *repository.Tx) error {
		var err error
		actions, err = tx.ListRecoveryActions(ctx, lotID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []models.RecoveryAction{}
	}
	return actions, nil
}
