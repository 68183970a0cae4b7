package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/models"
)

func TestRecoveryGateFollowsPlanLifecycle(t *testing.T) {
	f := newFixture(t)

	verdict, err := f.svc.EvaluateEligibility(f.ctx, "lot-1", models.ActionDemandLetter)
	if err != nil {
		t.Fatalf("EvaluateEligibility failed: %v", err)
	}
	if !verdict.Allowed {
		t.Fatalf("Expected allowed without a plan, got %+v", verdict)
	}

	plan := f.requestPlan("lot-1", "300.00", 1)
	if verdict, _ = f.svc.EvaluateEligibility(f.ctx, "lot-1", models.ActionDemandLetter); !verdict.Allowed {
		t.Fatalf("A pending plan must not block recovery, got %+v", verdict)
	}

	start := models.DateOf(2026, time.March, 15)
	if _, err := f.svc.Decide(f.ctx, f.manager, plan.ID, DecisionInput{Approve: true, StartDate: &start}); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	for _, action := range []models.ActionType{models.ActionDemandLetter, models.ActionLegalReferral, models.ActionDebtCollection, models.ActionTribunalApplication} {
		t.Run(string(action), func(t *testing.T) {
			verdict, err := f.svc.EvaluateEligibility(f.ctx, "lot-1", action)
			if err != nil {
				t.Fatalf("EvaluateEligibility failed: %v", err)
			}
			if verdict.Allowed || verdict.Reason != "active or approved payment plan in effect" || verdict.PlanID != plan.ID {
				t.Fatalf("Expected blocked verdict, got %+v", verdict)
			}
		})
	}

	verdict, err = f.svc.EvaluateEligibility(f.ctx, "lot-1", models.ActionPaymentPlanOffered)
	if err != nil || !verdict.Allowed {
		t.Fatalf("Plan offers must stay permitted, got %+v, %v", verdict, err)
	}
	if verdict, _ = f.svc.EvaluateEligibility(f.ctx, "lot-2", models.ActionLegalReferral); !verdict.Allowed {
		t.Fatalf("Other lots are unaffected, got %+v", verdict)
	}

	_, err = f.svc.RecordRecoveryAction(f.ctx, f.manager, "lot-1", models.ActionLegalReferral, "refer to solicitor")
	var violation *apperr.ComplianceViolation
	if !errors.As(err, &violation) {
		t.Fatalf("Expected compliance violation, got %v", err)
	}
	if violation.Reason != "active or approved payment plan in effect" {
		t.Fatalf("Unexpected reason %q", violation.Reason)
	}

	f.pay(plan.ID, "300.00", "full")
	action, err := f.svc.RecordRecoveryAction(f.ctx, f.manager, "lot-1", models.ActionDemandLetter, "  final notice ")
	if err != nil {
		t.Fatalf("RecordRecoveryAction failed: %v", err)
	}
	if action.Notes == nil || *action.Notes != "final notice" || action.BuildingID != "b-1" {
		t.Fatalf("Unexpected action %+v", action)
	}

	history, err := f.svc.RecoveryHistory(f.ctx, "lot-1")
	if err != nil {
		t.Fatalf("RecoveryHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected offer and demand letter, got %+v", history)
	}
	if history[0].ActionType != models.ActionPaymentPlanOffered || history[1].ActionType != models.ActionDemandLetter {
		t.Fatalf("Unexpected history %+v", history)
	}
}

func TestRecordRecoveryActionChecks(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		actor models.Actor
		lot   string
		typ   models.ActionType
		check func(error) bool
	}{
		{name: "unknown action", actor: f.manager, lot: "lot-1", typ: "eviction", check: apperr.IsValidation},
		{name: "missing lot", actor: f.manager, lot: "", typ: models.ActionDemandLetter, check: apperr.IsValidation},
		{name: "unknown lot", actor: f.manager, lot: "lot-9", typ: models.ActionDemandLetter, check: apperr.IsNotFound},
		{name: "owner", actor: f.owner, lot: "lot-1", typ: models.ActionDemandLetter, check: apperr.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordRecoveryAction(f.ctx, tt.actor, tt.lot, tt.typ, "")
			if !tt.check(err) {
				t.Fatalf("Unexpected error %v", err)
			}
		})
	}

	admin := models.Actor{ID: "u-admin", Role: models.RoleAdmin}
	if _, err := f.svc.RecordRecoveryAction(f.ctx, admin, "lot-2", models.ActionDemandLetter, ""); err != nil {
		t.Fatalf("Admin should bypass building roles: %v", err)
	}
}

func TestRecoveryRequiresPlanOffer(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.RequirePlanOfferOnRecovery = true
	})

	verdict, err := f.svc.EvaluateEligibility(f.ctx, "lot-1", models.ActionDebtCollection)
	if err != nil {
		t.Fatalf("EvaluateEligibility failed: %v", err)
	}
	if verdict.Allowed || verdict.Reason != "no payment plan has been offered for this lot" {
		t.Fatalf("Expected blocked verdict, got %+v", verdict)
	}

	if _, err := f.svc.RecordRecoveryAction(f.ctx, f.manager, "lot-1", models.ActionPaymentPlanOffered, "offered by letter"); err != nil {
		t.Fatalf("RecordRecoveryAction failed: %v", err)
	}
	if verdict, _ = f.svc.EvaluateEligibility(f.ctx, "lot-1", models.ActionDebtCollection); !verdict.Allowed {
		t.Fatalf("Expected allowed after an offer, got %+v", verdict)
	}
}
