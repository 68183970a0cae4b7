package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/repository"
)

func TestApplyPaymentValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   models.IncomingPayment
	}{
		{name: "zero amount", in: models.IncomingPayment{TargetType: models.TargetPlan, TargetID: "p", Reference: "r"}},
		{name: "no reference", in: models.IncomingPayment{TargetType: models.TargetPlan, TargetID: "p", Amount: 100}},
		{name: "no target", in: models.IncomingPayment{TargetType: models.TargetPlan, Amount: 100, Reference: "r"}},
		{name: "bad target type", in: models.IncomingPayment{TargetType: "lot", TargetID: "p", Amount: 100, Reference: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.ApplyPayment(f.ctx, tt.in); !apperr.IsValidation(err) {
				t.Fatalf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestApplyPaymentIsIdempotentPerReference(t *testing.T) {
	f := newFixture(t)
	plan := f.activePlan("lot-1", "1000.00", 3, models.DateOf(2026, time.March, 15))

	first := f.pay(plan.ID, "100.00", "X")
	if first.Duplicate {
		t.Fatalf("First application must not be a duplicate")
	}
	second := f.pay(plan.ID, "100.00", "X")
	if !second.Duplicate {
		t.Fatalf("Expected duplicate on replay")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Fatalf("Expected the stored payment, got %s vs %s", second.Payment.ID, first.Payment.ID)
	}
	if len(second.Allocations) != 1 || second.Allocations[0].Amount != 10000 {
		t.Fatalf("Unexpected replayed allocations %+v", second.Allocations)
	}

	stored := f.plan(plan.ID)
	if stored.Installments[0].PaidAmount != 10000 {
		t.Fatalf("Expected 100.00 applied once, got %s", stored.Installments[0].PaidAmount)
	}
	if stored.PrincipalPaid != 10000 {
		t.Fatalf("Expected principal 100.00, got %s", stored.PrincipalPaid)
	}
}

func TestPlanPaymentsSettleInstallmentsAndLinkedLevies(t *testing.T) {
	f := newFixture(t)
	older := f.levy("lot-1", "600.00", models.DateOf(2026, time.January, 1))
	newer := f.levy("lot-1", "400.00", models.DateOf(2026, time.February, 1))
	plan := f.activePlan("lot-1", "1000.00", 3, models.DateOf(2026, time.March, 15))

	res := f.pay(plan.ID, "333.33", "A")
	if len(res.Allocations) != 1 || !res.Allocations[0].Settled {
		t.Fatalf("Expected installment 1 settled, got %+v", res.Allocations)
	}
	progress, err := f.svc.Progress(f.ctx, plan.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.PercentComplete != 33.33 || progress.InstallmentsPaid != 1 || progress.TotalRemaining != 66667 {
		t.Fatalf("Unexpected progress %+v", progress)
	}

	res = f.pay(plan.ID, "200.00", "B")
	if len(res.Allocations) != 1 || res.Allocations[0].Settled {
		t.Fatalf("Expected partial credit to installment 2, got %+v", res.Allocations)
	}
	stored := f.plan(plan.ID)
	if it := stored.Installments[1]; it.Status != models.InstallmentPending || it.PaidAmount != 20000 {
		t.Fatalf("Unexpected installment 2 %+v", it)
	}
	if stored.PaidInstallments != 1 {
		t.Fatalf("Expected 1 paid installment, got %d", stored.PaidInstallments)
	}

	f.pay(plan.ID, "133.33", "C")
	stored = f.plan(plan.ID)
	if !stored.Installments[1].IsPaid() || stored.PaidInstallments != 2 {
		t.Fatalf("Expected installment 2 paid, got %+v", stored.Installments[1])
	}
	if got, _ := f.svc.GetLevy(f.ctx, older.ID); got.Status != models.LevyPaid {
		t.Fatalf("Expected oldest levy settled, got %s", got.Status)
	}
	if got, _ := f.svc.GetLevy(f.ctx, newer.ID); got.Status == models.LevyPaid {
		t.Fatalf("Newer levy must stay unpaid")
	}

	_, err = f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetLevy, TargetID: newer.ID, Amount: 1000, Reference: "direct",
	})
	if !apperr.IsState(err) {
		t.Fatalf("Expected state error paying a covered levy directly, got %v", err)
	}

	_, err = f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetPlan, TargetID: plan.ID, Amount: money.MustParse("333.35"), Reference: "D",
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("Expected overpayment to be rejected, got %v", err)
	}

	res = f.pay(plan.ID, "333.34", "E")
	if res.PlanStatus != models.PlanCompleted {
		t.Fatalf("Expected completed plan, got %s", res.PlanStatus)
	}
	stored = f.plan(plan.ID)
	if stored.PaidInstallments != 3 || stored.PrincipalPaid != 100000 {
		t.Fatalf("Unexpected completed plan %+v", stored)
	}
	if got, _ := f.svc.GetLevy(f.ctx, newer.ID); got.Status != models.LevyPaid {
		t.Fatalf("Expected second levy settled on completion, got %s", got.Status)
	}

	_, err = f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetPlan, TargetID: plan.ID, Amount: 100, Reference: "F",
	})
	if !apperr.IsState(err) {
		t.Fatalf("Expected state error paying a completed plan, got %v", err)
	}
}

func TestLevyPaymentOrder(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.LevyInterestRate = decimal.NewFromInt(10)
	})
	levy := f.levy("lot-1", "1000.00", models.DateOf(2026, time.January, 1))
	if _, err := f.svc.RecordRecoveryCost(f.ctx, levy.ID, money.MustParse("50.00")); err != nil {
		t.Fatalf("RecordRecoveryCost failed: %v", err)
	}
	f.today = models.DateOf(2026, time.March, 15)

	arrears, err := f.svc.Arrears(f.ctx, "lot-1", models.Date{})
	if err != nil {
		t.Fatalf("Arrears failed: %v", err)
	}
	if len(arrears.Levies) != 1 {
		t.Fatalf("Expected one levy in arrears, got %d", len(arrears.Levies))
	}
	item := arrears.Levies[0]
	if item.DaysOverdue != 73 || item.OutstandingInterest != money.MustParse("20.00") {
		t.Fatalf("Unexpected arrears %+v", item)
	}
	if arrears.TotalOutstanding != money.MustParse("1070.00") {
		t.Fatalf("Unexpected total %s", arrears.TotalOutstanding)
	}

	pay := func(amount, ref string) (*models.PaymentResult, error) {
		return f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
			TargetType: models.TargetLevy, TargetID: levy.ID, Amount: money.MustParse(amount), Reference: ref,
		})
	}

	res, err := pay("1020.00", "L1")
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if res.Payment.Principal != 100000 || res.Payment.Interest != 2000 || res.Payment.Costs != 0 {
		t.Fatalf("Unexpected split %+v", res.Payment)
	}
	if res.LevyStatus != models.LevyPaid {
		t.Fatalf("Expected paid levy, got %s", res.LevyStatus)
	}

	if _, err := pay("60.00", "L2"); !apperr.IsValidation(err) {
		t.Fatalf("Expected overpayment rejected, got %v", err)
	}
	res, err = pay("50.00", "L3")
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if res.Payment.Costs != 5000 || res.Payment.Principal != 0 || res.Payment.Interest != 0 {
		t.Fatalf("Expected the remainder to go to costs, got %+v", res.Payment)
	}

	arrears, err = f.svc.Arrears(f.ctx, "lot-1", models.Date{})
	if err != nil {
		t.Fatalf("Arrears failed: %v", err)
	}
	if len(arrears.Levies) != 0 {
		t.Fatalf("Paid levies must not appear in arrears")
	}
}

func TestConcurrentPaymentsAllApply(t *testing.T) {
	f := newFixture(t)
	plan := f.activePlan("lot-2", "100.00", 2, models.DateOf(2026, time.March, 15))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
				TargetType: models.TargetPlan,
				TargetID:   plan.ID,
				Amount:     money.MustParse("10.00"),
				Reference:  fmt.Sprintf("c-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ApplyPayment failed: %v", err)
		}
	}

	stored := f.plan(plan.ID)
	if stored.Status != models.PlanCompleted || stored.PaidInstallments != 2 {
		t.Fatalf("Expected completed plan, got %s with %d paid", stored.Status, stored.PaidInstallments)
	}
	if stored.PrincipalPaid != 10000 {
		t.Fatalf("Expected 100.00 principal, got %s", stored.PrincipalPaid)
	}
}

func TestPendingPlanHoldsItsLevies(t *testing.T) {
	f := newFixture(t)
	levy := f.levy("lot-1", "100.00", models.DateOf(2026, time.February, 1))
	plan := f.requestPlan("lot-1", "100.00", 1)

	_, err := f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetLevy, TargetID: levy.ID, Amount: money.MustParse("100.00"), Reference: "direct",
	})
	if !apperr.IsState(err) {
		t.Fatalf("Expected state error paying a levy held by a pending plan, got %v", err)
	}
	if _, err := f.svc.MarkPaid(f.ctx, levy.ID, models.Date{}); !apperr.IsState(err) {
		t.Fatalf("Expected state error marking a held levy paid, got %v", err)
	}
	if got, _ := f.svc.GetLevy(f.ctx, levy.ID); got.Status == models.LevyPaid || got.PrincipalPaid != 0 {
		t.Fatalf("Levy must be untouched, got %+v", got)
	}

	start := models.DateOf(2026, time.March, 15)
	if _, err := f.svc.Decide(f.ctx, f.manager, plan.ID, DecisionInput{Approve: true, StartDate: &start}); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	res := f.pay(plan.ID, "100.00", "P1")
	if res.PlanStatus != models.PlanCompleted {
		t.Fatalf("Expected completed plan, got %s", res.PlanStatus)
	}
	got, _ := f.svc.GetLevy(f.ctx, levy.ID)
	if got.Status != models.LevyPaid || got.PrincipalPaid != money.MustParse("100.00") {
		t.Fatalf("Expected levy settled once through the plan, got %+v", got)
	}
}

func TestRejectedPlanReleasesItsLevies(t *testing.T) {
	f := newFixture(t)
	levy := f.levy("lot-1", "100.00", models.DateOf(2026, time.February, 1))
	plan := f.requestPlan("lot-1", "100.00", 1)
	if _, err := f.svc.Decide(f.ctx, f.manager, plan.ID, DecisionInput{Approve: false, Reason: "pay in full"}); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	res, err := f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetLevy, TargetID: levy.ID, Amount: money.MustParse("100.00"), Reference: "direct",
	})
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if res.LevyStatus != models.LevyPaid {
		t.Fatalf("Expected paid levy, got %s", res.LevyStatus)
	}
}

func TestApproveRefusesPlanWithPaidLevy(t *testing.T) {
	f := newFixture(t)
	levy := f.levy("lot-1", "100.00", models.DateOf(2026, time.February, 1))
	plan := f.requestPlan("lot-1", "100.00", 1)

	// Settled outside the engine, e.g. by a billing correction.
	err := f.svc.repo.RunInTx(f.ctx, func(tx *repository.Tx) error {
		stored, err := tx.GetLevy(f.ctx, levy.ID)
		if err != nil {
			return err
		}
		if err := markLevyPaid(stored, f.today); err != nil {
			return err
		}
		return tx.UpdateLevy(f.ctx, stored)
	})
	if err != nil {
		t.Fatalf("settling levy failed: %v", err)
	}

	if _, err := f.svc.Decide(f.ctx, f.manager, plan.ID, DecisionInput{Approve: true}); !apperr.IsState(err) {
		t.Fatalf("Expected state error approving over a paid levy, got %v", err)
	}
	if got := f.plan(plan.ID); got.Status != models.PlanPending || len(got.Installments) != 0 {
		t.Fatalf("Plan must stay pending without a schedule, got %s with %d installments", got.Status, len(got.Installments))
	}
}
