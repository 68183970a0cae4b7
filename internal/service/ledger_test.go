package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
)

func TestComputeDaysOverdue(t *testing.T) {
	levy := models.Levy{DueDate: models.DateOf(2026, time.March, 1)}
	tests := []struct {
		asOf models.Date
		want int
	}{
		{asOf: models.DateOf(2026, time.February, 20), want: 0},
		{asOf: models.DateOf(2026, time.March, 1), want: 0},
		{asOf: models.DateOf(2026, time.March, 11), want: 10},
		{asOf: models.DateOf(2027, time.March, 1), want: 365},
	}
	for _, tt := range tests {
		t.Run(tt.asOf.String(), func(t *testing.T) {
			if got := ComputeDaysOverdue(levy, tt.asOf); got != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRecordLevyValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordLevy(f.ctx, models.Levy{LotID: "lot-1", Amount: -5})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(verr.Fields) != 4 {
		t.Fatalf("Expected 4 field errors, got %+v", verr.Fields)
	}
}

func TestMarkOverdueSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	due := f.levy("lot-1", "250.00", models.DateOf(2026, time.March, 1))
	paid := f.levy("lot-2", "250.00", models.DateOf(2026, time.February, 1))
	if _, err := f.svc.MarkPaid(f.ctx, paid.ID, models.DateOf(2026, time.February, 1)); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	f.today = models.DateOf(2026, time.March, 11)

	n, err := f.svc.MarkOverdueSweep(f.ctx, "b-1")
	if err != nil {
		t.Fatalf("MarkOverdueSweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 levy marked overdue, got %d", n)
	}
	if n, err = f.svc.MarkOverdueSweep(f.ctx, "b-1"); err != nil || n != 0 {
		t.Fatalf("Expected second sweep to be a no-op, got %d, %v", n, err)
	}

	got, err := f.svc.GetLevy(f.ctx, due.ID)
	if err != nil {
		t.Fatalf("GetLevy failed: %v", err)
	}
	if got.Status != models.LevyOverdue || ComputeDaysOverdue(*got, f.today) != 10 {
		t.Fatalf("Unexpected levy %+v", got)
	}
	if got, _ := f.svc.GetLevy(f.ctx, paid.ID); got.Status != models.LevyPaid {
		t.Fatalf("Paid levy must stay paid, got %s", got.Status)
	}

	if _, err := f.svc.MarkOverdueSweep(f.ctx, ""); !apperr.IsValidation(err) {
		t.Fatalf("Expected validation error without building, got %v", err)
	}
}

func TestMarkPaidOnce(t *testing.T) {
	f := newFixture(t)
	levy := f.levy("lot-1", "250.00", models.DateOf(2026, time.March, 1))

	got, err := f.svc.MarkPaid(f.ctx, levy.ID, models.Date{})
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(f.today) {
		t.Fatalf("Expected paid today, got %v", got.PaidAt)
	}
	if _, err := f.svc.MarkPaid(f.ctx, levy.ID, models.Date{}); !apperr.IsState(err) {
		t.Fatalf("Expected state error, got %v", err)
	}
	if _, err := f.svc.RecordRecoveryCost(f.ctx, levy.ID, 1000); !apperr.IsState(err) {
		t.Fatalf("Expected state error adding costs to a paid levy, got %v", err)
	}
	if _, err := f.svc.MarkPaid(f.ctx, "missing", models.Date{}); !apperr.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestAccruedInterestIgnoresPartialPrincipal(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.LevyInterestRate = decimal.NewFromInt(10)
	})
	levy := f.levy("lot-1", "1000.00", models.DateOf(2026, time.January, 1))
	asOf := models.DateOf(2026, time.March, 15)
	if got := f.svc.AccruedInterest(*levy, asOf); got != money.MustParse("20.00") {
		t.Fatalf("Expected 20.00, got %s", got)
	}

	res, err := f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetLevy,
		TargetID:   levy.ID,
		Amount:     money.MustParse("500.00"),
		Reference:  "part",
		PaidDate:   models.DateOf(2026, time.February, 1),
	})
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if res.Payment.Principal != money.MustParse("500.00") {
		t.Fatalf("Expected the payment to go to principal, got %+v", res.Payment)
	}

	stored, err := f.svc.GetLevy(f.ctx, levy.ID)
	if err != nil {
		t.Fatalf("GetLevy failed: %v", err)
	}
	if got := f.svc.AccruedInterest(*stored, asOf); got != money.MustParse("20.00") {
		t.Fatalf("Expected interest on the full levy amount, got %s", got)
	}
}
