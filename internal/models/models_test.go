package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		start Date
		n     int
		want  Date
	}{
		{start: DateOf(2026, time.January, 31), n: 1, want: DateOf(2026, time.February, 28)},
		{start: DateOf(2028, time.January, 31), n: 1, want: DateOf(2028, time.February, 29)},
		{start: DateOf(2026, time.January, 31), n: 2, want: DateOf(2026, time.March, 31)},
		{start: DateOf(2026, time.November, 15), n: 3, want: DateOf(2027, time.February, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.start.String(), func(t *testing.T) {
			if got := tt.start.AddMonths(tt.n); !got.Equal(tt.want) {
				t.Fatalf("AddMonths(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestDateDaysUntil(t *testing.T) {
	a := DateOf(2026, time.October, 1)
	b := DateOf(2026, time.October, 29)
	if d := a.DaysUntil(b); d != 28 {
		t.Fatalf("Expected 28, got %d", d)
	}
	if d := b.DaysUntil(a); d != -28 {
		t.Fatalf("Expected -28, got %d", d)
	}
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	if err := d.Scan("2026-03-04"); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if d.String() != "2026-03-04" {
		t.Fatalf("Expected 2026-03-04, got %s", d)
	}
	if err := d.Scan([]byte("2026-03-05T00:00:00Z")); err != nil {
		t.Fatalf("Scan bytes failed: %v", err)
	}
	if d.String() != "2026-03-05" {
		t.Fatalf("Expected 2026-03-05, got %s", d)
	}
	if err := d.Scan(time.Date(2026, 3, 6, 23, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan time failed: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `"2026-03-06"` {
		t.Fatalf("Unexpected JSON %s", out)
	}
	if err := d.Scan(42); err == nil {
		t.Fatalf("Expected error scanning int")
	}
}

func TestPlanTransitions(t *testing.T) {
	tests := []struct {
		from, to PlanStatus
		want     bool
	}{
		{PlanPending, PlanApproved, true},
		{PlanPending, PlanRejected, true},
		{PlanPending, PlanActive, false},
		{PlanApproved, PlanActive, true},
		{PlanApproved, PlanApproved, false},
		{PlanActive, PlanCompleted, true},
		{PlanActive, PlanDefaulted, true},
		{PlanCompleted, PlanActive, false},
		{PlanRejected, PlanApproved, false},
		{PlanDefaulted, PlanActive, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSplitPaymentPrincipalFirst(t *testing.T) {
	plan := PaymentPlan{TotalOwed: 100000, InterestOwed: 5000, PrincipalPaid: 90000}
	principal, interest := plan.SplitPayment(15000)
	if principal != 10000 || interest != 5000 {
		t.Fatalf("Expected 10000/5000, got %d/%d", principal, interest)
	}
}
