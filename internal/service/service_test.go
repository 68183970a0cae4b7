package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/notify"
	"github.com/Dan9191/strata-service/internal/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	svc     *Service
	db      *sqlx.DB
	dir     *repository.Directory
	events  *recorder
	today   models.Date
	owner   models.Actor
	manager models.Actor
}

func newFixture(t *testing.T, tweaks ...func(*config.Config)) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	if err := repository.Migrate(ctx, db, log, "up"); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	cfg := &config.Config{
		MaxInstallments:           52,
		UrgentThresholdDays:       7,
		DefaultMissedInstallments: 2,
		LevyInterestRate:          decimal.Zero,
		Currency:                  "AUD",
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	f := &fixture{
		t:       t,
		ctx:     ctx,
		db:      db,
		dir:     repository.NewDirectory(db),
		events:  &recorder{},
		today:   models.DateOf(2026, time.March, 1),
		owner:   models.Actor{ID: "u-owner", Role: models.RoleOwner},
		manager: models.Actor{ID: "u-manager", Role: models.RoleManager},
	}
	f.svc = NewService(repository.NewRepository(db), log, cfg, f.dir, f.events)
	f.svc.SetClock(func() time.Time { return f.today.Time() })

	for _, lot := range []string{"lot-1", "lot-2"} {
		if err := f.dir.PutLot(ctx, lot, "b-1", lot); err != nil {
			t.Fatalf("PutLot failed: %v", err)
		}
	}
	if err := f.dir.PutMember(ctx, "b-1", f.owner.ID, models.RoleOwner); err != nil {
		t.Fatalf("PutMember failed: %v", err)
	}
	if err := f.dir.PutMember(ctx, "b-1", f.manager.ID, models.RoleManager); err != nil {
		t.Fatalf("PutMember failed: %v", err)
	}
	return f
}

func (f *fixture) requestPlan(lotID, total string, n int) *models.PaymentPlan {
	f.t.Helper()
	plan, err := f.svc.RequestPlan(f.ctx, f.owner, RequestPlanInput{
		LotID:                lotID,
		TotalOwed:            money.MustParse(total),
		NumberOfInstallments: n,
		Frequency:            models.Monthly,
	})
	if err != nil {
		f.t.Fatalf("RequestPlan failed: %v", err)
	}
	return plan
}

// activePlan requests and approves a monthly plan starting on start.
func (f *fixture) activePlan(lotID, total string, n int, start models.Date) *models.PaymentPlan {
	f.t.Helper()
	plan := f.requestPlan(lotID, total, n)
	plan, err := f.svc.Decide(f.ctx, f.manager, plan.ID, DecisionInput{Approve: true, StartDate: &start})
	if err != nil {
		f.t.Fatalf("Decide failed: %v", err)
	}
	return plan
}

func (f *fixture) pay(planID, amount, ref string) *models.PaymentResult {
	f.t.Helper()
	res, err := f.svc.ApplyPayment(f.ctx, models.IncomingPayment{
		TargetType: models.TargetPlan,
		TargetID:   planID,
		Amount:     money.MustParse(amount),
		Reference:  ref,
	})
	if err != nil {
		f.t.Fatalf("ApplyPayment(%s, %s) failed: %v", amount, ref, err)
	}
	return res
}

func (f *fixture) levy(lotID, amount string, due models.Date) *models.Levy {
	f.t.Helper()
	levy, err := f.svc.RecordLevy(f.ctx, models.Levy{
		LotID:      lotID,
		BuildingID: "b-1",
		Period:     due.String(),
		Amount:     money.MustParse(amount),
		DueDate:    due,
	})
	if err != nil {
		f.t.Fatalf("RecordLevy failed: %v", err)
	}
	return levy
}

func (f *fixture) plan(planID string) *models.PaymentPlan {
	f.t.Helper()
	plan, err := f.svc.GetPlan(f.ctx, planID)
	if err != nil {
		f.t.Fatalf("GetPlan failed: %v", err)
	}
	return plan
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("plan:1", "lot:1", "plan:1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("Expected 50, got %d", counter)
	}
	if len(k.locks) != 0 {
		t.Fatalf("Expected lock table to drain, got %d entries", len(k.locks))
	}
}
