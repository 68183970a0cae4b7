package sweeper

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/service"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRunner) SweepAll(_ context.Context, asOf models.Date) (*service.SweepReport, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepReport{AsOf: asOf, InstallmentsOverdue: 2}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(&fakeRunner{}, quietLogger(), "every night"); err == nil {
		t.Fatalf("Expected error for an invalid schedule")
	}
}

func TestRunOnce(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(runner, quietLogger(), "0 2 * * *")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	report, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if report.InstallmentsOverdue != 2 || runner.calls.Load() != 1 {
		t.Fatalf("Unexpected report %+v after %d calls", report, runner.calls.Load())
	}

	runner.err = errors.New("database is locked")
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("Expected the sweep error to surface")
	}
}

func TestScheduledRun(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(runner, quietLogger(), "@every 1s")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for runner.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected a scheduled sweep within 5s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
