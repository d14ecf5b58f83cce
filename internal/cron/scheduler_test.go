package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())

	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	if err := s.RegisterJob(&simpleJob{name: "bad", schedule: "not a schedule"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected invalid schedule error")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	if err := s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}

type fakePruner struct {
	mu      sync.Mutex
	maxIdle time.Duration
	result  int
	calls   int
}

func (p *fakePruner) Prune(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxIdle = maxIdle
	p.calls++
	return p.result
}

func TestSessionCleanupJob_Run(t *testing.T) {
	t.Parallel()

	pruner := &fakePruner{result: 3}
	job := &SessionCleanupJob{
		Store:   pruner,
		MaxIdle: 30 * time.Minute,
		Logger:  testLogger(),
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	if pruner.calls != 1 {
		t.Errorf("prune calls = %d, want 1", pruner.calls)
	}
	if pruner.maxIdle != 30*time.Minute {
		t.Errorf("maxIdle = %v, want 30m", pruner.maxIdle)
	}
}

func TestSessionCleanupJob_DefaultSchedule(t *testing.T) {
	t.Parallel()

	job := &SessionCleanupJob{}
	if got := job.Schedule(); got != "*/5 * * * *" {
		t.Errorf("schedule = %q", got)
	}
	job.ScheduleExpr = "0 * * * *"
	if got := job.Schedule(); got != "0 * * * *" {
		t.Errorf("schedule = %q", got)
	}
}

var errBoom = errors.New("boom")

func TestScheduler_JobErrorDoesNotStopScheduler(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	job := &simpleJob{name: "failing", schedule: "* * * * *", runFunc: func(context.Context) error {
		return errBoom
	}}
	if err := s.RegisterJob(job); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
