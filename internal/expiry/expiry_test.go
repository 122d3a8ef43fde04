package expiry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExpirer struct {
	mu      sync.Mutex
	calls   []string
	results map[string]int
	fail    map[string]bool
	runs    atomic.Int32
}

func (f *fakeExpirer) ExpireTenant(ctx context.Context, tenantID string) (int, error) {
	f.runs.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID)
	if f.fail[tenantID] {
		return 0, errors.New("boom")
	}
	return f.results[tenantID], nil
}

type fakeTenants struct {
	tenants []string
	err     error
}

func (f fakeTenants) ListTenants(ctx context.Context) ([]string, error) {
	return f.tenants, f.err
}

func TestSweep(t *testing.T) {
	exp := &fakeExpirer{
		results: map[string]int{"t1": 2, "t2": 0, "t3": 5},
		fail:    map[string]bool{"t2": true},
	}

	s, err := NewScheduler(exp, fakeTenants{tenants: []string{"t1", "t2", "t3"}}, time.Hour)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	total, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected 7 expired, got %d", total)
	}
	if len(exp.calls) != 3 {
		t.Errorf("expected every tenant visited, got %v", exp.calls)
	}
}

func TestSweepListError(t *testing.T) {
	s, err := NewScheduler(&fakeExpirer{}, fakeTenants{err: errors.New("db down")}, time.Hour)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	if _, err := s.Sweep(context.Background()); err == nil {
		t.Error("expected error when tenants cannot be listed")
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	exp := &fakeExpirer{results: map[string]int{"t1": 1}}

	s, err := NewScheduler(exp, fakeTenants{tenants: []string{"t1"}}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for exp.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if exp.runs.Load() == 0 {
		t.Error("expected the sweep job to run")
	}
}

func TestNewSchedulerRejectsZeroInterval(t *testing.T) {
	if _, err := NewScheduler(&fakeExpirer{}, fakeTenants{}, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}
