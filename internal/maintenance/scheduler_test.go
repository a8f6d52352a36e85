package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	if err := s.Add(Job{
		Name:     "tick",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 job, got %d", s.Len())
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if runs.Load() == 0 {
		t.Fatalf("expected job to run at least once")
	}
}

func TestSchedulerSurvivesFailingJobs(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	if err := s.Add(Job{
		Name:     "fails",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				panic("boom")
			}
			return errors.New("still failing")
		},
	}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop(context.Background())

	if runs.Load() < 2 {
		t.Fatalf("expected job to keep running after a panic, ran %d times", runs.Load())
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := New(nil)
	err := s.Add(Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatalf("expected invalid schedule to fail")
	}
}
