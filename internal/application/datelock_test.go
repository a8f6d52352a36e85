package application

import (
	"sync"
	"testing"
	"time"
)

func TestDateLocksSerializeSameDate(t *testing.T) {
	t.Parallel()

	locks := newDateLocks()
	release := locks.lock("2024-06-10")

	acquired := make(chan struct{})
	go func() {
		r := locks.lock("2024-06-10")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatalf("expected second holder to wait")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("expected second holder to acquire after release")
	}
}

func TestDateLocksIndependentDates(t *testing.T) {
	t.Parallel()

	locks := newDateLocks()
	release := locks.lock("2024-06-10")
	defer release()

	done := make(chan struct{})
	go func() {
		locks.lock("2024-06-11")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected other dates not to block")
	}
}

func TestDateLocksReleaseEntries(t *testing.T) {
	t.Parallel()

	locks := newDateLocks()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dates := []string{"2024-06-10", "2024-06-11"}
			if i%2 == 0 {
				dates = []string{"2024-06-11", "2024-06-10", "2024-06-11"}
			}
			locks.lock(dates...)()
		}(i)
	}
	wg.Wait()

	if got := locks.size(); got != 0 {
		t.Fatalf("expected no lock entries after release, got %d", got)
	}
}
