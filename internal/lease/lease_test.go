package lease

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLeaseMutualExclusion(t *testing.T) {
	l := NewMemoryLease(time.Minute)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = l.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second acquire on held lease must fail")
	}

	// A different document is independent.
	ok, err = l.Acquire(ctx, 2)
	if err != nil || !ok {
		t.Errorf("acquire other doc: ok=%v err=%v", ok, err)
	}

	if err := l.Release(ctx, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = l.Acquire(ctx, 1)
	if err != nil || !ok {
		t.Errorf("re-acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestMemoryLeaseExpiry(t *testing.T) {
	l := NewMemoryLease(10 * time.Millisecond)
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, 1)
	if !ok {
		t.Fatal("first acquire failed")
	}

	time.Sleep(20 * time.Millisecond)

	ok, err := l.Acquire(ctx, 1)
	if err != nil || !ok {
		t.Errorf("expired lease must be re-acquirable: ok=%v err=%v", ok, err)
	}
}

func TestMemoryLeaseConcurrentAcquire(t *testing.T) {
	l := NewMemoryLease(time.Minute)
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, 77)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("exactly one acquirer must win, got %d", winners)
	}
}

func TestMemoryLeaseReleaseIdempotent(t *testing.T) {
	l := NewMemoryLease(time.Minute)
	ctx := context.Background()

	if err := l.Release(ctx, 5); err != nil {
		t.Errorf("release of unheld lease: %v", err)
	}
}
