package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/order-ledger/internal/port"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	locker := NewLocalLocker(time.Second)

	var inside atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "order-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlaps.Add(1)
			}
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("lock held by more than one caller %d times", overlaps.Load())
	}
	if len(locker.slots) != 0 {
		t.Errorf("expected idle keys to be dropped, %d left", len(locker.slots))
	}
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker(50 * time.Millisecond)

	release, err := locker.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer release()

	other, err := locker.Acquire(context.Background(), "b")
	if err != nil {
		t.Fatalf("acquire b while a is held: %v", err)
	}
	other()
}

func TestLocalLocker_Timeout(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)

	release, err := locker.Acquire(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_, err = locker.Acquire(context.Background(), "order-1")
	if !errors.Is(err, port.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got: %v", err)
	}

	release()
	release() // second call is a no-op

	again, err := locker.Acquire(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	locker := NewLocalLocker(time.Second)

	release, _ := locker.Acquire(context.Background(), "order-1")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locker.Acquire(ctx, "order-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
