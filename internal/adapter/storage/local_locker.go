package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/order-ledger/internal/port"
)

// LocalLocker serializes keys within one process. Use RedisLocker when running several instances.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.ref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.unref(key)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key)
		return nil, fmt.Errorf("acquire %s: %w", key, port.ErrLockTimeout)
	}
}

func (l *LocalLocker) ref(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
