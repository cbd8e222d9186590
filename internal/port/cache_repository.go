package port

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock wait timed out")

type Locker interface {
	// Acquire blocks until key is held or the wait expires; the returned func releases it
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type StockRepository interface {
	// IncrementStock adds delivered quantity to a product's stock
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

type RescoreQueue interface {
	// Defer records a vendor whose score recomputation must be retried
	Defer(ctx context.Context, vendorID string) error

	// Pop removes up to n deferred vendors and returns them
	Pop(ctx context.Context, n int) ([]string, error)
}
