package port

import (
	"context"
	"errors"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("optimistic lock conflict")
	ErrChainConflict   = errors.New("audit chain conflict")
	ErrImmutableEntry  = errors.New("audit entries are immutable")
)

type OrderRepository interface {
	// CreateOrder persists a new order at version 1
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order by ID, ErrNotFound if absent
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListVendorOrders returns the vendor's orders in any of the given statuses
	ListVendorOrders(ctx context.Context, vendorID string, statuses ...domain.OrderStatus) ([]domain.Order, error)

	// SaveTransition updates the order (version must equal expectedVersion) and appends its audit
	// entry in one transaction. Returns ErrVersionConflict or ErrChainConflict without committing.
	SaveTransition(ctx context.Context, order domain.Order, expectedVersion int, entry domain.AuditLogEntry) error
}

// AuditRepository is append-only: there is no update or delete path.
type AuditRepository interface {
	// Append inserts an entry, ErrChainConflict if its sequence slot is already taken
	Append(ctx context.Context, entry domain.AuditLogEntry) error

	// LastEntry returns the most recent entry of an order's chain, nil if the chain is empty
	LastEntry(ctx context.Context, orderID string) (*domain.AuditLogEntry, error)

	// ListEntries returns an order's entries in chain order
	ListEntries(ctx context.Context, orderID string) ([]domain.AuditLogEntry, error)

	// GetEntry retrieves one entry by ID, ErrNotFound if absent
	GetEntry(ctx context.Context, entryID string) (*domain.AuditLogEntry, error)

	// PreviousEntry returns the entry right before the given one in its chain, nil for the first
	PreviousEntry(ctx context.Context, entry domain.AuditLogEntry) (*domain.AuditLogEntry, error)
}

type VendorRepository interface {
	// GetVendor retrieves a vendor's scored fields, ErrNotFound if absent
	GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error)

	// SaveVendorScore replaces the score, total and metrics; never increments
	SaveVendorScore(ctx context.Context, vendor domain.Vendor) error
}
