package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

var (
	ErrChainIntegrity = errors.New("audit chain append kept conflicting, retry later")
	ErrEntryNotFound  = errors.New("audit entry not found")
)

const DefaultAppendAttempts = 3

// CommitFunc persists a fully built entry. Returning port.ErrChainConflict makes the ledger
// rebuild the entry against the new chain head and call it again.
type CommitFunc func(ctx context.Context, entry domain.AuditLogEntry) error

type AuditLedger struct {
	audit       port.AuditRepository
	maxAttempts int
	logger      *logger.Logger
	now         func() time.Time
}

func NewAuditLedger(audit port.AuditRepository, maxAttempts int, log *logger.Logger) *AuditLedger {
	if maxAttempts < 1 {
		maxAttempts = DefaultAppendAttempts
	}
	return &AuditLedger{
		audit:       audit,
		maxAttempts: maxAttempts,
		logger:      log.WithComponent("audit_ledger"),
		now:         time.Now,
	}
}

// BuildEntry hashes the order's snapshot onto the current head of its chain.
func (l *AuditLedger) BuildEntry(ctx context.Context, order domain.Order, action domain.AuditAction, actorID, businessID string) (domain.AuditLogEntry, error) {
	last, err := l.audit.LastEntry(ctx, order.ID)
	if err != nil {
		return domain.AuditLogEntry{}, fmt.Errorf("read chain head: %w", err)
	}

	snapshot := domain.SnapshotOf(order)
	canonical, err := snapshot.Canonical()
	if err != nil {
		return domain.AuditLogEntry{}, err
	}

	ts := l.now().UTC().Truncate(time.Millisecond)
	seq := 1
	var prevHash *string
	if last != nil {
		h := last.DataHash
		prevHash = &h
		seq = last.Sequence + 1
		if ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}
	}

	entry := domain.AuditLogEntry{
		ID:           uuid.NewString(),
		OrderID:      order.ID,
		BusinessID:   businessID,
		Action:       action,
		DataHash:     domain.ComputeHash(canonical, prevHash),
		PreviousHash: prevHash,
		Status:       domain.EntryStatusVerified,
		Timestamp:    ts,
		Sequence:     seq,
		Snapshot:     snapshot,
	}
	if actorID != "" {
		a := actorID
		entry.CreatedBy = &a
	}
	return entry, nil
}

// Append builds the next entry for order and hands it to commit, retrying on chain conflicts
// up to the configured number of attempts.
func (l *AuditLedger) Append(ctx context.Context, order domain.Order, action domain.AuditAction, actorID, businessID string, commit CommitFunc) (domain.AuditLogEntry, error) {
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		entry, err := l.BuildEntry(ctx, order, action, actorID, businessID)
		if err != nil {
			return domain.AuditLogEntry{}, err
		}

		err = commit(ctx, entry)
		if err == nil {
			l.logger.Debug("Audit entry appended",
				"order_id", order.ID,
				"entry_id", entry.ID,
				"action", action,
				"sequence", entry.Sequence)
			return entry, nil
		}
		if !errors.Is(err, port.ErrChainConflict) {
			return domain.AuditLogEntry{}, err
		}

		l.logger.Warn("Audit chain conflict, rebuilding entry",
			"order_id", order.ID,
			"sequence", entry.Sequence,
			"attempt", attempt)
	}

	l.logger.Error("Audit append retries exhausted", "order_id", order.ID, "attempts", l.maxAttempts)
	return domain.AuditLogEntry{}, fmt.Errorf("order %s: %w", order.ID, ErrChainIntegrity)
}

// RecordAuditEntry appends a standalone entry for order.
func (l *AuditLedger) RecordAuditEntry(ctx context.Context, order domain.Order, action domain.AuditAction, actorID, businessID string) (domain.AuditLogEntry, error) {
	return l.Append(ctx, order, action, actorID, businessID, l.audit.Append)
}

// VerifyOrderChain recomputes every entry of an order's chain.
func (l *AuditLedger) VerifyOrderChain(ctx context.Context, orderID string) (domain.ChainVerification, error) {
	entries, err := l.audit.ListEntries(ctx, orderID)
	if err != nil {
		return domain.ChainVerification{}, fmt.Errorf("load chain: %w", err)
	}

	result := domain.VerifyChain(orderID, entries)
	if !result.Valid {
		l.logger.Warn("Audit chain verification failed",
			"order_id", orderID,
			"broken_at", result.BrokenAt,
			"entries", result.EntriesChecked)
	}
	return result, nil
}

// VerifySingleEntry checks one entry against the entry immediately before it.
func (l *AuditLedger) VerifySingleEntry(ctx context.Context, entryID string) (domain.EntryVerification, error) {
	entry, err := l.audit.GetEntry(ctx, entryID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.EntryVerification{}, ErrEntryNotFound
	}
	if err != nil {
		return domain.EntryVerification{}, fmt.Errorf("load entry: %w", err)
	}

	prev, err := l.audit.PreviousEntry(ctx, *entry)
	if err != nil {
		return domain.EntryVerification{}, fmt.Errorf("load previous entry: %w", err)
	}
	return domain.VerifyEntry(*entry, prev), nil
}

// ListEntries returns the read-only projection of an order's chain.
func (l *AuditLedger) ListEntries(ctx context.Context, orderID string) ([]domain.AuditEntryView, error) {
	entries, err := l.audit.ListEntries(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}
	views := make([]domain.AuditEntryView, len(entries))
	for i, e := range entries {
		views[i] = e.View()
	}
	return views, nil
}
