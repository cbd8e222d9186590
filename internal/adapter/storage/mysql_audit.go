package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

const auditColumns = `id, order_id, business_id, action, data_hash, previous_hash, status, created_at,
	created_by, seq, snapshot`

// Append inserts a standalone entry. The (order_id, seq) key rejects a second writer for the same slot.
func (m *MySQLAdapter) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	return insertEntry(ctx, m.db, entry)
}

func insertEntry(ctx context.Context, exec execer, entry domain.AuditLogEntry) error {
	snapshot, err := entry.Snapshot.Canonical()
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_log_entries (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, entry.BusinessID, string(entry.Action), entry.DataHash,
		nullString(entry.PreviousHash), string(entry.Status), entry.Timestamp.UTC(),
		nullString(entry.CreatedBy), entry.Sequence, string(snapshot),
	)
	if err != nil {
		if mapped := mapMySQLError(err); errors.Is(mapped, port.ErrChainConflict) {
			return mapped
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) LastEntry(ctx context.Context, orderID string) (*domain.AuditLogEntry, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+` FROM audit_log_entries
		WHERE order_id = ? ORDER BY seq DESC LIMIT 1`, orderID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query chain head: %w", err)
	}
	return e, nil
}

func (m *MySQLAdapter) ListEntries(ctx context.Context, orderID string) ([]domain.AuditLogEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+auditColumns+` FROM audit_log_entries
		WHERE order_id = ? ORDER BY seq`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (m *MySQLAdapter) GetEntry(ctx context.Context, entryID string) (*domain.AuditLogEntry, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_log_entries WHERE id = ?`, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query audit entry: %w", err)
	}
	return e, nil
}

func (m *MySQLAdapter) PreviousEntry(ctx context.Context, entry domain.AuditLogEntry) (*domain.AuditLogEntry, error) {
	if entry.Sequence <= 1 {
		return nil, nil
	}
	row := m.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+` FROM audit_log_entries
		WHERE order_id = ? AND seq = ?`, entry.OrderID, entry.Sequence-1)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query previous entry: %w", err)
	}
	return e, nil
}

func scanEntry(row rowScanner) (*domain.AuditLogEntry, error) {
	var (
		e                       domain.AuditLogEntry
		action, status, payload string
		prevHash, createdBy     sql.NullString
	)
	err := row.Scan(&e.ID, &e.OrderID, &e.BusinessID, &action, &e.DataHash, &prevHash, &status,
		&e.Timestamp, &createdBy, &e.Sequence, &payload)
	if err != nil {
		return nil, err
	}

	snapshot, err := domain.ParseSnapshot([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}

	e.Action = domain.AuditAction(action)
	e.Status = domain.EntryStatus(status)
	e.PreviousHash = stringPtr(prevHash)
	e.CreatedBy = stringPtr(createdBy)
	e.Timestamp = e.Timestamp.UTC()
	e.Snapshot = snapshot
	return &e, nil
}
