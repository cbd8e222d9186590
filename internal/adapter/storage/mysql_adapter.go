package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrSignal         = 1644 // raised by SIGNAL in the audit triggers
)

// MySQLAdapter implements the order, audit and vendor repositories on one database.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const orderColumns = `id, product_id, vendor_id, vendor_catalog_item_id, business_id, created_by, approved_by,
	quantity, total_value, status, vendor_action, created_at, updated_at, confirmed_at, dispatched_at,
	in_transit_at, delivered_at, expected_delivery_date, actual_delivery_date, rejection_reason,
	delay_reason, new_expected_date, version`

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.ProductID, order.VendorID, nullString(order.VendorCatalogItemID),
		order.BusinessID, order.CreatedBy, nullString(order.ApprovedBy),
		order.Quantity, order.TotalValue, string(order.Status), nullVendorAction(order.VendorAction),
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(), nullTime(order.ConfirmedAt), nullTime(order.DispatchedAt),
		nullTime(order.InTransitAt), nullTime(order.DeliveredAt), nullTime(order.ExpectedDeliveryDate),
		nullTime(order.ActualDeliveryDate), nullString(order.RejectionReason), nullString(order.DelayReason),
		nullTime(order.NewExpectedDate), order.Version,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLAdapter) ListVendorOrders(ctx context.Context, vendorID string, statuses ...domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE vendor_id = ?`
	args := []any{vendorID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY id`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendor orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// SaveTransition writes the new order state and its audit entry in one transaction.
func (m *MySQLAdapter) SaveTransition(ctx context.Context, order domain.Order, expectedVersion int, entry domain.AuditLogEntry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET approved_by = ?, status = ?, vendor_action = ?, updated_at = ?, confirmed_at = ?,
			dispatched_at = ?, in_transit_at = ?, delivered_at = ?, actual_delivery_date = ?,
			rejection_reason = ?, delay_reason = ?, new_expected_date = ?, version = ?
		WHERE id = ? AND version = ?`,
		nullString(order.ApprovedBy), string(order.Status), nullVendorAction(order.VendorAction),
		order.UpdatedAt.UTC(), nullTime(order.ConfirmedAt), nullTime(order.DispatchedAt),
		nullTime(order.InTransitAt), nullTime(order.DeliveredAt), nullTime(order.ActualDeliveryDate),
		nullString(order.RejectionReason), nullString(order.DelayReason), nullTime(order.NewExpectedDate),
		order.Version, order.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}

	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                                       domain.Order
		catalogItem, approvedBy, vendorAction, rejection, delay sql.NullString
		confirmed, dispatched, inTransit, delivered             sql.NullTime
		expected, actual, newExpected                           sql.NullTime
		status                                                  string
	)
	err := row.Scan(
		&o.ID, &o.ProductID, &o.VendorID, &catalogItem, &o.BusinessID, &o.CreatedBy, &approvedBy,
		&o.Quantity, &o.TotalValue, &status, &vendorAction, &o.CreatedAt, &o.UpdatedAt, &confirmed, &dispatched,
		&inTransit, &delivered, &expected, &actual, &rejection,
		&delay, &newExpected, &o.Version,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.VendorCatalogItemID = stringPtr(catalogItem)
	o.ApprovedBy = stringPtr(approvedBy)
	o.RejectionReason = stringPtr(rejection)
	o.DelayReason = stringPtr(delay)
	if vendorAction.Valid {
		a := domain.VendorAction(vendorAction.String)
		o.VendorAction = &a
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.ConfirmedAt = timePtr(confirmed)
	o.DispatchedAt = timePtr(dispatched)
	o.InTransitAt = timePtr(inTransit)
	o.DeliveredAt = timePtr(delivered)
	o.ExpectedDeliveryDate = timePtr(expected)
	o.ActualDeliveryDate = timePtr(actual)
	o.NewExpectedDate = timePtr(newExpected)
	return &o, nil
}

// mapMySQLError translates driver errors the repositories care about into port errors.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlErrDuplicateEntry:
		return port.ErrChainConflict
	case mysqlErrSignal:
		return port.ErrImmutableEntry
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullVendorAction(a *domain.VendorAction) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*a), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
