package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

func (m *MySQLAdapter) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	var v domain.Vendor
	err := m.db.QueryRowContext(ctx, `
		SELECT id, reliability_score, total_orders, on_time_delivery_rate, updated_at
		FROM vendors WHERE id = ?`, vendorID,
	).Scan(&v.ID, &v.ReliabilityScore, &v.TotalOrders, &v.PerformanceMetrics.OnTimeDeliveryRate, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query vendor: %w", err)
	}
	v.UpdatedAt = v.UpdatedAt.UTC()
	return &v, nil
}

// SaveVendorScore replaces the scored fields, inserting the vendor row if needed.
func (m *MySQLAdapter) SaveVendorScore(ctx context.Context, v domain.Vendor) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO vendors (id, reliability_score, total_orders, on_time_delivery_rate, updated_at)
		VALUES (?, ?, ?, ?, ?) AS new
		ON DUPLICATE KEY UPDATE
			reliability_score = new.reliability_score,
			total_orders = new.total_orders,
			on_time_delivery_rate = new.on_time_delivery_rate,
			updated_at = new.updated_at`,
		v.ID, v.ReliabilityScore, v.TotalOrders, v.PerformanceMetrics.OnTimeDeliveryRate, v.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert vendor score: %w", err)
	}
	return nil
}
