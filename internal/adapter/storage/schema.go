package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Audit snapshots are stored as LONGTEXT rather than JSON so the canonical bytes come back unchanged.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                     VARCHAR(64)    NOT NULL PRIMARY KEY,
		product_id             VARCHAR(64)    NOT NULL,
		vendor_id              VARCHAR(64)    NOT NULL,
		vendor_catalog_item_id VARCHAR(64)    NULL,
		business_id            VARCHAR(64)    NOT NULL,
		created_by             VARCHAR(64)    NOT NULL,
		approved_by            VARCHAR(64)    NULL,
		quantity               INT            NOT NULL,
		total_value            DECIMAL(18,4)  NOT NULL,
		status                 VARCHAR(32)    NOT NULL,
		vendor_action          VARCHAR(32)    NULL,
		created_at             DATETIME(3)    NOT NULL,
		updated_at             DATETIME(3)    NOT NULL,
		confirmed_at           DATETIME(3)    NULL,
		dispatched_at          DATETIME(3)    NULL,
		in_transit_at          DATETIME(3)    NULL,
		delivered_at           DATETIME(3)    NULL,
		expected_delivery_date DATETIME(3)    NULL,
		actual_delivery_date   DATETIME(3)    NULL,
		rejection_reason       TEXT           NULL,
		delay_reason           TEXT           NULL,
		new_expected_date      DATETIME(3)    NULL,
		version                INT            NOT NULL DEFAULT 1,
		KEY idx_orders_vendor_status (vendor_id, status)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS audit_log_entries (
		id            VARCHAR(64)  NOT NULL PRIMARY KEY,
		order_id      VARCHAR(64)  NOT NULL,
		business_id   VARCHAR(64)  NOT NULL,
		action        VARCHAR(32)  NOT NULL,
		data_hash     CHAR(66)     NOT NULL,
		previous_hash CHAR(66)     NULL,
		status        VARCHAR(16)  NOT NULL,
		created_at    DATETIME(3)  NOT NULL,
		created_by    VARCHAR(64)  NULL,
		seq           INT          NOT NULL,
		snapshot      LONGTEXT     NOT NULL,
		UNIQUE KEY uq_audit_order_seq (order_id, seq)
	) ENGINE=InnoDB`,

	`CREATE TRIGGER IF NOT EXISTS audit_log_entries_no_update
		BEFORE UPDATE ON audit_log_entries FOR EACH ROW
		SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'audit entries are immutable'`,

	`CREATE TRIGGER IF NOT EXISTS audit_log_entries_no_delete
		BEFORE DELETE ON audit_log_entries FOR EACH ROW
		SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'audit entries are immutable'`,

	`CREATE TABLE IF NOT EXISTS vendors (
		id                    VARCHAR(64) NOT NULL PRIMARY KEY,
		reliability_score     DOUBLE      NOT NULL DEFAULT 100,
		total_orders          INT         NOT NULL DEFAULT 0,
		on_time_delivery_rate DOUBLE      NOT NULL DEFAULT 0,
		updated_at            DATETIME(3) NOT NULL
	) ENGINE=InnoDB`,
}

// Migrate creates the tables and immutability triggers if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
