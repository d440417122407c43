package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for the sqlite driver used in
// local runs and tests. Arrays and JSON are stored as text.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'reserved', 'sold')),
		order_id TEXT,
		validity_checked BOOLEAN NOT NULL DEFAULT 0,
		validity_score REAL,
		validation_date DATETIME,
		source TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT,
		batch_key TEXT,
		added_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_product_status_id ON inventory (product_id, status, id)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_order_id ON inventory (order_id)`,
	`CREATE TABLE IF NOT EXISTS validity_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES inventory(id),
		check_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		result TEXT NOT NULL,
		score REAL NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		details TEXT,
		execution_time_ms INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_stats (
		product_id TEXT PRIMARY KEY,
		total_items INTEGER NOT NULL DEFAULT 0,
		available_items INTEGER NOT NULL DEFAULT 0,
		reserved_items INTEGER NOT NULL DEFAULT 0,
		sold_items INTEGER NOT NULL DEFAULT 0,
		valid_items INTEGER NOT NULL DEFAULT 0,
		invalid_items INTEGER NOT NULL DEFAULT 0,
		unchecked_items INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT UNIQUE,
		event_type TEXT NOT NULL,
		job_id TEXT,
		payload TEXT NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT 0,
		processing_result TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS ingested_batches (
		batch_key TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		items_added INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS product_profiles (
		product_id TEXT PRIMARY KEY,
		collection_config_id TEXT,
		validation_config_id TEXT,
		source_path TEXT NOT NULL DEFAULT '',
		restock_baseline INTEGER,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// ApplySQLiteSchema creates every table on a sqlite connection. It is
// idempotent.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
