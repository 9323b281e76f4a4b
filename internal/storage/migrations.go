package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version the application expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS ledgers (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ledgers_user ON ledgers(user_id)`,

				`CREATE TABLE IF NOT EXISTS ledger_categories (
					ledger_id TEXT NOT NULL,
					category TEXT NOT NULL,
					PRIMARY KEY (ledger_id, category),
					FOREIGN KEY (ledger_id) REFERENCES ledgers(id)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					ledger_id TEXT NOT NULL,
					date TEXT NOT NULL,
					direction TEXT NOT NULL,
					category TEXT DEFAULT '',
					pay_channel TEXT DEFAULT '',
					pay_text TEXT DEFAULT '',
					merchant TEXT DEFAULT '',
					memo TEXT DEFAULT '',
					goods TEXT DEFAULT '',
					account TEXT DEFAULT '',
					order_id TEXT DEFAULT '',
					amount REAL NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_ledger ON transactions(ledger_id)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(user_id, merchant)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					kind TEXT NOT NULL,
					ledger_id TEXT NOT NULL,
					category TEXT DEFAULT '',
					direction TEXT DEFAULT '',
					provenance TEXT NOT NULL,
					condition TEXT NOT NULL,
					priority INTEGER DEFAULT 0,
					hit_count INTEGER DEFAULT 0,
					enabled INTEGER DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_user_enabled ON rules(user_id, enabled)`,

				`CREATE TABLE IF NOT EXISTS profiles (
					ledger_id TEXT PRIMARY KEY,
					payload TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Pipeline progress store",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS progress (
					token TEXT PRIMARY KEY,
					payload TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`)
			if err != nil {
				return fmt.Errorf("failed to create progress table: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
