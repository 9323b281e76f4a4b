package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// CreateLedger registers a new ledger for a user.
func (s *SQLiteStorage) CreateLedger(ctx context.Context, userID string, ledger *model.Ledger) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledgers (id, user_id, name, description) VALUES (?, ?, ?, ?)`,
		ledger.ID, userID, ledger.Name, ledger.Description)
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	return nil
}

// ListLedgers returns every ledger the user owns, name order.
func (s *SQLiteStorage) ListLedgers(ctx context.Context, userID string) ([]model.Ledger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description FROM ledgers WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ledgers []model.Ledger
	for rows.Next() {
		var l model.Ledger
		if err := rows.Scan(&l.ID, &l.Name, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

// GetLedger looks up one ledger by id.
func (s *SQLiteStorage) GetLedger(ctx context.Context, ledgerID string) (*model.Ledger, error) {
	var l model.Ledger
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM ledgers WHERE id = ?`, ledgerID).
		Scan(&l.ID, &l.Name, &l.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return &l, nil
}

// AddCategory records a category in the ledger's vocabulary. Re-adding an
// existing category is a no-op.
func (s *SQLiteStorage) AddCategory(ctx context.Context, ledgerID, category string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ledger_categories (ledger_id, category) VALUES (?, ?)`,
		ledgerID, category)
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}
	return nil
}

// ListCategories returns the ledger's known categories in combined form.
func (s *SQLiteStorage) ListCategories(ctx context.Context, ledgerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category FROM ledger_categories WHERE ledger_id = ? ORDER BY category`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
