package storage

import (
	"context"
	"fmt"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

const txnColumns = `ledger_id, date, direction, category, pay_channel, pay_text,
	merchant, memo, goods, account, order_id, amount`

// SaveTransactions commits confirmed transactions into a user's history. Each
// transaction must already carry its ledger id, and any suggested category or
// direction should have been folded into the row by the caller.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, userID string, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (user_id, `+txnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range txns {
		t := &txns[i]
		if _, err := stmt.ExecContext(ctx,
			userID, t.LedgerID, t.Date, string(t.Direction), t.Category, string(t.PayChannel),
			t.PayText, t.Merchant, t.Memo, t.Goods, t.Account, t.OrderID, t.Amount); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	return tx.Commit()
}

// TransactionsByLedger returns a ledger's committed history, newest first.
func (s *SQLiteStorage) TransactionsByLedger(ctx context.Context, ledgerID string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE ledger_id = ? ORDER BY date DESC, id DESC`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// TransactionsByUser returns all of a user's committed history, newest first.
func (s *SQLiteStorage) TransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// CountByMerchant counts a user's committed transactions for one merchant.
func (s *SQLiteStorage) CountByMerchant(ctx context.Context, userID, merchant string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ? AND merchant = ?`, userID, merchant).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransactions(rows rowScanner) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var direction, channel string
		if err := rows.Scan(&t.LedgerID, &t.Date, &direction, &t.Category, &channel, &t.PayText,
			&t.Merchant, &t.Memo, &t.Goods, &t.Account, &t.OrderID, &t.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Direction = model.FlowDirection(direction)
		t.PayChannel = model.PayChannel(channel)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
