package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// GetProfile loads a ledger's statistical fingerprint.
func (s *SQLiteStorage) GetProfile(ctx context.Context, ledgerID string) (*model.LedgerProfile, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM profiles WHERE ledger_id = ?`, ledgerID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var p model.LedgerProfile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile for ledger %s: %w", ledgerID, err)
	}
	return &p, nil
}

// SaveProfile upserts a ledger's fingerprint.
func (s *SQLiteStorage) SaveProfile(ctx context.Context, profile *model.LedgerProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (ledger_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(ledger_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		profile.LedgerID, string(payload), profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
