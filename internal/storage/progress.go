package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Set writes a progress snapshot under the caller's token.
func (s *SQLiteStorage) Set(ctx context.Context, token string, progress model.StageProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (token, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(token) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		token, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Get reads the latest progress snapshot for a token.
func (s *SQLiteStorage) Get(ctx context.Context, token string) (*model.StageProgress, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM progress WHERE token = ?`, token).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	var p model.StageProgress
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress for token %s: %w", token, err)
	}
	return &p, nil
}

// Clear removes a token's progress entry once a run finishes.
func (s *SQLiteStorage) Clear(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}
