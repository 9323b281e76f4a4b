package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

const ruleColumns = `id, user_id, name, kind, ledger_id, category, direction,
	provenance, condition, priority, hit_count, enabled, created_at, updated_at`

// EnabledRules returns the user's enabled rules in creation order, which is
// the declaration order the engine's tie-breaking relies on.
func (s *SQLiteStorage) EnabledRules(ctx context.Context, userID string) ([]model.MatchingRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE user_id = ? AND enabled = 1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.MatchingRule
	for rows.Next() {
		var r model.MatchingRule
		var kind, direction, provenance, condition string
		var enabled int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &kind, &r.LedgerID, &r.Category, &direction,
			&provenance, &condition, &r.Priority, &r.HitCount, &enabled, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Kind = model.RuleKind(kind)
		r.Direction = model.FlowDirection(direction)
		r.Provenance = model.RuleProvenance(provenance)
		r.Enabled = enabled != 0
		if err := json.Unmarshal([]byte(condition), &r.Condition); err != nil {
			return nil, fmt.Errorf("failed to decode rule %d condition: %w", r.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CountRules counts all of a user's rules, enabled or not.
func (s *SQLiteStorage) CountRules(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rules WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

// CreateRule persists a new rule and fills in its assigned id.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.MatchingRule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode rule condition: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (user_id, name, kind, ledger_id, category, direction, provenance,
			condition, priority, hit_count, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.Name, string(rule.Kind), rule.LedgerID, rule.Category,
		string(rule.Direction), string(rule.Provenance), string(condition),
		rule.Priority, rule.HitCount, boolToInt(rule.Enabled), now, now)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read rule id: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// UpdateRule rewrites an existing rule in place.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.MatchingRule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode rule condition: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE rules SET name = ?, kind = ?, ledger_id = ?, category = ?, direction = ?,
			provenance = ?, condition = ?, priority = ?, hit_count = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		rule.Name, string(rule.Kind), rule.LedgerID, rule.Category, string(rule.Direction),
		string(rule.Provenance), string(condition), rule.Priority, rule.HitCount,
		boolToInt(rule.Enabled), now, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	rule.UpdatedAt = now
	return nil
}

// IncrementHitCount bumps a rule's hit counter after a successful match.
func (s *SQLiteStorage) IncrementHitCount(ctx context.Context, ruleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rules SET hit_count = hit_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to increment hit count: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
