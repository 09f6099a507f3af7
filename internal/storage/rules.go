package storage

import (
	"fmt"
	"strings"
)

// Rule is one monitoring rule: either a process-name match or a window
// title keyword match. (rule_type, value) pairs are unique.
type Rule struct {
	ID       int64  `json:"id"`
	RuleType string `json:"rule_type"` // "process" or "title"
	Value    string `json:"value"`
	Enabled  bool   `json:"enabled"`
}

// EnabledRules is the snapshot the watcher classifies samples against.
// Values are lowercased on the way out.
type EnabledRules struct {
	Processes []string
	Titles    []string
}

// Rules returns every rule, enabled or not, ordered for display.
func (s *Store) Rules() ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, rule_type, value, enabled FROM triggers_v2 ORDER BY rule_type, value`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: rules: %w", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		var (
			r       Rule
			enabled int
		)
		if err := rows.Scan(&r.ID, &r.RuleType, &r.Value, &enabled); err != nil {
			return nil, err
		}
		r.Enabled = enabled != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

// EnabledRulesSnapshot returns the enabled rules split by type.
// Rule mutations do not propagate to a running watcher automatically;
// the caller reloads the watcher after editing rules.
func (s *Store) EnabledRulesSnapshot() (EnabledRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT rule_type, value FROM triggers_v2 WHERE enabled = 1`,
	)
	if err != nil {
		return EnabledRules{}, fmt.Errorf("storage: enabled rules: %w", err)
	}
	defer rows.Close()

	var er EnabledRules
	for rows.Next() {
		var ruleType, value string
		if err := rows.Scan(&ruleType, &value); err != nil {
			return EnabledRules{}, err
		}
		switch ruleType {
		case "process":
			er.Processes = append(er.Processes, strings.ToLower(value))
		case "title":
			er.Titles = append(er.Titles, strings.ToLower(value))
		}
	}
	return er, rows.Err()
}

// AddRule inserts a new enabled rule; duplicates are silently ignored.
func (s *Store) AddRule(ruleType, value string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO triggers_v2 (rule_type, value, enabled) VALUES (?, ?, 1)`,
		ruleType, value,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: add rule: %w", err)
	}
	s.notify()
	return nil
}

// SetRuleEnabled toggles a rule on or off.
func (s *Store) SetRuleEnabled(id int64, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	s.mu.Lock()
	_, err := s.db.Exec(`UPDATE triggers_v2 SET enabled = ? WHERE id = ?`, v, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: toggle rule: %w", err)
	}
	s.notify()
	return nil
}

// DeleteRule removes a rule permanently.
func (s *Store) DeleteRule(id int64) error {
	s.mu.Lock()
	_, err := s.db.Exec(`DELETE FROM triggers_v2 WHERE id = ?`, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: delete rule: %w", err)
	}
	s.notify()
	return nil
}
