package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteHost persists installed rules in the dynamic_rules table so they
// survive daemon restarts.
type SQLiteHost struct {
	db *sql.DB
}

// NewSQLiteHost returns a host over db. The schema must already exist.
func NewSQLiteHost(db *sql.DB) (*SQLiteHost, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLiteHost{db: db}, nil
}

func (h *SQLiteHost) DynamicRules(ctx context.Context) ([]Rule, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, priority, action_type, redirect_path, url_filter, resource_types
		FROM dynamic_rules
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dynamic_rules: %w", err)
	}
	defer rows.Close()

	out := make([]Rule, 0)
	for rows.Next() {
		var (
			rule          Rule
			redirectPath  string
			resourceTypes string
		)
		if err := rows.Scan(&rule.ID, &rule.Priority, &rule.Action.Type, &redirectPath, &rule.Condition.URLFilter, &resourceTypes); err != nil {
			return nil, fmt.Errorf("scan dynamic_rules: %w", err)
		}
		if redirectPath != "" {
			rule.Action.Redirect = &Redirect{ExtensionPath: redirectPath}
		}
		if err := json.Unmarshal([]byte(resourceTypes), &rule.Condition.ResourceTypes); err != nil {
			return nil, fmt.Errorf("decode resource types of rule %d: %w", rule.ID, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (h *SQLiteHost) UpdateDynamicRules(ctx context.Context, removeIDs []int, add []Rule) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range removeIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dynamic_rules WHERE id = ?`, id); err != nil {
			return fmt.Errorf("remove rule %d: %w", id, err)
		}
	}
	for _, rule := range add {
		resourceTypes, err := json.Marshal(rule.Condition.ResourceTypes)
		if err != nil {
			return err
		}
		redirectPath := ""
		if rule.Action.Redirect != nil {
			redirectPath = rule.Action.Redirect.ExtensionPath
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dynamic_rules (id, namespace, priority, action_type, redirect_path, url_filter, resource_types)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rule.ID, namespaceOf(rule.ID), rule.Priority, rule.Action.Type, redirectPath, rule.Condition.URLFilter, string(resourceTypes)); err != nil {
			return fmt.Errorf("insert rule %d: %w", rule.ID, err)
		}
	}
	return tx.Commit()
}

func namespaceOf(id int) string {
	for _, ns := range Namespaces() {
		if ns.Contains(id) {
			return ns.Name
		}
	}
	return ""
}
