package database

// migrations are applied in order; PRAGMA user_version records how many have
// run. Append new steps, never edit shipped ones.
var migrations = []string{
	// 1: key-value store and the installed rule table.
	`
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT    PRIMARY KEY,
    value      TEXT    NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);

CREATE TABLE IF NOT EXISTS dynamic_rules (
    id             INTEGER PRIMARY KEY,
    namespace      TEXT    NOT NULL,
    priority       INTEGER NOT NULL DEFAULT 1,
    action_type    TEXT    NOT NULL,
    redirect_path  TEXT    NOT NULL DEFAULT '',
    url_filter     TEXT    NOT NULL,
    resource_types TEXT    NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE INDEX IF NOT EXISTS idx_dynamic_rules_namespace
    ON dynamic_rules (namespace);
`,
	// 2: per-day focus totals.
	`
CREATE TABLE IF NOT EXISTS focus_history (
    day           TEXT    PRIMARY KEY,
    quick_seconds INTEGER NOT NULL DEFAULT 0,
    deep_seconds  INTEGER NOT NULL DEFAULT 0,
    sessions      INTEGER NOT NULL DEFAULT 0
);
`,
}
