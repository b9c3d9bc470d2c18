package rules

import (
	"context"
	"testing"

	"focus-blocks/internal/database"
)

func newSQLiteHost(t *testing.T) *SQLiteHost {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	host, err := NewSQLiteHost(db)
	if err != nil {
		t.Fatalf("NewSQLiteHost: %v", err)
	}
	return host
}

func TestSQLiteHostRoundTrip(t *testing.T) {
	host := newSQLiteHost(t)
	engine := NewEngine(host, "/blocked", nil)
	ctx := context.Background()

	if err := engine.SetBlockRules(ctx, deepWork, true, Session); err != nil {
		t.Fatalf("SetBlockRules: %v", err)
	}
	installed, err := host.DynamicRules(ctx)
	if err != nil {
		t.Fatalf("DynamicRules: %v", err)
	}
	if len(installed) != len(deepWork) {
		t.Fatalf("expected %d rules, got %d", len(deepWork), len(installed))
	}
	first := installed[0]
	if first.Action.Redirect == nil || first.Condition.ResourceTypes[0] != "main_frame" {
		t.Fatalf("rule did not round trip: %+v", first)
	}

	if err := engine.SetBlockRules(ctx, deepWork, true, Session); err != nil {
		t.Fatalf("second SetBlockRules: %v", err)
	}
	if err := engine.SetBlockRules(ctx, nil, false, Session); err != nil {
		t.Fatalf("disable: %v", err)
	}
	installed, _ = host.DynamicRules(ctx)
	if len(installed) != 0 {
		t.Fatalf("expected empty host, got %d", len(installed))
	}
}

func TestSQLiteHostUpdateIsAtomic(t *testing.T) {
	host := newSQLiteHost(t)
	ctx := context.Background()
	seed := []Rule{NewBlockRule(10001, "*://*.a.com/*", "/blocked")}
	if err := host.UpdateDynamicRules(ctx, nil, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	conflicting := []Rule{
		NewBlockRule(10002, "*://*.b.com/*", "/blocked"),
		NewBlockRule(10002, "*://*.c.com/*", "/blocked"),
	}
	if err := host.UpdateDynamicRules(ctx, []int{10001}, conflicting); err == nil {
		t.Fatalf("expected duplicate id insert to fail")
	}
	installed, _ := host.DynamicRules(ctx)
	if len(installed) != 1 || installed[0].ID != 10001 {
		t.Fatalf("expected rollback to keep the seed rule, got %+v", installed)
	}
}
