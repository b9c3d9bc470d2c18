package store

import (
	"context"
	"testing"

	"focus-blocks/internal/database"
	"focus-blocks/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestKVGetSetRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kv := s.kv

	if err := kv.Set(ctx, map[string]any{"a": 1, "b": map[string]string{"x": "y"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	values, err := kv.Get(ctx, "a", "b", "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(values["a"]) != "1" || string(values["b"]) != `{"x":"y"}` {
		t.Fatalf("unexpected values %v", values)
	}
	if _, ok := values["missing"]; ok {
		t.Fatalf("missing key must be absent")
	}

	if err := kv.Set(ctx, map[string]any{"a": 2}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	values, _ = kv.Get(ctx, "a")
	if string(values["a"]) != "2" {
		t.Fatalf("expected last write to win, got %s", values["a"])
	}

	if err := kv.Remove(ctx, "a", "missing"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	values, _ = kv.Get(ctx, "a", "b")
	if _, ok := values["a"]; ok || len(values) != 1 {
		t.Fatalf("expected only b after remove, got %v", values)
	}
}

func TestInitializeSeedsDefaultsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	lists, err := s.BlockLists(ctx)
	if err != nil {
		t.Fatalf("BlockLists: %v", err)
	}
	if len(lists) != 3 || len(lists["deep_work"]) != 7 {
		t.Fatalf("unexpected seeded lists %v", lists)
	}

	if err := s.SaveBlockLists(ctx, models.BlockLists{"mine": {"*://*.example.com/*"}}); err != nil {
		t.Fatalf("SaveBlockLists: %v", err)
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	lists, _ = s.BlockLists(ctx)
	if _, ok := lists["mine"]; !ok || len(lists) != 1 {
		t.Fatalf("Initialize must not overwrite user lists, got %v", lists)
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !settings.EnableNotifications || settings.QuickFocusDuration != 25 {
		t.Fatalf("unexpected seeded settings %+v", settings)
	}
}

func TestSessionRoundTripAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, err := s.Session(ctx)
	if err != nil || session.Active {
		t.Fatalf("expected idle zero session, got %+v err=%v", session, err)
	}
	want := models.Session{Active: true, ActiveUntil: 1234, Mode: models.ModeDeep, BlockList: "deep_work", StartedAt: 1000, DurationMinutes: 120}
	if err := s.SaveSession(ctx, want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, _ := s.Session(ctx)
	if got != want {
		t.Fatalf("session = %+v, want %+v", got, want)
	}
	if err := s.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	got, _ = s.Session(ctx)
	if got != (models.Session{}) {
		t.Fatalf("expected cleared session, got %+v", got)
	}
}

func TestBypassLogKeepsNewestEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < models.MaxBypassLogEntries+5; i++ {
		if err := s.AppendBypassLog(ctx, models.BypassLogEntry{Timestamp: int64(i), Domain: "example.com"}); err != nil {
			t.Fatalf("AppendBypassLog: %v", err)
		}
	}
	entries, err := s.BypassLog(ctx)
	if err != nil {
		t.Fatalf("BypassLog: %v", err)
	}
	if len(entries) != models.MaxBypassLogEntries {
		t.Fatalf("expected %d entries, got %d", models.MaxBypassLogEntries, len(entries))
	}
	if entries[0].Timestamp != 5 {
		t.Fatalf("expected oldest entries to be dropped, first=%d", entries[0].Timestamp)
	}
}

func TestBypassesAndActiveSchedulesDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	table, err := s.Bypasses(ctx)
	if err != nil || table == nil || len(table) != 0 {
		t.Fatalf("expected empty table, got %v err=%v", table, err)
	}
	if err := s.SaveBypasses(ctx, models.Bypasses{"youtube.com": 99}); err != nil {
		t.Fatalf("SaveBypasses: %v", err)
	}
	table, _ = s.Bypasses(ctx)
	if table["youtube.com"] != 99 {
		t.Fatalf("unexpected table %v", table)
	}

	if err := s.SaveActiveSchedules(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("SaveActiveSchedules: %v", err)
	}
	ids, _ := s.ActiveSchedules(ctx)
	if len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("unexpected active schedules %v", ids)
	}
}
