package settings

import (
	"context"
	"errors"
	"testing"

	"focus-blocks/internal/database"
	"focus-blocks/internal/models"
	"focus-blocks/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	return NewManager(st), st
}

func TestManagerGetMissingReturnsDefaults(t *testing.T) {
	manager, _ := newTestManager(t)
	current, err := manager.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current != models.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", current)
	}
}

func TestManagerSaveAndGetRoundTrip(t *testing.T) {
	manager, st := newTestManager(t)
	ctx := context.Background()
	input := models.Settings{
		EnableNotifications:  false,
		BypassRequiresHold:   false,
		BypassHoldDurationMS: 1500,
		ShowStats:            true,
		QuickFocusDuration:   15,
		DeepFocusDuration:    120,
		APITokenHash:         "hash",
	}
	if err := manager.Save(ctx, input); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := NewManager(st).Get(ctx)
	if err != nil {
		t.Fatalf("Get after reload failed: %v", err)
	}
	if reloaded != input {
		t.Fatalf("round trip mismatch: got %+v want %+v", reloaded, input)
	}
}

func TestManagerUpdateKeepsTokenHash(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	current := models.DefaultSettings()
	current.APITokenHash = "secret-hash"
	if err := manager.Save(ctx, current); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := models.DefaultSettings()
	next.EnableNotifications = false
	updated, err := manager.Update(ctx, next)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.APITokenHash != "secret-hash" || updated.EnableNotifications {
		t.Fatalf("unexpected updated settings %+v", updated)
	}
	if manager.NotificationsEnabled(ctx) {
		t.Fatalf("expected notifications disabled")
	}

	next.QuickFocusDuration = -1
	if _, err := manager.Update(ctx, next); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
