// Package backup exports and restores the user configuration: block lists,
// schedules and settings.
package backup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"focus-blocks/internal/models"
	"focus-blocks/internal/schedule"
)

// Target is the configuration surface a backup reads and replaces.
// *coordinator.Coordinator satisfies it.
type Target interface {
	BlockLists(ctx context.Context) (models.BlockLists, error)
	UpdateBlockLists(ctx context.Context, lists models.BlockLists) (models.BlockLists, error)
	Schedules(ctx context.Context) ([]schedule.View, error)
	UpdateSchedules(ctx context.Context, schedules []models.Schedule) ([]models.Schedule, error)
	Settings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, next models.Settings) (models.Settings, error)
}

// Manager exports/imports the full user configuration.
type Manager struct {
	target Target

	now func() time.Time
	mu  sync.Mutex
}

// NewManager creates a backup manager over target.
func NewManager(target Target) (*Manager, error) {
	if target == nil {
		return nil, fmt.Errorf("backup target is required")
	}
	return &Manager{target: target, now: time.Now}, nil
}

// Export returns a snapshot of the current configuration.
func (m *Manager) Export(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exportLocked(ctx)
}

// Import validates and restores a snapshot. On restore failure it attempts
// best-effort rollback to the pre-import state.
func (m *Manager) Import(ctx context.Context, snapshot Snapshot) (ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized, err := normalizeSnapshot(snapshot)
	if err != nil {
		return ImportResult{}, err
	}

	current, err := m.exportLocked(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	result, importErr := m.applyLocked(ctx, normalized)
	if importErr == nil {
		return result, nil
	}
	if _, rollbackErr := m.applyLocked(ctx, current); rollbackErr != nil {
		return result, fmt.Errorf("restore failed: %v; rollback failed: %w", importErr, rollbackErr)
	}
	return result, fmt.Errorf("restore failed and was rolled back: %w", importErr)
}

func (m *Manager) exportLocked(ctx context.Context) (Snapshot, error) {
	settingsValue, err := m.target.Settings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	lists, err := m.target.BlockLists(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	views, err := m.target.Schedules(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	schedules := make([]models.Schedule, 0, len(views))
	for _, view := range views {
		schedules = append(schedules, view.Schedule)
	}
	return Snapshot{
		Format:     FormatName,
		Version:    CurrentVersion,
		ExportedAt: m.now().Unix(),
		Settings:   settingsValue.Public(),
		Lists:      lists,
		Schedules:  schedules,
	}, nil
}

// applyLocked replaces lists before schedules so restored schedules never
// reference a list that is not there yet.
func (m *Manager) applyLocked(ctx context.Context, snapshot Snapshot) (ImportResult, error) {
	warnings := make([]string, 0)
	for _, s := range snapshot.Schedules {
		if _, ok := snapshot.Lists[s.List]; !ok {
			warnings = append(warnings, fmt.Sprintf("schedule %q references unknown list %q", s.Name, s.List))
		}
	}

	if _, err := m.target.UpdateBlockLists(ctx, snapshot.Lists); err != nil {
		return ImportResult{Warnings: warnings}, fmt.Errorf("restore lists: %w", err)
	}
	if _, err := m.target.UpdateSchedules(ctx, snapshot.Schedules); err != nil {
		return ImportResult{Warnings: warnings}, fmt.Errorf("restore schedules: %w", err)
	}
	if _, err := m.target.SaveSettings(ctx, snapshot.Settings); err != nil {
		return ImportResult{Warnings: warnings}, fmt.Errorf("restore settings: %w", err)
	}
	return ImportResult{Warnings: warnings}, nil
}

func normalizeSnapshot(raw Snapshot) (Snapshot, error) {
	snapshot := raw
	if strings.TrimSpace(snapshot.Format) == "" {
		snapshot.Format = FormatName
	}
	if snapshot.Format != FormatName {
		return Snapshot{}, fmt.Errorf("%w: unsupported backup format %q", ErrInvalidSnapshot, snapshot.Format)
	}
	if snapshot.Version <= 0 {
		snapshot.Version = CurrentVersion
	}
	if snapshot.Version != CurrentVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported backup version %d", ErrInvalidSnapshot, snapshot.Version)
	}
	if snapshot.Lists == nil {
		return Snapshot{}, fmt.Errorf("%w: lists are required", ErrInvalidSnapshot)
	}

	lists, err := models.NormalizeBlockLists(snapshot.Lists)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	snapshot.Lists = lists

	if snapshot.Schedules == nil {
		snapshot.Schedules = []models.Schedule{}
	}
	schedules, err := models.NormalizeSchedules(snapshot.Schedules)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	sort.SliceStable(schedules, func(i, j int) bool { return schedules[i].Name < schedules[j].Name })
	snapshot.Schedules = schedules

	if snapshot.Settings.QuickFocusDuration < 0 || snapshot.Settings.DeepFocusDuration < 0 {
		return Snapshot{}, fmt.Errorf("%w: durations must not be negative", ErrInvalidSnapshot)
	}
	snapshot.Settings.APITokenHash = ""
	return snapshot, nil
}
