package stats

import (
	"context"
	"testing"
	"time"

	"focus-blocks/internal/database"
	"focus-blocks/internal/models"
)

func newTestRecorder(t *testing.T, historyLength int) *Recorder {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	recorder, err := NewRecorder(db, time.UTC, historyLength)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return recorder
}

func session(start time.Time, minutes int, mode models.Mode) models.Session {
	return models.Session{
		Active:          true,
		StartedAt:       models.Millis(start),
		ActiveUntil:     models.Millis(start.Add(time.Duration(minutes) * time.Minute)),
		Mode:            mode,
		DurationMinutes: minutes,
	}
}

func TestRecordCapsAtDeadlineAndSplitsByMode(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t, 0)
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	// Expiry fired late: only the planned 25 minutes count.
	if err := r.Record(ctx, session(start, 25, models.ModeQuick), start.Add(40*time.Minute)); err != nil {
		t.Fatalf("Record quick: %v", err)
	}
	// Ended early by the user.
	deepStart := start.Add(time.Hour)
	if err := r.Record(ctx, session(deepStart, 120, models.ModeDeep), deepStart.Add(50*time.Minute)); err != nil {
		t.Fatalf("Record deep: %v", err)
	}

	snap, err := r.Snapshot(ctx, start.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TodayMinutes != 75 || snap.TotalMinutes != 75 || snap.Sessions != 2 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
	if len(snap.History) != 1 {
		t.Fatalf("expected one day of history, got %+v", snap.History)
	}
	day := snap.History[0]
	if day.Date != "2024-03-04" || day.QuickMinutes != 25 || day.DeepMinutes != 50 || day.Sessions != 2 {
		t.Fatalf("unexpected day: %+v", day)
	}
}

func TestRecordSplitsAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t, 0)
	start := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	if err := r.Record(ctx, session(start, 90, models.ModeDeep), start.Add(90*time.Minute)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	snap, err := r.Snapshot(ctx, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.History) != 2 {
		t.Fatalf("expected two days, got %+v", snap.History)
	}
	if snap.History[0].DeepMinutes != 30 || snap.History[0].Sessions != 1 {
		t.Fatalf("unexpected first day: %+v", snap.History[0])
	}
	if snap.History[1].DeepMinutes != 60 || snap.History[1].Sessions != 0 {
		t.Fatalf("unexpected second day: %+v", snap.History[1])
	}
	if snap.TodayMinutes != 60 || snap.TotalMinutes != 90 || snap.Sessions != 1 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
}

func TestRecordIgnoresEmptySessions(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t, 0)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if err := r.Record(ctx, models.Session{}, now); err != nil {
		t.Fatalf("Record zero session: %v", err)
	}
	if err := r.Record(ctx, session(now, 25, models.ModeQuick), now.Add(-time.Minute)); err != nil {
		t.Fatalf("Record ended before start: %v", err)
	}
	snap, err := r.Snapshot(ctx, now)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TotalMinutes != 0 || snap.Sessions != 0 || len(snap.History) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSnapshotKeepsMostRecentDays(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t, 3)
	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		start := first.AddDate(0, 0, i)
		if err := r.Record(ctx, session(start, 10*(i+1), models.ModeQuick), start.Add(time.Hour)); err != nil {
			t.Fatalf("Record day %d: %v", i, err)
		}
	}
	snap, err := r.Snapshot(ctx, first.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.History) != 3 || snap.History[0].Date != "2024-03-03" || snap.History[2].Date != "2024-03-05" {
		t.Fatalf("unexpected history window: %+v", snap.History)
	}
	if snap.TotalMinutes != 150 || snap.TodayMinutes != 50 || snap.Sessions != 5 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
}
