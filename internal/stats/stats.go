// Package stats keeps per-day totals of completed focus time.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"focus-blocks/internal/models"
)

// DefaultHistoryLength is the number of days a snapshot reports.
const DefaultHistoryLength = 14

const dayLayout = "2006-01-02"

// Day is the focus time recorded on one local calendar day.
type Day struct {
	Date         string `json:"date"`
	QuickMinutes int    `json:"quickMinutes"`
	DeepMinutes  int    `json:"deepMinutes"`
	Sessions     int    `json:"sessions"`
}

// Minutes is the day's total focus time.
func (d Day) Minutes() int {
	return d.QuickMinutes + d.DeepMinutes
}

// Snapshot summarizes recorded focus time.
type Snapshot struct {
	TodayMinutes int       `json:"todayMinutesSaved"`
	TotalMinutes int       `json:"totalMinutesSaved"`
	Sessions     int       `json:"sessions"`
	History      []Day     `json:"history"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Recorder writes focus time to the focus_history table.
type Recorder struct {
	db            *sql.DB
	loc           *time.Location
	historyLength int
}

// NewRecorder returns a recorder bucketing days in loc (local time when nil).
func NewRecorder(db *sql.DB, loc *time.Location, historyLength int) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if historyLength <= 0 {
		historyLength = DefaultHistoryLength
	}
	return &Recorder{db: db, loc: loc, historyLength: historyLength}, nil
}

// Record adds the focused part of session, from its start until ended or its
// deadline, whichever comes first. Time crossing midnight is split between
// the days it fell on; the session counts on the day it started.
func (r *Recorder) Record(ctx context.Context, session models.Session, ended time.Time) error {
	if session.StartedAt <= 0 {
		return nil
	}
	start := models.FromMillis(session.StartedAt).In(r.loc)
	end := ended.In(r.loc)
	if deadline := models.FromMillis(session.ActiveUntil); session.ActiveUntil > 0 && deadline.Before(end) {
		end = deadline.In(r.loc)
	}
	if !end.After(start) {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO focus_history (day, quick_seconds, deep_seconds, sessions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			quick_seconds = quick_seconds + excluded.quick_seconds,
			deep_seconds  = deep_seconds + excluded.deep_seconds,
			sessions      = sessions + excluded.sessions
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	sessions := 1
	for cursor := start; cursor.Before(end); {
		y, m, d := cursor.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, r.loc)
		if next.After(end) {
			next = end
		}
		seconds := int64(next.Sub(cursor) / time.Second)
		var quick, deep int64
		if session.Mode == models.ModeDeep {
			deep = seconds
		} else {
			quick = seconds
		}
		if _, err := stmt.ExecContext(ctx, cursor.Format(dayLayout), quick, deep, sessions); err != nil {
			return err
		}
		sessions = 0
		cursor = next
	}
	return tx.Commit()
}

// Snapshot reports today's and all-time totals plus the most recent days
// that have any focus time, oldest first.
func (r *Recorder) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, quick_seconds, deep_seconds, sessions
		FROM focus_history
		ORDER BY day ASC
	`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	today := now.In(r.loc).Format(dayLayout)
	snap := Snapshot{GeneratedAt: now}
	var days []Day
	for rows.Next() {
		var (
			day          string
			quick, deep  int64
			sessionCount int
		)
		if err := rows.Scan(&day, &quick, &deep, &sessionCount); err != nil {
			return Snapshot{}, err
		}
		entry := Day{
			Date:         day,
			QuickMinutes: int(quick / 60),
			DeepMinutes:  int(deep / 60),
			Sessions:     sessionCount,
		}
		snap.TotalMinutes += int((quick + deep) / 60)
		snap.Sessions += sessionCount
		if day == today {
			snap.TodayMinutes = entry.Minutes()
		}
		days = append(days, entry)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	if len(days) > r.historyLength {
		days = days[len(days)-r.historyLength:]
	}
	snap.History = days
	return snap, nil
}
