package store

import (
	"context"
	"database/sql"

	"focus-blocks/internal/models"
)

// Persisted keys.
const (
	KeyLists           = "lists"
	KeySchedules       = "schedules"
	KeySession         = "session"
	KeySettings        = "settings"
	KeyBypasses        = "temporaryBypasses"
	KeyBypassLog       = "bypassLog"
	KeyActiveSchedules = "activeSchedules"
)

// Store exposes typed access to the persisted coordinator state. It does no
// locking of its own; callers serialize read-modify-write sequences.
type Store struct {
	kv *KV
}

// New creates a Store over db.
func New(db *sql.DB) *Store {
	return &Store{kv: NewKV(db)}
}

// Initialize seeds any key missing on first start.
func (s *Store) Initialize(ctx context.Context) error {
	existing, err := s.kv.Get(ctx, KeyLists, KeySchedules, KeySettings)
	if err != nil {
		return err
	}
	seed := map[string]any{}
	if _, ok := existing[KeyLists]; !ok {
		seed[KeyLists] = models.DefaultBlockLists()
	}
	if _, ok := existing[KeySchedules]; !ok {
		seed[KeySchedules] = []models.Schedule{}
	}
	if _, ok := existing[KeySettings]; !ok {
		seed[KeySettings] = models.DefaultSettings()
	}
	return s.kv.Set(ctx, seed)
}

// BlockLists returns the stored lists, or an empty map.
func (s *Store) BlockLists(ctx context.Context) (models.BlockLists, error) {
	lists := models.BlockLists{}
	if _, err := s.kv.getJSON(ctx, KeyLists, &lists); err != nil {
		return nil, err
	}
	if lists == nil {
		lists = models.BlockLists{}
	}
	return lists, nil
}

func (s *Store) SaveBlockLists(ctx context.Context, lists models.BlockLists) error {
	return s.kv.Set(ctx, map[string]any{KeyLists: lists})
}

// Schedules returns the stored schedules in submission order.
func (s *Store) Schedules(ctx context.Context) ([]models.Schedule, error) {
	var schedules []models.Schedule
	if _, err := s.kv.getJSON(ctx, KeySchedules, &schedules); err != nil {
		return nil, err
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	return schedules, nil
}

func (s *Store) SaveSchedules(ctx context.Context, schedules []models.Schedule) error {
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	return s.kv.Set(ctx, map[string]any{KeySchedules: schedules})
}

// Session returns the persisted session; the zero value when none is stored.
func (s *Store) Session(ctx context.Context) (models.Session, error) {
	var session models.Session
	if _, err := s.kv.getJSON(ctx, KeySession, &session); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) SaveSession(ctx context.Context, session models.Session) error {
	return s.kv.Set(ctx, map[string]any{KeySession: session})
}

// ClearSession resets the persisted session to idle.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.kv.Set(ctx, map[string]any{KeySession: models.Session{}})
}

// Settings returns stored settings, falling back to defaults when absent.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()
	if _, err := s.kv.getJSON(ctx, KeySettings, &settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	return s.kv.Set(ctx, map[string]any{KeySettings: settings})
}

// Bypasses returns the raw bypass table, expired entries included.
func (s *Store) Bypasses(ctx context.Context) (models.Bypasses, error) {
	table := models.Bypasses{}
	if _, err := s.kv.getJSON(ctx, KeyBypasses, &table); err != nil {
		return nil, err
	}
	if table == nil {
		table = models.Bypasses{}
	}
	return table, nil
}

func (s *Store) SaveBypasses(ctx context.Context, table models.Bypasses) error {
	if table == nil {
		table = models.Bypasses{}
	}
	return s.kv.Set(ctx, map[string]any{KeyBypasses: table})
}

// BypassLog returns the grant history, oldest first.
func (s *Store) BypassLog(ctx context.Context) ([]models.BypassLogEntry, error) {
	var entries []models.BypassLogEntry
	if _, err := s.kv.getJSON(ctx, KeyBypassLog, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendBypassLog adds entry and keeps only the newest MaxBypassLogEntries.
func (s *Store) AppendBypassLog(ctx context.Context, entry models.BypassLogEntry) error {
	entries, err := s.BypassLog(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if overflow := len(entries) - models.MaxBypassLogEntries; overflow > 0 {
		entries = entries[overflow:]
	}
	return s.kv.Set(ctx, map[string]any{KeyBypassLog: entries})
}

// ActiveSchedules returns the ids of schedules whose window is open.
func (s *Store) ActiveSchedules(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := s.kv.getJSON(ctx, KeyActiveSchedules, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) SaveActiveSchedules(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.kv.Set(ctx, map[string]any{KeyActiveSchedules: ids})
}

// DB returns the database the store writes to.
func (s *Store) DB() *sql.DB {
	return s.kv.db
}
