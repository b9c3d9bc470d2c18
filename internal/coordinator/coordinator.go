// Package coordinator owns the focus-blocks event loop. Every request,
// alarm and sweep runs under one mutex, so each handler sees the store as
// the previous handler left it.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/broadcast"
	"focus-blocks/internal/bypass"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/models"
	"focus-blocks/internal/notify"
	"focus-blocks/internal/rules"
	"focus-blocks/internal/schedule"
	"focus-blocks/internal/session"
	"focus-blocks/internal/settings"
	"focus-blocks/internal/stats"
	"focus-blocks/internal/store"
)

const DefaultSweepInterval = 30 * time.Second

// Options configure a Coordinator. Store and Host are required.
type Options struct {
	Store    *store.Store
	Host     rules.Host
	Clock    alarm.Clock
	Events   *broadcast.Broadcaster
	Settings *settings.Manager
	Logger   diaglog.Logger

	BlockedPath          string
	Location             *time.Location
	DeepThresholdMinutes int
	SweepInterval        time.Duration
}

// Coordinator wires the components together and serializes access to them.
type Coordinator struct {
	mu sync.Mutex

	store     *store.Store
	settings  *settings.Manager
	engine    *rules.Engine
	alarms    *alarm.Manager
	bypasses  *bypass.Tracker
	session   *session.Machine
	scheduler *schedule.Scheduler
	stats     *stats.Recorder
	events    *broadcast.Broadcaster
	logger    diaglog.Logger

	sweepInterval time.Duration
}

// StatusView answers get-status.
type StatusView struct {
	session.Status
	Schedules []schedule.View `json:"schedules"`
}

// New builds a coordinator and installs its alarm handler. Call Init before
// serving requests.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("rule host is required")
	}
	logger := diaglog.OrDiscard(opts.Logger)
	clock := opts.Clock
	if clock == nil {
		clock = alarm.RealClock{}
	}
	events := opts.Events
	if events == nil {
		events = broadcast.New(broadcast.DefaultRetries, broadcast.DefaultBackoff, logger)
	}
	settingsManager := opts.Settings
	if settingsManager == nil {
		settingsManager = settings.NewManager(opts.Store)
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}

	alarms := alarm.NewManager(clock, logger)
	engine := rules.NewEngine(opts.Host, opts.BlockedPath, logger)
	tracker := bypass.NewTracker(opts.Store, alarms, logger)
	notifier := notify.New(events, settingsManager, logger)
	recorder, err := stats.NewRecorder(opts.Store.DB(), opts.Location, stats.DefaultHistoryLength)
	if err != nil {
		return nil, err
	}

	machine, err := session.New(session.Deps{
		Store:                opts.Store,
		Rules:                engine,
		Bypasses:             tracker,
		Alarms:               alarms,
		Events:               events,
		Notifier:             notifier,
		Stats:                recorder,
		Logger:               logger,
		DeepThresholdMinutes: opts.DeepThresholdMinutes,
	})
	if err != nil {
		return nil, err
	}
	scheduler, err := schedule.New(opts.Store, engine, alarms, notifier, opts.Location, logger)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		store:         opts.Store,
		settings:      settingsManager,
		engine:        engine,
		alarms:        alarms,
		bypasses:      tracker,
		session:       machine,
		scheduler:     scheduler,
		stats:         recorder,
		events:        events,
		logger:        logger,
		sweepInterval: sweep,
	}
	alarms.SetHandler(c.handleAlarm)
	return c, nil
}

// Init seeds the store and restores timers and rules after a restart.
// Only a store failure is fatal; recovery failures are logged and left to
// the sweep.
func (c *Coordinator) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	if err := c.bypasses.Recover(ctx); err != nil {
		c.logger.Errorf("coordinator: recover bypasses: %v", err)
	}
	if err := c.session.Recover(ctx); err != nil {
		c.logger.Errorf("coordinator: recover session: %v", err)
	}
	if err := c.scheduler.Rebuild(ctx); err != nil {
		c.logger.Errorf("coordinator: rebuild schedules: %v", err)
	}
	c.logger.Infof("coordinator: ready with %d pending alarms", len(c.alarms.List()))
	return nil
}

// Run sweeps periodically until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep re-checks the session and rule invariants independently of timers.
func (c *Coordinator) Sweep(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Sweep(ctx); err != nil {
		c.logger.Errorf("coordinator: session sweep: %v", err)
	}
	if _, err := c.bypasses.Active(ctx); err != nil {
		c.logger.Errorf("coordinator: prune bypasses: %v", err)
	}
	if err := c.session.Reapply(ctx); err != nil {
		c.logger.Errorf("coordinator: reapply session rules: %v", err)
	}
	if err := c.scheduler.Reconcile(ctx); err != nil {
		c.logger.Errorf("coordinator: reconcile schedule rules: %v", err)
	}
}

// Close stops every timer and waits for in-flight broadcasts.
func (c *Coordinator) Close() {
	c.alarms.Stop()
	c.events.Wait()
}

// Events returns the broadcaster pages register with.
func (c *Coordinator) Events() *broadcast.Broadcaster {
	return c.events
}

// StartSession starts a focus session, replacing any active one.
func (c *Coordinator) StartSession(ctx context.Context, minutes int, listName string) (models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Start(ctx, minutes, listName)
}

// EndSession ends the active session. Ending an idle session succeeds.
func (c *Coordinator) EndSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.session.End(ctx)
	return err
}

// Status returns the session view plus every schedule.
func (c *Coordinator) Status(ctx context.Context) (StatusView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, err := c.session.Status(ctx)
	if err != nil {
		return StatusView{}, err
	}
	views, err := c.scheduler.Views(ctx)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{Status: status, Schedules: views}, nil
}

// BlockLists returns the stored lists.
func (c *Coordinator) BlockLists(ctx context.Context) (models.BlockLists, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.BlockLists(ctx)
}

// UpdateBlockLists validates and replaces every list, then refreshes rules
// that depend on an edited list.
func (c *Coordinator) UpdateBlockLists(ctx context.Context, lists models.BlockLists) (models.BlockLists, error) {
	normalized, err := models.NormalizeBlockLists(lists)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	before, err := c.store.BlockLists(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveBlockLists(ctx, normalized); err != nil {
		return nil, err
	}
	c.logger.Infof("coordinator: saved %d block lists", len(normalized))
	if err := c.session.BlockListsChanged(ctx, before, normalized); err != nil {
		return normalized, err
	}
	if err := c.scheduler.Reconcile(ctx); err != nil {
		return normalized, err
	}
	return normalized, nil
}

// Schedules returns the stored schedules with their runtime state.
func (c *Coordinator) Schedules(ctx context.Context) ([]schedule.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler.Views(ctx)
}

// UpdateSchedules validates and replaces every schedule, then rebuilds all
// schedule timers.
func (c *Coordinator) UpdateSchedules(ctx context.Context, schedules []models.Schedule) ([]models.Schedule, error) {
	normalized, err := models.NormalizeSchedules(schedules)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lists, err := c.store.BlockLists(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range normalized {
		if _, ok := lists[s.List]; !ok {
			c.logger.Warnf("coordinator: schedule %q references unknown list %q", s.Name, s.List)
		}
	}
	if err := c.store.SaveSchedules(ctx, normalized); err != nil {
		return nil, err
	}
	c.logger.Infof("coordinator: saved %d schedules", len(normalized))
	if err := c.scheduler.Rebuild(ctx); err != nil {
		return normalized, err
	}
	return normalized, nil
}

// GrantBypass exempts the domain of target for minutes and reinstalls
// session rules without it.
func (c *Coordinator) GrantBypass(ctx context.Context, target string, minutes int) (string, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	domain, expiresAt, err := c.bypasses.Grant(ctx, target, minutes)
	if err != nil {
		return "", 0, err
	}
	if err := c.session.Reapply(ctx); err != nil {
		return domain, expiresAt, err
	}
	return domain, expiresAt, nil
}

// Bypasses returns the unexpired bypass table.
func (c *Coordinator) Bypasses(ctx context.Context) (models.Bypasses, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bypasses.Active(ctx)
}

// BypassLog returns recent grants, oldest first.
func (c *Coordinator) BypassLog(ctx context.Context) ([]models.BypassLogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.BypassLog(ctx)
}

// Rules returns the installed rules of ns.
func (c *Coordinator) Rules(ctx context.Context, ns rules.Namespace) ([]rules.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Rules(ctx, ns)
}

// AllRules returns every installed rule.
func (c *Coordinator) AllRules(ctx context.Context) ([]rules.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.AllRules(ctx)
}

// Alarms returns the pending alarms.
func (c *Coordinator) Alarms() []alarm.Alarm {
	return c.alarms.List()
}

// Stats reports recorded focus time.
func (c *Coordinator) Stats(ctx context.Context) (stats.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Snapshot(ctx, c.alarms.Now())
}

// Settings returns the public settings.
func (c *Coordinator) Settings(ctx context.Context) (models.Settings, error) {
	current, err := c.settings.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return current.Public(), nil
}

// SaveSettings replaces the user-editable settings.
func (c *Coordinator) SaveSettings(ctx context.Context, next models.Settings) (models.Settings, error) {
	saved, err := c.settings.Update(ctx, next)
	if err != nil {
		return models.Settings{}, err
	}
	return saved.Public(), nil
}

func (c *Coordinator) handleAlarm(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := context.Background()

	switch {
	case name == session.AlarmName:
		if err := c.session.Expire(ctx); err != nil {
			c.logger.Errorf("coordinator: session expiry: %v", err)
		}
	case strings.HasPrefix(name, bypass.AlarmPrefix):
		domain, _ := bypass.DomainFromAlarm(name)
		removed, err := c.bypasses.Expire(ctx, domain)
		if err != nil {
			c.logger.Errorf("coordinator: bypass expiry for %s: %v", domain, err)
			return
		}
		if removed {
			if err := c.session.Reapply(ctx); err != nil {
				c.logger.Errorf("coordinator: reapply after bypass expiry: %v", err)
			}
		}
	case strings.HasPrefix(name, schedule.AlarmPrefix):
		if err := c.scheduler.Fire(ctx, name); err != nil {
			c.logger.Errorf("coordinator: schedule alarm %s: %v", name, err)
		}
	default:
		c.logger.Debugf("coordinator: discarding unknown alarm %q", name)
	}
}
