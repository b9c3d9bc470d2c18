// Package schedule drives SCHEDULE-namespace rules from recurring weekly
// windows, independently of focus sessions.
package schedule

import (
	"context"
	"fmt"
	"time"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/models"
	"focus-blocks/internal/rules"
)

type Store interface {
	Schedules(ctx context.Context) ([]models.Schedule, error)
	BlockLists(ctx context.Context) (models.BlockLists, error)
	ActiveSchedules(ctx context.Context) ([]string, error)
	SaveActiveSchedules(ctx context.Context, ids []string) error
}

type RuleSetter interface {
	SetBlockRules(ctx context.Context, patterns []string, enable bool, ns rules.Namespace) error
}

type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Scheduler arms start/end alarms for every enabled schedule and keeps the
// SCHEDULE namespace equal to the union of the lists of open windows.
// The caller serializes calls.
type Scheduler struct {
	store    Store
	rules    RuleSetter
	alarms   *alarm.Manager
	notifier Notifier
	loc      *time.Location
	logger   diaglog.Logger
}

// View is a schedule with its runtime state.
type View struct {
	models.Schedule
	Active    bool       `json:"active"`
	NextStart *time.Time `json:"nextStart,omitempty"`
	NextEnd   *time.Time `json:"nextEnd,omitempty"`
}

// New creates a scheduler. A nil loc uses the local zone.
func New(store Store, engine RuleSetter, alarms *alarm.Manager, notifier Notifier, loc *time.Location, logger diaglog.Logger) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("schedule store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("rule engine is required")
	}
	if alarms == nil {
		return nil, fmt.Errorf("alarm manager is required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store:    store,
		rules:    engine,
		alarms:   alarms,
		notifier: notifier,
		loc:      loc,
		logger:   diaglog.OrDiscard(logger),
	}, nil
}

// Rebuild cancels every schedule alarm and re-arms from the stored
// schedules. Windows already open are activated, windows of removed or
// disabled schedules are closed, and the namespace is reconciled.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	cancelled := s.alarms.CancelPrefix(AlarmPrefix)
	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		return err
	}
	now := s.alarms.Now()
	armed := 0
	active := make([]string, 0, len(schedules))
	for _, sched := range schedules {
		if !sched.Enabled {
			continue
		}
		start, err := sched.StartClock()
		if err != nil {
			s.logger.Warnf("schedule: %s has invalid start: %v", sched.ID, err)
			continue
		}
		end, err := sched.EndClock()
		if err != nil {
			s.logger.Warnf("schedule: %s has invalid end: %v", sched.ID, err)
			continue
		}
		for _, day := range sched.Days {
			s.alarms.Schedule(AlarmName(sched.ID, day, EdgeStart), NextOccurrence(now, EdgeDay(sched, day, EdgeStart), start, s.loc))
			s.alarms.Schedule(AlarmName(sched.ID, day, EdgeEnd), NextOccurrence(now, EdgeDay(sched, day, EdgeEnd), end, s.loc))
			armed += 2
		}

		if InProgress(sched, now, s.loc) {
			active = append(active, sched.ID)
		}
	}
	s.logger.Infof("schedule: rebuilt timers (cancelled %d, armed %d, open windows %d)", cancelled, armed, len(active))

	if err := s.store.SaveActiveSchedules(ctx, active); err != nil {
		return err
	}
	return s.applyActive(ctx, active, schedules)
}

// Fire handles a schedule alarm. Alarms for schedules that no longer exist,
// are disabled, or no longer list the day are discarded as stale.
func (s *Scheduler) Fire(ctx context.Context, name string) error {
	id, day, edge, ok := ParseAlarm(name)
	if !ok {
		s.logger.Debugf("schedule: ignoring unparsable alarm %q", name)
		return nil
	}
	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		return err
	}
	sched, ok := models.FindSchedule(schedules, id)
	if !ok || !sched.Enabled || !sched.HasDay(day) {
		s.logger.Debugf("schedule: discarding stale alarm %q", name)
		return nil
	}
	clock, err := sched.StartClock()
	if edge == EdgeEnd {
		clock, err = sched.EndClock()
	}
	if err != nil {
		s.logger.Warnf("schedule: %s has invalid %s time: %v", id, edge, err)
		return nil
	}

	now := s.alarms.Now()
	s.alarms.Schedule(name, NextOccurrence(now, EdgeDay(sched, day, edge), clock, s.loc))

	prior, err := s.store.ActiveSchedules(ctx)
	if err != nil {
		return err
	}
	set := toSet(prior)
	if edge == EdgeStart {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
	active := orderedIDs(set, schedules)
	if err := s.store.SaveActiveSchedules(ctx, active); err != nil {
		return err
	}
	applyErr := s.applyActive(ctx, active, schedules)

	if edge == EdgeStart {
		s.logger.Infof("schedule: %q started", sched.Name)
		s.notify(ctx, "Focus Schedule Started", sched.Name+" is now active - distracting sites are blocked")
	} else {
		s.logger.Infof("schedule: %q ended", sched.Name)
		s.notify(ctx, "Focus Schedule Ended", sched.Name+" has ended - sites are accessible again")
	}
	return applyErr
}

// Reconcile reinstalls the SCHEDULE namespace from the stored open set.
// It is a no-op when the installed rules already match.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		return err
	}
	prior, err := s.store.ActiveSchedules(ctx)
	if err != nil {
		return err
	}
	return s.applyActive(ctx, orderedIDs(toSet(prior), schedules), schedules)
}

// Views returns every stored schedule with its open state and next
// pending boundaries.
func (s *Scheduler) Views(ctx context.Context) ([]View, error) {
	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		return nil, err
	}
	prior, err := s.store.ActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	active := toSet(prior)
	out := make([]View, 0, len(schedules))
	for _, sched := range schedules {
		view := View{Schedule: sched}
		_, view.Active = active[sched.ID]
		for _, day := range sched.Days {
			if a, ok := s.alarms.Get(AlarmName(sched.ID, day, EdgeStart)); ok {
				view.NextStart = earlier(view.NextStart, a.ScheduledTime)
			}
			if a, ok := s.alarms.Get(AlarmName(sched.ID, day, EdgeEnd)); ok {
				view.NextEnd = earlier(view.NextEnd, a.ScheduledTime)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Scheduler) applyActive(ctx context.Context, active []string, schedules []models.Schedule) error {
	if len(active) == 0 {
		if err := s.rules.SetBlockRules(ctx, nil, false, rules.Schedule); err != nil {
			return fmt.Errorf("remove schedule rules: %w", err)
		}
		return nil
	}
	lists, err := s.store.BlockLists(ctx)
	if err != nil {
		return err
	}
	var patterns []string
	for _, id := range active {
		sched, ok := models.FindSchedule(schedules, id)
		if !ok {
			continue
		}
		list, ok := lists[sched.List]
		if !ok {
			s.logger.Warnf("schedule: %q references missing list %q", sched.Name, sched.List)
			continue
		}
		patterns = append(patterns, list...)
	}
	if err := s.rules.SetBlockRules(ctx, patterns, len(patterns) > 0, rules.Schedule); err != nil {
		return fmt.Errorf("install schedule rules: %w", err)
	}
	return nil
}

func (s *Scheduler) notify(ctx context.Context, title, message string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, title, message)
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// orderedIDs keeps ids that still name a schedule, in schedule order.
func orderedIDs(set map[string]struct{}, schedules []models.Schedule) []string {
	out := make([]string, 0, len(set))
	for _, sched := range schedules {
		if _, ok := set[sched.ID]; ok {
			out = append(out, sched.ID)
		}
	}
	return out
}

func earlier(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		return &candidate
	}
	return current
}
