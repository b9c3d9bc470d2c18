package alarm

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type recorder struct {
	fired []string
}

func (r *recorder) handle(name string) {
	r.fired = append(r.fired, name)
}

func newTestManager() (*Manager, *ManualClock, *recorder) {
	clock := NewManualClock(epoch)
	m := NewManager(clock, nil)
	rec := &recorder{}
	m.SetHandler(rec.handle)
	return m, clock, rec
}

func TestScheduleFiresInOrder(t *testing.T) {
	m, clock, rec := newTestManager()
	m.Schedule("b", m.Now().Add(2*time.Minute))
	m.Schedule("a", m.Now().Add(time.Minute))
	m.Schedule("c", m.Now().Add(10*time.Minute))

	clock.Advance(5 * time.Minute)
	if len(rec.fired) != 2 || rec.fired[0] != "a" || rec.fired[1] != "b" {
		t.Fatalf("unexpected fired order %v", rec.fired)
	}
	if _, ok := m.Get("a"); ok {
		t.Fatalf("fired alarm should be removed")
	}
	if pending := m.List(); len(pending) != 1 || pending[0].Name != "c" {
		t.Fatalf("unexpected pending %v", pending)
	}
	if !clock.Now().Equal(epoch.Add(5 * time.Minute)) {
		t.Fatalf("clock not advanced to target: %s", clock.Now())
	}
}

func TestRescheduleReplacesPendingTimer(t *testing.T) {
	m, clock, rec := newTestManager()
	m.Schedule("x", m.Now().Add(time.Minute))
	m.Schedule("x", m.Now().Add(5*time.Minute))
	if clock.Pending() != 1 {
		t.Fatalf("expected replaced timer to be stopped, pending=%d", clock.Pending())
	}
	clock.Advance(2 * time.Minute)
	if len(rec.fired) != 0 {
		t.Fatalf("old timer fired: %v", rec.fired)
	}
	clock.Advance(3 * time.Minute)
	if len(rec.fired) != 1 || rec.fired[0] != "x" {
		t.Fatalf("expected single fire of x, got %v", rec.fired)
	}
}

func TestCancelAndCancelPrefix(t *testing.T) {
	m, clock, rec := newTestManager()
	m.Schedule("schedule:a:1:start", m.Now().Add(time.Minute))
	m.Schedule("schedule:a:1:end", m.Now().Add(2*time.Minute))
	m.Schedule("bypass:youtube.com", m.Now().Add(time.Minute))

	if !m.Cancel("bypass:youtube.com") {
		t.Fatalf("expected cancel to report existing alarm")
	}
	if m.Cancel("bypass:youtube.com") {
		t.Fatalf("second cancel should report missing alarm")
	}
	if n := m.CancelPrefix("schedule:"); n != 2 {
		t.Fatalf("CancelPrefix removed %d, want 2", n)
	}
	clock.Advance(time.Hour)
	if len(rec.fired) != 0 {
		t.Fatalf("cancelled alarms fired: %v", rec.fired)
	}
}

func TestPastTimeFiresOnNextAdvance(t *testing.T) {
	m, clock, rec := newTestManager()
	m.Schedule("late", epoch.Add(-time.Minute))
	if len(rec.fired) != 0 {
		t.Fatalf("alarm must not fire synchronously from Schedule")
	}
	clock.Advance(0)
	if len(rec.fired) != 1 {
		t.Fatalf("expected overdue alarm to fire, got %v", rec.fired)
	}
}

func TestHandlerCanRearm(t *testing.T) {
	clock := NewManualClock(epoch)
	m := NewManager(clock, nil)
	count := 0
	m.SetHandler(func(name string) {
		count++
		m.Schedule(name, m.Now().Add(time.Minute))
	})
	m.Schedule("tick", m.Now().Add(time.Minute))
	clock.Advance(3*time.Minute + 30*time.Second)
	if count != 3 {
		t.Fatalf("expected 3 fires, got %d", count)
	}
	alarm, ok := m.Get("tick")
	if !ok || !alarm.ScheduledTime.Equal(epoch.Add(4*time.Minute)) {
		t.Fatalf("unexpected re-armed alarm %+v ok=%v", alarm, ok)
	}
}

func TestStopCancelsEverything(t *testing.T) {
	m, clock, rec := newTestManager()
	m.Schedule("a", m.Now().Add(time.Minute))
	m.Schedule("b", m.Now().Add(time.Minute))
	m.Stop()
	clock.Advance(time.Hour)
	if len(rec.fired) != 0 || len(m.List()) != 0 {
		t.Fatalf("expected nothing after Stop, fired=%v", rec.fired)
	}
}

func TestRealClockFires(t *testing.T) {
	m := NewManager(nil, nil)
	done := make(chan string, 1)
	m.SetHandler(func(name string) { done <- name })
	m.Schedule("real", m.Now().Add(time.Millisecond))
	select {
	case name := <-done:
		if name != "real" {
			t.Fatalf("unexpected alarm %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("real clock alarm did not fire")
	}
}
