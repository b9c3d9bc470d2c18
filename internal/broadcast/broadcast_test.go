package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakePage struct {
	id       string
	failures int

	mu       sync.Mutex
	attempts int
	received []Event
}

func (p *fakePage) ID() string { return p.id }

func (p *fakePage) Deliver(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failures {
		return errors.New("no listener")
	}
	p.received = append(p.received, event)
	return nil
}

func (p *fakePage) snapshot() (int, []Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, append([]Event(nil), p.received...)
}

func TestBroadcastDeliversToEveryPage(t *testing.T) {
	b := New(2, time.Millisecond, nil)
	a := &fakePage{id: "a"}
	c := &fakePage{id: "c"}
	b.Register(a)
	b.Register(c)

	b.Broadcast(context.Background(), EventSessionChanged, map[string]bool{"active": true})
	b.Wait()

	for _, page := range []*fakePage{a, c} {
		attempts, received := page.snapshot()
		if attempts != 1 || len(received) != 1 || received[0].Name != EventSessionChanged {
			t.Fatalf("page %s: attempts=%d received=%v", page.id, attempts, received)
		}
	}
}

func TestBroadcastRetriesThenSucceeds(t *testing.T) {
	b := New(2, time.Millisecond, nil)
	page := &fakePage{id: "flaky", failures: 2}
	b.Register(page)
	b.Broadcast(context.Background(), EventForceClear, nil)
	b.Wait()
	attempts, received := page.snapshot()
	if attempts != 3 || len(received) != 1 {
		t.Fatalf("expected success on third attempt, attempts=%d received=%d", attempts, len(received))
	}
}

func TestBroadcastGivesUpAfterRetries(t *testing.T) {
	b := New(2, time.Millisecond, nil)
	page := &fakePage{id: "dead", failures: 100}
	b.Register(page)
	b.Broadcast(context.Background(), EventForceClear, nil)
	b.Wait()
	attempts, received := page.snapshot()
	if attempts != 3 || len(received) != 0 {
		t.Fatalf("expected exactly 3 attempts, got %d (received %d)", attempts, len(received))
	}
}

func TestBroadcastIgnoresCallerCancellation(t *testing.T) {
	b := New(1, time.Millisecond, nil)
	page := &fakePage{id: "slow", failures: 1}
	b.Register(page)
	ctx, cancel := context.WithCancel(context.Background())
	b.Broadcast(ctx, EventSessionChanged, nil)
	cancel()
	b.Wait()
	if _, received := page.snapshot(); len(received) != 1 {
		t.Fatalf("delivery should survive caller cancellation")
	}
}

func TestBroadcastKeepsOrderPerPage(t *testing.T) {
	b := New(2, 5*time.Millisecond, nil)
	// The first attempt fails, so the first event is still backing off when
	// the later ones are queued.
	page := &fakePage{id: "tab", failures: 1}
	b.Register(page)

	b.Broadcast(context.Background(), EventSessionChanged, map[string]bool{"active": true})
	b.Broadcast(context.Background(), EventSessionChanged, map[string]bool{"active": false})
	b.Broadcast(context.Background(), EventForceClear, nil)
	b.Wait()

	_, received := page.snapshot()
	if len(received) != 3 {
		t.Fatalf("expected 3 events, got %v", received)
	}
	if !received[0].Data.(map[string]bool)["active"] || received[1].Data.(map[string]bool)["active"] {
		t.Fatalf("session-changed events arrived out of order: %v", received)
	}
	if received[2].Name != EventForceClear {
		t.Fatalf("expected force-clear last, got %v", received)
	}
}

func TestUnregisterDropsQueuedEvents(t *testing.T) {
	b := New(0, 0, nil)
	block := make(chan struct{})
	page := &blockingPage{id: "slow", release: block, begun: make(chan struct{})}
	b.Register(page)

	b.Broadcast(context.Background(), EventSessionChanged, nil)
	b.Broadcast(context.Background(), EventForceClear, nil)
	page.waitStarted(t)
	b.Unregister("slow")
	close(block)
	b.Wait()

	if got := page.count(); got != 1 {
		t.Fatalf("expected only the in-progress delivery, got %d", got)
	}
}

type blockingPage struct {
	id      string
	release chan struct{}
	started sync.Once
	begun   chan struct{}

	mu        sync.Mutex
	delivered int
}

func (p *blockingPage) ID() string { return p.id }

func (p *blockingPage) Deliver(ctx context.Context, event Event) error {
	p.started.Do(func() { close(p.begun) })
	<-p.release
	p.mu.Lock()
	p.delivered++
	p.mu.Unlock()
	return nil
}

func (p *blockingPage) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-p.begun:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never started")
	}
}

func (p *blockingPage) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

func TestRegisterUnregister(t *testing.T) {
	b := New(0, 0, nil)
	b.Register(&fakePage{id: "b"})
	b.Register(&fakePage{id: "a"})
	if ids := b.Pages(); len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("unexpected pages %v", ids)
	}
	if !b.Unregister("a") || b.Unregister("a") {
		t.Fatalf("Unregister should report presence once")
	}
	b.Broadcast(context.Background(), EventSessionChanged, nil)
	b.Wait()
}

func TestStreamPageNonBlocking(t *testing.T) {
	page := NewStreamPage("s", 1)
	if err := page.Deliver(context.Background(), Event{Name: "one"}); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if err := page.Deliver(context.Background(), Event{Name: "two"}); !errors.Is(err, ErrPageBusy) {
		t.Fatalf("expected ErrPageBusy, got %v", err)
	}
	if got := <-page.Events(); got.Name != "one" {
		t.Fatalf("unexpected event %v", got)
	}
}

func TestWebhookPageDelivers(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
		header string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		events = append(events, event)
		header = r.Header.Get("X-Focusblocks-Event")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	page, err := NewWebhookPage("hook", srv.URL+"/events")
	if err != nil {
		t.Fatalf("NewWebhookPage: %v", err)
	}
	b := New(2, time.Millisecond, nil)
	b.Register(page)
	b.Broadcast(context.Background(), EventSessionChanged, map[string]any{"active": false})
	b.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Name != EventSessionChanged || header != EventSessionChanged {
		t.Fatalf("unexpected webhook delivery %v header=%q", events, header)
	}
}

func TestWebhookPageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	page, err := NewWebhookPage("hook", srv.URL)
	if err != nil {
		t.Fatalf("NewWebhookPage: %v", err)
	}
	if err := page.Deliver(context.Background(), Event{Name: "x"}); err == nil {
		t.Fatalf("expected error for 503")
	}
}

func TestNewWebhookPageValidates(t *testing.T) {
	for _, target := range []string{"ftp://example.com", "http://", "::bad"} {
		if _, err := NewWebhookPage("x", target); err == nil {
			t.Fatalf("expected error for %q", target)
		}
	}
}
