// Package broadcast fans state-change events out to every connected page.
// Delivery is best effort: each page is retried a bounded number of times
// and failures are never reported to the caller.
package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"focus-blocks/internal/diaglog"
)

// Event names.
const (
	EventSessionChanged = "session-changed"
	EventForceClear     = "force-clear"
	EventNotification   = "notification"
	EventRefreshBlocked = "refresh-blocked"
)

// RefreshBlocked is the payload of EventRefreshBlocked: pages open on one
// of Domains should reload so a rule change takes effect at once.
type RefreshBlocked struct {
	Domains []string `json:"domains"`
}

const (
	DefaultRetries = 2
	DefaultBackoff = 200 * time.Millisecond
)

// ErrPageBusy is returned by pages that cannot accept an event right now.
var ErrPageBusy = errors.New("page is not accepting events")

// Event is one broadcast message.
type Event struct {
	Name string    `json:"event"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}

// Page is a broadcast recipient.
type Page interface {
	ID() string
	Deliver(ctx context.Context, event Event) error
}

// Broadcaster holds the set of open pages. Each page has its own queue so
// it receives events in broadcast order, one delivery (with its retries)
// at a time.
type Broadcaster struct {
	retries int
	backoff time.Duration
	logger  diaglog.Logger
	now     func() time.Time

	mu    sync.Mutex
	pages map[string]*pageQueue

	inflight sync.WaitGroup
}

type pageQueue struct {
	page    Page
	pending []queuedEvent
	running bool
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// New creates a broadcaster. Negative values fall back to the defaults.
func New(retries int, backoff time.Duration, logger diaglog.Logger) *Broadcaster {
	if retries < 0 {
		retries = DefaultRetries
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	return &Broadcaster{
		retries: retries,
		backoff: backoff,
		logger:  diaglog.OrDiscard(logger),
		now:     time.Now,
		pages:   make(map[string]*pageQueue),
	}
}

// Register adds page, replacing any page with the same id.
func (b *Broadcaster) Register(page Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.pages[page.ID()]; ok {
		old.pending = nil
	}
	b.pages[page.ID()] = &pageQueue{page: page}
}

// Unregister removes the page with id and reports whether it existed.
// Events still queued for it are dropped.
func (b *Broadcaster) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.pages[id]
	if !ok {
		return false
	}
	q.pending = nil
	delete(b.pages, id)
	return true
}

// Pages returns the registered page ids in sorted order.
func (b *Broadcaster) Pages() []string {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pages))
	for id := range b.pages {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Broadcast queues name for every registered page and returns without
// waiting for delivery. Cancelling ctx does not abort queued deliveries.
func (b *Broadcaster) Broadcast(ctx context.Context, name string, data any) {
	item := queuedEvent{ctx: context.WithoutCancel(ctx), event: Event{Name: name, Data: data, Time: b.now()}}

	b.mu.Lock()
	for _, q := range b.pages {
		q.pending = append(q.pending, item)
		if !q.running {
			q.running = true
			b.inflight.Add(1)
			go b.drain(q)
		}
	}
	count := len(b.pages)
	b.mu.Unlock()
	b.logger.Debugf("broadcast: %s to %d pages", name, count)
}

func (b *Broadcaster) drain(q *pageQueue) {
	defer b.inflight.Done()
	for {
		b.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			b.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		b.mu.Unlock()

		b.deliver(item.ctx, q.page, item.event)
	}
}

// Wait blocks until every queued delivery has finished.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}

func (b *Broadcaster) deliver(ctx context.Context, page Page, event Event) {
	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if attempt > 0 && b.backoff > 0 {
			timer := time.NewTimer(b.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if err = page.Deliver(ctx, event); err == nil {
			return
		}
	}
	b.logger.Debugf("broadcast: dropped %s for page %s after %d attempts: %v", event.Name, page.ID(), b.retries+1, err)
}
