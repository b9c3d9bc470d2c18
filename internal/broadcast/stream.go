package broadcast

import "context"

// StreamPage buffers events for one Server-Sent Events connection.
type StreamPage struct {
	id string
	ch chan Event
}

// NewStreamPage creates a page with room for buffer undelivered events.
func NewStreamPage(id string, buffer int) *StreamPage {
	if buffer <= 0 {
		buffer = 8
	}
	return &StreamPage{id: id, ch: make(chan Event, buffer)}
}

func (p *StreamPage) ID() string { return p.id }

// Deliver never blocks; a full buffer reports ErrPageBusy so the
// broadcaster retries.
func (p *StreamPage) Deliver(ctx context.Context, event Event) error {
	select {
	case p.ch <- event:
		return nil
	default:
		return ErrPageBusy
	}
}

// Events is drained by the connection handler.
func (p *StreamPage) Events() <-chan Event {
	return p.ch
}
