// Package notify emits user-visible notifications. Delivery is fire and
// forget.
package notify

import (
	"context"

	"focus-blocks/internal/broadcast"
	"focus-blocks/internal/diaglog"
)

// Broadcaster publishes notification events to pages.
type Broadcaster interface {
	Broadcast(ctx context.Context, name string, data any)
}

// Preferences reports whether notifications are enabled.
type Preferences interface {
	NotificationsEnabled(ctx context.Context) bool
}

// Notification is the payload of a notification event.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier logs notifications and forwards them to pages.
type Notifier struct {
	events Broadcaster
	prefs  Preferences
	logger diaglog.Logger
}

// New creates a notifier. A nil prefs always notifies.
func New(events Broadcaster, prefs Preferences, logger diaglog.Logger) *Notifier {
	return &Notifier{events: events, prefs: prefs, logger: diaglog.OrDiscard(logger)}
}

// Notify shows title and message unless the user disabled notifications.
func (n *Notifier) Notify(ctx context.Context, title, message string) {
	if n == nil {
		return
	}
	if n.prefs != nil && !n.prefs.NotificationsEnabled(ctx) {
		n.logger.Debugf("notify: suppressed %q", title)
		return
	}
	n.logger.Infof("notify: %s: %s", title, message)
	if n.events != nil {
		n.events.Broadcast(ctx, broadcast.EventNotification, Notification{Title: title, Message: message})
	}
}
