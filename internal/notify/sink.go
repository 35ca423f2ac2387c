package notify

import (
	"context"
	"sync/atomic"

	"github.com/duelcast/betwatch/internal/domain"
)

// Sink adapts a Notifier to the watch session's fan-out interface.
type Sink struct {
	notifier *Notifier
}

// NewSink wraps a Notifier as a domain.NotificationSink.
func NewSink(n *Notifier) *Sink {
	return &Sink{notifier: n}
}

// Deliver forwards the notification through the Notifier's kind filter.
func (s *Sink) Deliver(ctx context.Context, n domain.Notification) error {
	return s.notifier.Notify(ctx, string(n.Kind), n.Title, n.Body)
}

// Counter is a sink that only counts deliveries. It backs the unread-badge
// surface: incremented per alert, cleared when the user acknowledges.
type Counter struct {
	n atomic.Int64
}

// Deliver increments the counter. It never fails.
func (c *Counter) Deliver(context.Context, domain.Notification) error {
	c.n.Add(1)
	return nil
}

// Count returns the number of unacknowledged notifications.
func (c *Counter) Count() int64 { return c.n.Load() }

// Clear resets the counter.
func (c *Counter) Clear() { c.n.Store(0) }
