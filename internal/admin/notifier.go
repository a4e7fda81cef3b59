// Package admin delivers systemic-failure notifications to a fixed
// administrative recipient. Per-call failures are never reported here; only
// infrastructure outages are.
package admin

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/speedrpc/internal/logging"
)

// Notifier sends a message to the administrative recipient.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes notifications to the log. Used when no chat credentials
// are configured.
type LogNotifier struct {
	Logger logging.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, message string) error {
	n.Logger.Error(ctx, "admin notification", "message", message)
	return nil
}

// Coalescer wraps a Notifier and collapses repeated notifications for the
// same outage key: the first Fail for a key notifies, subsequent Fails are
// suppressed until Recover is called for that key. One notification per
// outage, not one per failed call.
type Coalescer struct {
	notifier Notifier
	logger   logging.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

func NewCoalescer(n Notifier, logger logging.Logger) *Coalescer {
	return &Coalescer{
		notifier: n,
		logger:   logger,
		active:   make(map[string]struct{}),
	}
}

// Fail records an outage for key and notifies the recipient if this is the
// first failure since the last recovery.
func (c *Coalescer) Fail(ctx context.Context, key, message string) {
	c.mu.Lock()
	_, ongoing := c.active[key]
	if !ongoing {
		c.active[key] = struct{}{}
	}
	c.mu.Unlock()

	if ongoing {
		return
	}

	if err := c.notifier.Notify(ctx, message); err != nil {
		c.logger.Error(ctx, "admin notification failed", "key", key, "error", err)
	}
}

// Recover clears the outage state for key. The next Fail for the key will
// notify again.
func (c *Coalescer) Recover(key string) {
	c.mu.Lock()
	delete(c.active, key)
	c.mu.Unlock()
}
