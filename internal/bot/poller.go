package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Poller pulls updates over getUpdates. It is the alternative binding to
// the webhook route; the dispatcher cannot tell them apart.
type Poller struct {
	c       *Client
	d       *Dispatcher
	timeout time.Duration
	log     *zap.Logger
}

func NewPoller(c *Client, d *Dispatcher, timeout time.Duration, log *zap.Logger) *Poller {
	return &Poller{c: c, d: d, timeout: timeout, log: log}
}

// Run polls until ctx is cancelled. Updates are dispatched in batch order,
// which keeps each chat's updates sequential; a failing poll backs off and
// retries rather than exiting.
func (p *Poller) Run(ctx context.Context) error {
	// A leftover webhook blocks getUpdates.
	if err := p.c.DeleteWebhook(ctx); err != nil {
		p.log.Warn("delete webhook failed", zap.Error(err))
	}

	var offset int64
	for {
		updates, err := p.c.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for i := range updates {
			u := updates[i]
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.d.Dispatch(ctx, &u)
		}

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
