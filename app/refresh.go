package app

import (
	"context"
	"time"
)

// RefreshPage fetches the page's profile and updates the cached
// name, link and followers count.
func (c *Manager) RefreshPage(ctx context.Context, sub *Subscription) error {

	page, err := c.Graph.Page(sub.PageToken()).GetPage(ctx, sub.PageID)
	if err != nil {
		return err
	}
	sub.updatePage(page)
	return nil
}

func (c *Manager) refreshAll(ctx context.Context) {
	for _, sub := range c.Subscriptions() {
		if err := c.RefreshPage(ctx, sub); err != nil {
			// Transient failures wait for the next tick; no local retry.
			c.Log.Warn().Err(err).
				Str("page-id", sub.PageID).
				Msg("REFRESH: PAGE")
		}
	}
}

// Run refreshes every configured page on RefreshInterval until ctx is done.
func (c *Manager) Run(ctx context.Context) {

	interval := c.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshAll(ctx)
		}
	}
}
