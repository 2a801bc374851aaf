package webhooks

import (
	"context"
	"sync"

	"github.com/micro/micro/v3/service/errors"
)

// ErrWebhookConflict is returned when an app tries to register a webhook id
// different from the one already routed for it. Re-registering the *same*
// (app, webhook) pair is a no-op: app-level registration is shared across
// all pages configured under that app.
var ErrWebhookConflict = errors.Conflict(
	"messenger.webhook.conflict",
	"webhook: app already registered with a different webhook id",
)

// A Handler consumes one recognized entry of an inbound delivery batch.
type Handler interface {
	HandleEntry(ctx context.Context, object string, entry *Entry) error
}

// Subscription routes one configured page: inbound entries for .PageID are
// verified with .AppSecret and handed to .Handler.
type Subscription struct {
	// The Page ID inbound entries are keyed by.
	PageID string
	// Display name; logging only.
	PageName string
	// Owning Facebook App ID.
	AppID string
	// App secret the delivery signature is keyed with.
	AppSecret string
	// Inbound entry handler.
	Handler Handler
}

// AppWebhook is the app-level webhook registration record, shared by every
// page configured under the same app.
type AppWebhook struct {
	// Owning Facebook App ID.
	AppID string
	// Local webhook identifier (32-byte hex).
	WebhookID string
	// Shared secret echoed back during the GET handshake.
	VerifyToken string
	// Display name; logging only.
	AppName string
}

// Registry is the process-wide directory of configured subscriptions, keyed
// by page id, plus the app-level webhook records. It is owned by the host
// application's lifecycle and injected into the Dispatcher; pages are added
// at setup time and removed at teardown.
type Registry struct {
	mu    sync.RWMutex
	pages map[string]*Subscription
	apps  map[string]*AppWebhook
}

func NewRegistry() *Registry {
	return &Registry{
		pages: make(map[string]*Subscription),
		apps:  make(map[string]*AppWebhook),
	}
}

// AddPage installs the subscription for sub.PageID.
// Re-adding the same page replaces its record in place.
func (c *Registry) AddPage(sub *Subscription) {
	c.mu.Lock()
	c.pages[sub.PageID] = sub
	c.mu.Unlock()
}

// RemovePage uninstalls the page's subscription, if any.
func (c *Registry) RemovePage(pageID string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.pages[pageID]
	if !ok {
		return nil
	}
	delete(c.pages, pageID)
	return sub
}

// Lookup returns the subscription routing pageID, or nil.
func (c *Registry) Lookup(pageID string) *Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pages[pageID]
}

// RegisterApp installs the app-level webhook record. Registering the same
// (app, webhook) pair again is benign; a different webhook id for an
// already registered app fails with ErrWebhookConflict rather than
// silently rerouting existing pages.
func (c *Registry) RegisterApp(hook *AppWebhook) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if have, ok := c.apps[hook.AppID]; ok {
		if have.WebhookID == hook.WebhookID {
			return nil // idempotent
		}
		return ErrWebhookConflict
	}
	c.apps[hook.AppID] = hook
	return nil
}

// App returns the app-level webhook record, or nil.
func (c *Registry) App(appID string) *AppWebhook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apps[appID]
}

// DeregisterApp drops the app-level webhook record.
func (c *Registry) DeregisterApp(appID string) {
	c.mu.Lock()
	delete(c.apps, appID)
	c.mu.Unlock()
}

// VerifyToken reports whether token matches any registered app's
// verify token. Used by the GET handshake.
func (c *Registry) VerifyToken(token string) bool {
	if token == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, hook := range c.apps {
		if hook.VerifyToken == token {
			return true
		}
	}
	return false
}
