// Package app wires the Graph client, the webhook registry and the pairing
// registry into per-page subscriptions owned by one Manager.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/micro/micro/v3/service/errors"
	"github.com/rs/zerolog"

	"github.com/megabytemb/messenger-link/graph"
	"github.com/megabytemb/messenger-link/link"
	"github.com/megabytemb/messenger-link/notify"
	"github.com/megabytemb/messenger-link/store"
	"github.com/megabytemb/messenger-link/webhooks"
)

// DefaultRefreshInterval between periodic page profile refreshes.
const DefaultRefreshInterval = 5 * time.Minute

// tokenBytes of entropy behind generated webhook ids and verify tokens.
const tokenBytes = 32

// RandomHexToken of n random bytes, hex-encoded.
func RandomHexToken(n int) string {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// appInfo is the persisted app-level webhook registration record.
type appInfo struct {
	WebhookID   string `json:"webhook_id,omitempty"`
	VerifyToken string `json:"verify_token,omitempty"`
	AppName     string `json:"app_name,omitempty"`
}

// Subscription is one configured page: its identity, its access token and
// its pending pairing codes. Implements webhooks.Handler for inbound
// entries routed to it by the dispatcher.
type Subscription struct {
	// The Page ID; registry key.
	PageID string
	// Owning Facebook App ID.
	AppID string

	mu             sync.Mutex
	pageName       string
	pageURL        string
	pageToken      string
	followersCount int64

	// Links is the page's pending pairing code set.
	Links *link.Registry

	log zerolog.Logger
}

// PageName returns the page display name as of the last refresh.
func (sub *Subscription) PageName() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.pageName
}

// PageURL returns the page link as of the last refresh.
func (sub *Subscription) PageURL() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.pageURL
}

// PageToken returns the page access token.
func (sub *Subscription) PageToken() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.pageToken
}

// FollowersCount as of the last refresh.
func (sub *Subscription) FollowersCount() int64 {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.followersCount
}

func (sub *Subscription) updatePage(page *graph.Page) {
	sub.mu.Lock()
	if page.Name != "" {
		sub.pageName = page.Name
	}
	if page.Link != "" {
		sub.pageURL = page.Link
	}
	sub.followersCount = page.FollowersCount
	sub.mu.Unlock()
}

// HandleEntry feeds every inbound text message of the entry to the pairing
// registry. Echoes of our own outbound messages are ignored.
func (sub *Subscription) HandleEntry(ctx context.Context, _ string, entry *webhooks.Entry) error {

	for _, event := range entry.Messaging {

		message := event.Message
		if message == nil || message.IsEcho || message.Text == "" {
			continue
		}
		if event.Sender == nil || event.Sender.ID == "" {
			continue
		}

		sub.Links.TryMatch(ctx, sub.PageName(), message.Text, event.Sender.ID)
	}
	return nil
}

// Manager owns the process-wide subscription set and the collaborators
// every subscription shares.
type Manager struct {
	Graph    *graph.Client
	Registry *webhooks.Registry
	Store    store.Store
	Notify   notify.Notifier
	Log      zerolog.Logger

	// CallbackURL is the externally reachable webhook endpoint
	// registered with the Graph API.
	CallbackURL string
	// RefreshInterval between page profile refreshes.
	RefreshInterval time.Duration

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewManager(client *graph.Client, registry *webhooks.Registry, blob store.Store, notifier notify.Notifier, callbackURL string, log zerolog.Logger) *Manager {
	return &Manager{
		Graph:           client,
		Registry:        registry,
		Store:           blob,
		Notify:          notifier,
		Log:             log,
		CallbackURL:     callbackURL,
		RefreshInterval: DefaultRefreshInterval,
		subs:            make(map[string]*Subscription),
	}
}

// Subscription returns the configured page, or nil.
func (c *Manager) Subscription(pageID string) *Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[pageID]
}

// Subscriptions returns a snapshot of all configured pages.
func (c *Manager) Subscriptions() []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	return subs
}

// ensureAppInfo loads the persisted app-level webhook record, creating and
// saving a fresh one (new webhook id + verify token) on first use.
func (c *Manager) ensureAppInfo(ctx context.Context, appName string) (*appInfo, error) {

	var info appInfo
	blob, err := c.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(blob) != 0 {
		if err = json.Unmarshal(blob, &info); err != nil {
			return nil, err
		}
	}

	dirty := false
	if info.WebhookID == "" {
		info.WebhookID = RandomHexToken(tokenBytes)
		info.VerifyToken = RandomHexToken(tokenBytes)
		dirty = true
	}
	if appName != "" && info.AppName != appName {
		info.AppName = appName
		dirty = true
	}

	if dirty {
		blob, err = json.Marshal(&info)
		if err != nil {
			return nil, err
		}
		if err = c.Store.Save(ctx, blob); err != nil {
			return nil, err
		}
	}

	return &info, nil
}

// EnsureAppWebhook makes sure the app-level webhook registration exists:
// persisted record, registry entry and the Graph API subscription pointing
// at CallbackURL. Safe to call once per page setup; re-registration of the
// same webhook is a no-op.
func (c *Manager) EnsureAppWebhook(ctx context.Context, appID string) (*webhooks.AppWebhook, error) {

	app, err := c.Graph.App().GetAppInfo(ctx, appID)
	if err != nil {
		return nil, err
	}

	info, err := c.ensureAppInfo(ctx, app.Name)
	if err != nil {
		return nil, err
	}

	hook := &webhooks.AppWebhook{
		AppID:       appID,
		WebhookID:   info.WebhookID,
		VerifyToken: info.VerifyToken,
		AppName:     info.AppName,
	}
	fresh := c.Registry.App(appID) == nil
	if err = c.Registry.RegisterApp(hook); err != nil {
		// A sibling page under the same app registered the same webhook
		// already; only a *different* webhook id is a real conflict.
		return nil, err
	}

	err = c.Graph.App().SubscribeApp(ctx, appID, c.CallbackURL, info.VerifyToken)
	if err != nil {
		// Keep the registry in step with the Graph side: a record whose
		// remote registration never completed must not answer handshakes.
		// A record a sibling page already runs on stays.
		if fresh {
			c.Registry.DeregisterApp(appID)
		}
		return nil, err
	}

	c.Log.Info().
		Str("app-id", appID).
		Str("app", info.AppName).
		Str("callback", c.CallbackURL).
		Msg("WEBHOOK: APP SUBSCRIBED")
	return hook, nil
}

// resolvePageToken re-lists the user's pages and picks the access token
// of the requested one.
func (c *Manager) resolvePageToken(ctx context.Context, userToken, pageID string) (string, error) {

	pages, err := c.Graph.User(userToken).ListPages(ctx)
	if err != nil {
		return "", err
	}
	for _, page := range pages {
		if page.ID == pageID {
			return page.AccessToken, nil
		}
	}
	return "", errors.NotFound(
		"messenger.page.token.not_found",
		"messenger: page=%s token unable to be obtained", pageID,
	)
}

// Setup configures one page end to end: resolve its access token from the
// user's grant, fetch its profile, ensure the app-level webhook, subscribe
// the page to the "messages" field and install the routing subscription.
// Any Graph API failure aborts the setup and propagates to the caller.
func (c *Manager) Setup(ctx context.Context, userToken, pageID string) (*Subscription, error) {

	pageToken, err := c.resolvePageToken(ctx, userToken, pageID)
	if err != nil {
		return nil, err
	}

	page, err := c.Graph.Page(pageToken).GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}

	appID := page.AppID
	if appID == "" {
		appID = c.Graph.Config.ClientID
	}

	hook, err := c.EnsureAppWebhook(ctx, appID)
	if err != nil {
		return nil, err
	}

	if err = c.Graph.Page(pageToken).SubscribePage(ctx, pageID); err != nil {
		return nil, err
	}

	sub := &Subscription{
		PageID: pageID,
		AppID:  appID,
		Links: link.New(c.Notify, c.Log.With().
			Str("page-id", pageID).Logger()),
		log: c.Log.With().
			Str("page-id", pageID).Logger(),
	}
	sub.updatePage(page)
	sub.mu.Lock()
	sub.pageToken = pageToken
	sub.mu.Unlock()

	c.Registry.AddPage(&webhooks.Subscription{
		PageID:    pageID,
		PageName:  page.Name,
		AppID:     appID,
		AppSecret: c.Graph.Config.ClientSecret,
		Handler:   sub,
	})

	c.mu.Lock()
	c.subs[pageID] = sub
	c.mu.Unlock()

	c.Log.Info().
		Str("page-id", pageID).
		Str("page", page.Name).
		Str("webhook-id", hook.WebhookID).
		Msg("SETUP: PAGE LINKED")
	return sub, nil
}

// Remove tears the page down: routing entry, pending pairing codes,
// subscription record.
func (c *Manager) Remove(pageID string) {

	c.mu.Lock()
	sub, ok := c.subs[pageID]
	delete(c.subs, pageID)
	c.mu.Unlock()

	c.Registry.RemovePage(pageID)
	if ok {
		sub.Links.Clear()
		c.Log.Info().
			Str("page-id", pageID).
			Msg("SETUP: PAGE REMOVED")
	}
}

// CreateChallenge starts the pairing flow for the page: a fresh code is
// added to its pending set and shown to the user.
func (c *Manager) CreateChallenge(ctx context.Context, pageID string) (string, error) {

	sub := c.Subscription(pageID)
	if sub == nil {
		return "", errors.NotFound(
			"messenger.page.not_found",
			"messenger: page=%s not configured", pageID,
		)
	}
	return sub.Links.CreateChallenge(ctx, sub.PageName(), sub.PageURL())
}

// SendMessage delivers a text notification to the recipient PSID on behalf
// of the page.
func (c *Manager) SendMessage(ctx context.Context, pageID, recipientID, text string) (*graph.SendResult, error) {

	sub := c.Subscription(pageID)
	if sub == nil {
		return nil, errors.NotFound(
			"messenger.page.not_found",
			"messenger: page=%s not configured", pageID,
		)
	}
	return c.Graph.Page(sub.PageToken()).SendMessage(
		ctx, pageID, recipientID, &graph.Message{Text: text},
	)
}

// RefreshPageToken re-lists the pages granted to userToken and adopts the
// fresh access token for the page.
func (c *Manager) RefreshPageToken(ctx context.Context, userToken, pageID string) error {

	sub := c.Subscription(pageID)
	if sub == nil {
		return errors.NotFound(
			"messenger.page.not_found",
			"messenger: page=%s not configured", pageID,
		)
	}

	pageToken, err := c.resolvePageToken(ctx, userToken, pageID)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	sub.pageToken = pageToken
	sub.mu.Unlock()
	return nil
}
