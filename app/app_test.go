package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/megabytemb/messenger-link/graph"
	"github.com/megabytemb/messenger-link/store"
	"github.com/megabytemb/messenger-link/webhooks"
)

type fakeNotifier struct {
	mu        sync.Mutex
	created   []string
	dismissed []string
}

func (c *fakeNotifier) Create(_ context.Context, message, _, _ string) error {
	c.mu.Lock()
	c.created = append(c.created, message)
	c.mu.Unlock()
	return nil
}

func (c *fakeNotifier) Dismiss(_ context.Context, id string) error {
	c.mu.Lock()
	c.dismissed = append(c.dismissed, id)
	c.mu.Unlock()
	return nil
}

func (c *fakeNotifier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.created...)
}

// graphStub emulates the handful of Graph API endpoints Setup touches.
type graphStub struct {
	mu            sync.Mutex
	appSubscribed int
	pageSubsribed int
	failAppSub    bool
}

func (c *graphStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch {
		case r.URL.Path == "/v17.0/me/accounts":
			_, _ = w.Write([]byte(`{"data":[{"id":"100","name":"My Page","access_token":"PAGE_TOKEN"}]}`))

		case r.URL.Path == "/v17.0/100":
			_, _ = w.Write([]byte(`{"id":"100","name":"My Page","link":"https://fb.com/my-page","app_id":"42","followers_count":7}`))

		case r.URL.Path == "/v17.0/42" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"42","name":"Linker App","link":"https://fb.com/app","photo_url":"https://cdn/app.png","weekly_active_users":3}`))

		case r.URL.Path == "/v17.0/42/subscriptions":
			if c.failAppSub {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","code":1}}`))
				return
			}
			c.appSubscribed++
			_, _ = w.Write([]byte(`{"success":true}`))

		case r.URL.Path == "/v17.0/100/subscribed_apps":
			c.pageSubsribed++
			_, _ = w.Write([]byte(`{"success":true}`))

		default:
			t.Errorf("unexpected graph call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestManager(t *testing.T) (*Manager, *graphStub, *fakeNotifier) {
	t.Helper()

	stub := &graphStub{}
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	client := graph.New(oauth2.Config{
		ClientID:     "42",
		ClientSecret: "app-secret",
	}, graph.WithBaseURL(srv.URL))

	notifier := &fakeNotifier{}
	mgr := NewManager(
		client,
		webhooks.NewRegistry(),
		&store.Memory{},
		notifier,
		"https://example.com/api/messenger/webhook",
		zerolog.Nop(),
	)
	return mgr, stub, notifier
}

func TestManagerSetup(t *testing.T) {

	mgr, stub, _ := newTestManager(t)
	ctx := context.Background()

	sub, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	assert.Equal(t, "100", sub.PageID)
	assert.Equal(t, "42", sub.AppID)
	assert.Equal(t, "My Page", sub.PageName())
	assert.Equal(t, "https://fb.com/my-page", sub.PageURL())
	assert.Equal(t, "PAGE_TOKEN", sub.PageToken())
	assert.Equal(t, int64(7), sub.FollowersCount())

	assert.Equal(t, 1, stub.appSubscribed)
	assert.Equal(t, 1, stub.pageSubsribed)

	// Routing is installed and the handshake token registered.
	routed := mgr.Registry.Lookup("100")
	require.NotNil(t, routed)
	assert.Equal(t, "app-secret", routed.AppSecret)

	// The persisted webhook record survives and stays stable.
	blob, err := mgr.Store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(blob), "webhook_id")
	assert.Contains(t, string(blob), "Linker App")
}

func TestManagerSetupUnknownPage(t *testing.T) {

	mgr, _, _ := newTestManager(t)

	_, err := mgr.Setup(context.Background(), "USER_TOKEN", "404")
	require.Error(t, err)
	assert.Nil(t, mgr.Subscription("404"))
}

func TestManagerSetupAbortsOnRemoteError(t *testing.T) {

	mgr, stub, _ := newTestManager(t)
	stub.failAppSub = true

	_, err := mgr.Setup(context.Background(), "USER_TOKEN", "100")
	require.Error(t, err)

	var re *graph.APIError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)

	// Aborted setup leaves no routing behind, and the half-registered
	// app record must not answer handshakes.
	assert.Nil(t, mgr.Subscription("100"))
	assert.Nil(t, mgr.Registry.Lookup("100"))
	assert.Nil(t, mgr.Registry.App("42"))

	blob, err := mgr.Store.Load(context.Background())
	require.NoError(t, err)
	var info appInfo
	require.NoError(t, json.Unmarshal(blob, &info))
	assert.False(t, mgr.Registry.VerifyToken(info.VerifyToken))
}

func TestManagerEnsureAppWebhookKeepsSiblingRegistration(t *testing.T) {

	mgr, stub, _ := newTestManager(t)
	ctx := context.Background()

	// First page registered the app webhook for real.
	_, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	// A later re-registration fails remotely; the record the first
	// page runs on stays routed.
	stub.failAppSub = true
	_, err = mgr.EnsureAppWebhook(ctx, "42")
	require.Error(t, err)

	hook := mgr.Registry.App("42")
	require.NotNil(t, hook)
	assert.True(t, mgr.Registry.VerifyToken(hook.VerifyToken))
}

func TestManagerEnsureAppWebhookIdempotent(t *testing.T) {

	mgr, stub, _ := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.EnsureAppWebhook(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, first.WebhookID, tokenBytes*2)
	assert.Len(t, first.VerifyToken, tokenBytes*2)

	// A sibling page under the same app: same record, no conflict.
	second, err := mgr.EnsureAppWebhook(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, first.WebhookID, second.WebhookID)
	assert.Equal(t, first.VerifyToken, second.VerifyToken)
	assert.Equal(t, 2, stub.appSubscribed)
}

func TestManagerRemove(t *testing.T) {

	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	sub, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	_, err = mgr.CreateChallenge(ctx, "100")
	require.NoError(t, err)
	require.NotEmpty(t, sub.Links.Pending())

	mgr.Remove("100")
	assert.Nil(t, mgr.Subscription("100"))
	assert.Nil(t, mgr.Registry.Lookup("100"))
	assert.Empty(t, sub.Links.Pending())
}

func TestManagerPairingEndToEnd(t *testing.T) {

	mgr, _, notifier := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	code, err := mgr.CreateChallenge(ctx, "100")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{3}-\d{3}$`, code)

	// Inbound delivery carrying exactly the pairing code, correctly signed.
	body := `{"object":"page","entry":[{"id":"100","messaging":[` +
		`{"sender":{"id":"999"},"message":{"text":"` + code + `"}}]}]}`

	hook := webhooks.NewDispatcher(mgr.Registry, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set(webhooks.SignatureHeader,
		webhooks.Signature([]byte("app-secret"), []byte(body)))
	rec := httptest.NewRecorder()
	hook.ServeHTTP(rec, req)
	hook.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)

	sub := mgr.Subscription("100")
	assert.NotContains(t, sub.Links.Pending(), code)

	messages := notifier.messages()
	require.Len(t, messages, 2) // prompt + resolved
	assert.Contains(t, messages[1], code)
	assert.Contains(t, messages[1], "999")
}

func TestSubscriptionHandleEntrySkips(t *testing.T) {

	mgr, _, notifier := newTestManager(t)
	ctx := context.Background()

	sub, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	code, err := mgr.CreateChallenge(ctx, "100")
	require.NoError(t, err)

	entry := &webhooks.Entry{
		ID: "100",
		Messaging: []*webhooks.Messaging{
			{Sender: &webhooks.Account{ID: "999"}}, // no message
			{Sender: &webhooks.Account{ID: "999"},
				Message: &webhooks.Message{Text: code, IsEcho: true}}, // our echo
			{Message: &webhooks.Message{Text: code}}, // no sender
		},
	}
	require.NoError(t, sub.HandleEntry(ctx, "page", entry))

	// None of the above consumed the code.
	assert.Contains(t, sub.Links.Pending(), code)
	assert.Len(t, notifier.messages(), 1)
}

func TestManagerRefreshPage(t *testing.T) {

	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	sub, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	sub.mu.Lock()
	sub.followersCount = 0
	sub.mu.Unlock()

	require.NoError(t, mgr.RefreshPage(ctx, sub))
	assert.Equal(t, int64(7), sub.FollowersCount())
}

func TestManagerSendMessage(t *testing.T) {

	stub := &graphStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v17.0/100/messages" {
			assert.Equal(t, "PAGE_TOKEN", r.URL.Query().Get(graph.ParamAccessToken))
			_, _ = w.Write([]byte(`{"recipient_id":"999","message_id":"m_1"}`))
			return
		}
		stub.handler(t)(w, r)
	}))
	t.Cleanup(srv.Close)

	client := graph.New(oauth2.Config{
		ClientID:     "42",
		ClientSecret: "app-secret",
	}, graph.WithBaseURL(srv.URL))

	mgr := NewManager(
		client, webhooks.NewRegistry(), &store.Memory{}, &fakeNotifier{},
		"https://example.com/hook", zerolog.Nop(),
	)

	ctx := context.Background()
	_, err := mgr.Setup(ctx, "USER_TOKEN", "100")
	require.NoError(t, err)

	sent, err := mgr.SendMessage(ctx, "100", "999", "your update")
	require.NoError(t, err)
	assert.Equal(t, "m_1", sent.MessageID)

	_, err = mgr.SendMessage(ctx, "404", "999", "nope")
	require.Error(t, err)
}

func TestRandomHexToken(t *testing.T) {
	token := RandomHexToken(tokenBytes)
	assert.Len(t, token, tokenBytes*2)
	assert.NotEqual(t, token, RandomHexToken(tokenBytes))
	assert.Regexp(t, "^[0-9a-f]+$", token)
}
