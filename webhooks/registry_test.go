package webhooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPages(t *testing.T) {

	reg := NewRegistry()
	sub := &Subscription{PageID: "100", AppID: "42", AppSecret: "s"}

	assert.Nil(t, reg.Lookup("100"))

	reg.AddPage(sub)
	assert.Same(t, sub, reg.Lookup("100"))
	assert.Nil(t, reg.Lookup("200"))

	removed := reg.RemovePage("100")
	assert.Same(t, sub, removed)
	assert.Nil(t, reg.Lookup("100"))
	assert.Nil(t, reg.RemovePage("100"))
}

func TestRegistryAppIdempotent(t *testing.T) {

	reg := NewRegistry()
	hook := &AppWebhook{AppID: "42", WebhookID: "wh-1", VerifyToken: "abc"}

	require.NoError(t, reg.RegisterApp(hook))
	// Sibling subscription under the same app re-registers: benign no-op.
	require.NoError(t, reg.RegisterApp(&AppWebhook{AppID: "42", WebhookID: "wh-1", VerifyToken: "abc"}))

	// A different webhook id must not silently reroute the app.
	err := reg.RegisterApp(&AppWebhook{AppID: "42", WebhookID: "wh-2", VerifyToken: "xyz"})
	assert.True(t, errors.Is(err, ErrWebhookConflict))
	// Original verify token still routes the handshake.
	assert.True(t, reg.VerifyToken("abc"))
	assert.False(t, reg.VerifyToken("xyz"))

	reg.DeregisterApp("42")
	assert.False(t, reg.VerifyToken("abc"))
}

func TestRegistryVerifyToken(t *testing.T) {

	reg := NewRegistry()
	require.NoError(t, reg.RegisterApp(&AppWebhook{AppID: "42", WebhookID: "wh-1", VerifyToken: "abc"}))
	require.NoError(t, reg.RegisterApp(&AppWebhook{AppID: "43", WebhookID: "wh-2", VerifyToken: "def"}))

	assert.True(t, reg.VerifyToken("abc"))
	assert.True(t, reg.VerifyToken("def"))
	assert.False(t, reg.VerifyToken(""))
	assert.False(t, reg.VerifyToken("nope"))
}
