package graph

import (
	"sync"

	"github.com/micro/micro/v3/service/errors"
)

// ErrMissingCredential is returned when an outbound call is issued with no
// armed credential, or Page() is selected before any page token was supplied.
var ErrMissingCredential = errors.BadRequest(
	"messenger.graph.credential.missing",
	"graph: no access credential selected; call User(), App() or Page() first",
)

// tokenContext arms exactly one access credential for the next outbound call.
// The armed value is consumed (and cleared) by that call, so a credential
// selected for one request can never leak into an unrelated one issued from
// the same shared client.
type tokenContext struct {
	mu    sync.Mutex
	armed bool
	token string
	err   error // deferred selection failure, surfaced on use
}

func (c *tokenContext) arm(token string, err error) {
	c.mu.Lock()
	c.armed = true
	c.token = token
	c.err = err
	c.mu.Unlock()
}

// use returns the armed token and resets the context to unset.
func (c *tokenContext) use() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return "", ErrMissingCredential
	}
	token, err := c.token, c.err
	c.armed = false
	c.token = ""
	c.err = nil
	return token, err
}

// User arms the client with a user access token for the next call.
// With no argument the token captured from the OAuth session is used.
func (c *Client) User(token ...string) *Client {
	use := c.userToken
	if len(token) != 0 && token[0] != "" {
		use = token[0]
	}
	if use == "" {
		c.creds.arm("", ErrMissingCredential)
		return c
	}
	c.creds.arm(use, nil)
	return c
}

// App arms the client with an app access token for the next call.
// With no argument the "client_id|client_secret" form is synthesized.
func (c *Client) App(token ...string) *Client {
	use := ""
	if len(token) != 0 {
		use = token[0]
	}
	if use == "" {
		use = c.Config.ClientID + "|" + c.Config.ClientSecret
	}
	c.creds.arm(use, nil)
	return c
}

// Page arms the client with a page access token for the next call.
// Fails on use when no page token was ever supplied.
func (c *Client) Page(token ...string) *Client {
	use := ""
	if len(token) != 0 {
		use = token[0]
	}
	if use == "" {
		c.pageMu.Lock()
		use = c.pageToken
		c.pageMu.Unlock()
	}
	if use == "" {
		c.creds.arm("", ErrMissingCredential)
		return c
	}
	c.creds.arm(use, nil)
	return c
}

// SetPageToken stores the page access token assigned after the OAuth flow.
func (c *Client) SetPageToken(token string) {
	c.pageMu.Lock()
	c.pageToken = token
	c.pageMu.Unlock()
}
