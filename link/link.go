// Package link resolves short-lived pairing codes to platform-scoped
// sender identifiers: the user is shown a code, messages it to the page,
// and the inbound message ties the code to their PSID.
package link

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/megabytemb/messenger-link/notify"
)

const notificationTitle = "Match Facebook Account"

// GenerateCode returns a pairing code of the DDD-DDD form, from independent
// digit draws. The code is a short-lived, user-visible capability shown to
// a human, not a secret; non-cryptographic randomness is fine here.
func GenerateCode() string {
	code := make([]byte, 0, 7)
	for i := 0; i < 6; i++ {
		if i == 3 {
			code = append(code, '-')
		}
		code = append(code, byte('0'+rand.Intn(10)))
	}
	return string(code)
}

// Registry is one subscription's flat set of outstanding pairing codes.
// No expiry: a code lives until matched or until the subscription is
// torn down. Check-and-remove is atomic under the mutex.
type Registry struct {
	mu    sync.Mutex
	codes map[string]struct{}

	notifier notify.Notifier
	log      zerolog.Logger
}

func New(notifier notify.Notifier, log zerolog.Logger) *Registry {
	return &Registry{
		codes:    make(map[string]struct{}),
		notifier: notifier,
		log:      log,
	}
}

// CreateChallenge generates a fresh code, adds it to the pending set and
// prompts the user to message it to the page.
func (c *Registry) CreateChallenge(ctx context.Context, pageName, pageURL string) (string, error) {

	code := GenerateCode()

	c.mu.Lock()
	c.codes[code] = struct{}{}
	c.mu.Unlock()

	message := fmt.Sprintf(
		"To link your Facebook account, navigate to the Facebook page %q at %s and message it this code: %s",
		pageName, pageURL, code,
	)
	err := c.notifier.Create(ctx, message, notificationTitle, promptID(code))
	if err != nil {
		return "", err
	}

	c.log.Info().
		Str("page", pageName).
		Str("code", code).
		Msg("LINK: CHALLENGE")
	return code, nil
}

// TryMatch consumes the code when text is exactly one of the pending codes:
// the code is removed, a "resolved" notification carrying the code→sender
// mapping is raised and the original prompt is dismissed. Most inbound
// messages are not pairing codes; those report false, not an error.
func (c *Registry) TryMatch(ctx context.Context, pageName, text, senderID string) bool {

	c.mu.Lock()
	_, ok := c.codes[text]
	if ok {
		delete(c.codes, text)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	message := fmt.Sprintf(
		"The Facebook sender ID for code %s on page %q is: %s",
		text, pageName, senderID,
	)
	if err := c.notifier.Create(ctx, message, notificationTitle, uuid.NewString()); err != nil {
		c.log.Err(err).Msg("LINK: NOTIFY")
	}
	if err := c.notifier.Dismiss(ctx, promptID(text)); err != nil {
		c.log.Err(err).Msg("LINK: DISMISS")
	}

	c.log.Info().
		Str("page", pageName).
		Str("code", text).
		Str("sender-id", senderID).
		Msg("LINK: RESOLVED")
	return true
}

// Pending returns a snapshot of the outstanding codes.
func (c *Registry) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	codes := make([]string, 0, len(c.codes))
	for code := range c.codes {
		codes = append(codes, code)
	}
	return codes
}

// Clear drops all outstanding codes; subscription teardown.
func (c *Registry) Clear() {
	c.mu.Lock()
	c.codes = make(map[string]struct{})
	c.mu.Unlock()
}

func promptID(code string) string {
	return "messenger_link_" + code
}
