package link

import (
	"context"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRE = regexp.MustCompile(`^\d{3}-\d{3}$`)

type fakeNotifier struct {
	created   []string // messages
	ids       []string
	dismissed []string
}

func (c *fakeNotifier) Create(_ context.Context, message, _, id string) error {
	c.created = append(c.created, message)
	c.ids = append(c.ids, id)
	return nil
}

func (c *fakeNotifier) Dismiss(_ context.Context, id string) error {
	c.dismissed = append(c.dismissed, id)
	return nil
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Regexp(t, codeRE, GenerateCode())
	}
}

func TestChallengeRoundTrip(t *testing.T) {

	ctx := context.Background()
	notifier := &fakeNotifier{}
	links := New(notifier, zerolog.Nop())

	code, err := links.CreateChallenge(ctx, "My Page", "https://fb.com/my-page")
	require.NoError(t, err)
	assert.Regexp(t, codeRE, code)
	assert.Contains(t, links.Pending(), code)

	require.Len(t, notifier.created, 1)
	assert.Contains(t, notifier.created[0], code)
	assert.Contains(t, notifier.created[0], "My Page")

	// Exact inbound text consumes the code exactly once.
	assert.True(t, links.TryMatch(ctx, "My Page", code, "999"))
	assert.NotContains(t, links.Pending(), code)

	require.Len(t, notifier.created, 2)
	assert.Contains(t, notifier.created[1], code)
	assert.Contains(t, notifier.created[1], "999")
	// The original prompt is dismissed.
	require.Len(t, notifier.dismissed, 1)
	assert.Equal(t, notifier.ids[0], notifier.dismissed[0])

	// Second identical message: already consumed.
	assert.False(t, links.TryMatch(ctx, "My Page", code, "999"))
}

func TestTryMatchNonCode(t *testing.T) {

	ctx := context.Background()
	notifier := &fakeNotifier{}
	links := New(notifier, zerolog.Nop())

	_, err := links.CreateChallenge(ctx, "My Page", "https://fb.com/my-page")
	require.NoError(t, err)

	// Ordinary chatter is not an error, just no match.
	assert.False(t, links.TryMatch(ctx, "My Page", "hello there", "999"))
	assert.Len(t, links.Pending(), 1)
}

func TestClear(t *testing.T) {

	ctx := context.Background()
	links := New(&fakeNotifier{}, zerolog.Nop())

	code, err := links.CreateChallenge(ctx, "My Page", "")
	require.NoError(t, err)

	links.Clear()
	assert.Empty(t, links.Pending())
	assert.False(t, links.TryMatch(ctx, "My Page", code, "999"))
}
