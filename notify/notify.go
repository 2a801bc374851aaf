// Package notify abstracts the host platform's user-facing
// notification channel.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier creates and dismisses user-visible notifications.
// Host platforms plug their own implementation in; the id is a stable
// handle so a notification can be dismissed later.
type Notifier interface {
	Create(ctx context.Context, message, title, id string) error
	Dismiss(ctx context.Context, id string) error
}

// LogNotifier writes notifications to the log. Default when the host
// provides no channel of its own.
type LogNotifier struct {
	Log zerolog.Logger
}

func (c *LogNotifier) Create(_ context.Context, message, title, id string) error {
	c.Log.Info().
		Str("title", title).
		Str("id", id).
		Msg(message)
	return nil
}

func (c *LogNotifier) Dismiss(_ context.Context, id string) error {
	c.Log.Debug().
		Str("id", id).
		Msg("NOTIFY: DISMISS")
	return nil
}
