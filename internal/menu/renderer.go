// Package menu renders the single live interactive message per user:
// every render first deletes the previously tracked messages, then
// sends the new content and records its id on the session.
package menu

import (
	"context"
	"log/slog"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/session"
)

// Renderer maintains the at-most-one-menu invariant for a chat surface.
type Renderer struct {
	client chat.Client
	logger *slog.Logger
}

// NewRenderer creates a Renderer on top of the given chat client.
func NewRenderer(log *slog.Logger, client chat.Client) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		client: client,
		logger: log.With(slog.String("service", "menu")),
	}
}

// Render deletes every tracked message for the session's chat, sends
// content, and tracks the new message id. Deletion failures (message
// already gone, missing permission) are logged and swallowed; they never
// abort the render. After Render returns the chat shows exactly the new
// content, best-effort against platform-side races.
func (r *Renderer) Render(ctx context.Context, sess *session.Session, chatID string, content chat.Content) (int, error) {
	for _, id := range sess.TrackedIDs {
		if err := r.client.DeleteMessage(ctx, chatID, id); err != nil {
			r.logger.Debug("delete tracked message failed",
				slog.String("chat_id", chatID),
				slog.Int("message_id", id),
				slog.Any("error", err),
			)
		}
	}
	sess.TrackedIDs = nil

	messageID, err := r.client.SendMessage(ctx, chatID, content.Text, content.Keyboard)
	if err != nil {
		return 0, err
	}
	sess.TrackedIDs = append(sess.TrackedIDs, messageID)
	sess.ChatID = chatID
	return messageID, nil
}

// Discard deletes every tracked message for the session without sending
// a replacement. It runs when a session is dropped while its menu is
// still live in the chat, so the menu does not outlive the session.
// Failures are logged and swallowed, same as in Render.
func (r *Renderer) Discard(ctx context.Context, sess *session.Session) {
	for _, id := range sess.TrackedIDs {
		if err := r.client.DeleteMessage(ctx, sess.ChatID, id); err != nil {
			r.logger.Debug("delete tracked message failed",
				slog.String("chat_id", sess.ChatID),
				slog.Int("message_id", id),
				slog.Any("error", err),
			)
		}
	}
	sess.TrackedIDs = nil
}
