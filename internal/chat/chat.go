// Package chat defines the platform-neutral chat surface the bot core
// talks to: message content, inline keyboards, inbound updates, and the
// Client interface implemented by concrete platform adapters.
package chat

import (
	"context"
	"strings"
	"time"
)

// Button is one inline keyboard button. Data is the encoded action
// payload delivered back in a callback update.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a button layout, one slice per row.
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// IsEmpty reports whether the keyboard has no buttons.
func (k *Keyboard) IsEmpty() bool {
	return k == nil || len(k.Rows) == 0
}

// Content is what a single render sends to one chat: text plus an
// optional inline keyboard.
type Content struct {
	Text     string
	Keyboard *Keyboard
}

// UpdateKind discriminates inbound updates.
type UpdateKind string

const (
	UpdateText     UpdateKind = "text"
	UpdateCallback UpdateKind = "callback"
)

// Update is one raw inbound interaction from the platform. UserID and
// ChatID are opaque platform identifiers; CallbackData is only set for
// callback updates, Text only for text updates.
type Update struct {
	Kind         UpdateKind
	UserID       string
	ChatID       string
	MessageID    int
	Text         string
	CallbackData string
	ReceivedAt   time.Time
}

// Handler consumes inbound updates from a listening client.
type Handler func(ctx context.Context, upd Update)

// Client is the outbound chat surface. All calls are single-attempt and
// fallible; callers treat failures as best-effort per the publish and
// render contracts.
type Client interface {
	SendMessage(ctx context.Context, chatID, text string, kb *Keyboard) (int, error)
	SendMediaGroup(ctx context.Context, chatID string, photoIDs []string, caption string) ([]int, error)
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
}

// Photo references ride in the Update.Text channel with a marker prefix
// so the core stays platform-neutral. Adapters wrap inbound photo file
// ids with PhotoText; wizard steps that accept photos strip the marker
// with PhotoRef.
const photoMarker = "\x00photo:"

// PhotoText wraps a photo file id for delivery as update text.
func PhotoText(fileID string) string {
	return photoMarker + fileID
}

// PhotoRef extracts a photo file id from update text, if present.
func PhotoRef(text string) (string, bool) {
	if strings.HasPrefix(text, photoMarker) {
		return strings.TrimPrefix(text, photoMarker), true
	}
	return "", false
}

// SummarizeText shortens text for log lines.
func SummarizeText(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	const limit = 60
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
