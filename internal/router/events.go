package router

import (
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
)

// TextEvent is a free-text message from a user.
type TextEvent struct {
	UserID string
	ChatID string
	Text   string
}

// ActionEvent is a button press with its parameters already decoded.
// Callback payloads are parsed exactly once, here at the boundary;
// handlers never see the delimited wire string.
type ActionEvent struct {
	UserID string
	ChatID string
	Name   string
	Args   []string
}

// Arg returns the i-th argument, "" when absent.
func (e ActionEvent) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// Encode builds the callback payload for a button. The inverse of
// DecodeAction; flows use it when laying out keyboards.
func Encode(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + ":" + strings.Join(args, ":")
}

// decodeCommand parses "/start extra words" into ("start", ["extra",
// "words"], true). Non-command text returns ok=false. The "@botname"
// suffix Telegram appends in group chats is stripped.
func decodeCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 || fields[0] == "" {
		return "", nil, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}

// DecodeAction splits a callback payload into name and arguments.
func DecodeAction(data string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}

// FromUpdate converts a raw chat update into a typed event.
// Returns (TextEvent or ActionEvent, true), or (nil, false) for
// updates the router does not consume. Slash commands ("/start")
// become action events named after the command, so the same handler
// registry serves commands and buttons.
func FromUpdate(upd chat.Update) (any, bool) {
	switch upd.Kind {
	case chat.UpdateText:
		if upd.Text == "" {
			return nil, false
		}
		if name, args, ok := decodeCommand(upd.Text); ok {
			return ActionEvent{UserID: upd.UserID, ChatID: upd.ChatID, Name: name, Args: args}, true
		}
		return TextEvent{UserID: upd.UserID, ChatID: upd.ChatID, Text: upd.Text}, true
	case chat.UpdateCallback:
		name, args := DecodeAction(upd.CallbackData)
		if name == "" {
			return nil, false
		}
		return ActionEvent{UserID: upd.UserID, ChatID: upd.ChatID, Name: name, Args: args}, true
	}
	return nil, false
}
