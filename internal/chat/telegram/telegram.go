// Package telegram implements the chat.Client interface and inbound
// long-poll listening on top of the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/fieldops/reportbot/internal/chat"
)

// Client drives a single Telegram bot. Outbound calls share one rate
// limiter so fan-out bursts stay under the platform send cap.
type Client struct {
	bot         *tgbotapi.BotAPI
	limiter     *rate.Limiter
	pollTimeout int
	logger      *slog.Logger
}

// New connects the bot API with the given token. ratePerSec caps
// outbound sends across all goroutines.
func New(log *slog.Logger, token string, pollTimeout, ratePerSec int) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	if ratePerSec <= 0 {
		ratePerSec = 25
	}
	return &Client{
		bot:         bot,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		pollTimeout: pollTimeout,
		logger:      log.With(slog.String("adapter", "telegram")),
	}, nil
}

// Listen consumes the long-poll update feed until ctx is cancelled.
// Each update is handed to handler on the calling goroutine; ordering
// per chat follows Telegram's own update ordering.
func (c *Client) Listen(ctx context.Context, handler chat.Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(updateConfig)
	c.logger.Info("listening", slog.String("bot", c.bot.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("stop")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("updates channel closed")
				return nil
			}
			upd, ok := decodeUpdate(update)
			if !ok {
				continue
			}
			if upd.Kind == chat.UpdateCallback && update.CallbackQuery != nil {
				// Ack the press so the client stops the spinner; failures are harmless.
				if _, err := c.bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
					c.logger.Debug("callback ack failed", slog.Any("error", err))
				}
			}
			c.logger.Debug(
				"inbound",
				slog.String("kind", string(upd.Kind)),
				slog.String("user_id", upd.UserID),
				slog.String("chat_id", upd.ChatID),
				slog.String("text", chat.SummarizeText(upd.Text+upd.CallbackData)),
			)
			handler(ctx, upd)
		}
	}
}

func decodeUpdate(update tgbotapi.Update) (chat.Update, bool) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		chatID := ""
		messageID := 0
		if cb.Message != nil {
			messageID = cb.Message.MessageID
			if cb.Message.Chat != nil {
				chatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
			}
		}
		return chat.Update{
			Kind:         chat.UpdateCallback,
			UserID:       strconv.FormatInt(cb.From.ID, 10),
			ChatID:       chatID,
			MessageID:    messageID,
			CallbackData: strings.TrimSpace(cb.Data),
			ReceivedAt:   time.Now().UTC(),
		}, true
	}
	if update.Message != nil {
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return chat.Update{}, false
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			text = strings.TrimSpace(msg.Caption)
		}
		if len(msg.Photo) > 0 {
			text = chat.PhotoText(pickPhoto(msg.Photo).FileID)
		}
		if text == "" {
			return chat.Update{}, false
		}
		return chat.Update{
			Kind:       chat.UpdateText,
			UserID:     strconv.FormatInt(msg.From.ID, 10),
			ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
			MessageID:  msg.MessageID,
			Text:       text,
			ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
		}, true
	}
	return chat.Update{}, false
}

func pickPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// SendMessage sends text with an optional inline keyboard and returns
// the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, kb *chat.Keyboard) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if strings.HasPrefix(chatID, "@") {
		message := tgbotapi.NewMessageToChannel(chatID, text)
		if !kb.IsEmpty() {
			message.ReplyMarkup = buildKeyboard(kb)
		}
		sent, err := c.bot.Send(message)
		if err != nil {
			return 0, err
		}
		return sent.MessageID, nil
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}
	message := tgbotapi.NewMessage(id, text)
	if !kb.IsEmpty() {
		message.ReplyMarkup = buildKeyboard(kb)
	}
	sent, err := c.bot.Send(message)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendMediaGroup sends photos as one atomic album with the caption on
// the first item and returns all message ids.
func (c *Client) SendMediaGroup(ctx context.Context, chatID string, photoIDs []string, caption string) ([]int, error) {
	if len(photoIDs) == 0 {
		return nil, fmt.Errorf("media group requires at least one photo")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	media := make([]interface{}, 0, len(photoIDs))
	for i, fileID := range photoIDs {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(fileID))
		if i == 0 {
			photo.Caption = caption
		}
		media = append(media, photo)
	}
	group := tgbotapi.MediaGroupConfig{Media: media}
	if strings.HasPrefix(chatID, "@") {
		group.ChannelUsername = chatID
	} else {
		id, err := parseChatID(chatID)
		if err != nil {
			return nil, err
		}
		group.ChatID = id
	}
	sent, err := c.bot.SendMediaGroup(group)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(sent))
	for _, msg := range sent {
		ids = append(ids, msg.MessageID)
	}
	return ids, nil
}

// DeleteMessage removes one message; Telegram rejects deletes of
// messages older than 48h, which callers treat as best-effort.
func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	del := tgbotapi.DeleteMessageConfig{MessageID: messageID}
	if strings.HasPrefix(chatID, "@") {
		del.ChannelUsername = chatID
	} else {
		id, err := parseChatID(chatID)
		if err != nil {
			return err
		}
		del.ChatID = id
	}
	_, err := c.bot.Request(del)
	return err
}

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram target must be @username or chat_id")
	}
	return id, nil
}

func buildKeyboard(kb *chat.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
