// Package publish fans a composed report out to its resolved channels
// and keeps the recorded postings consistent across edits: Update
// deletes every previously recorded message before re-publishing
// against the current target resolution.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fieldops/reportbot/internal/chat"
)

// Engine performs fan-out publish, update, and plain notification sends.
type Engine struct {
	client   chat.Client
	resolver *Resolver
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(log *slog.Logger, client chat.Client, resolver *Resolver) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		client:   client,
		resolver: resolver,
		logger:   log.With(slog.String("service", "publish")),
	}
}

// Publish resolves targets for doc and sends it to each, concurrently.
// Channel sends are independent: a failure on one channel is logged,
// counted, and omitted from the map, never rolled back. The returned
// map holds only the sends that succeeded.
func (e *Engine) Publish(ctx context.Context, doc Document) (Result, error) {
	targets, err := e.resolver.ResolveTargets(ctx, doc.ObjectName, doc.OrgName)
	if err != nil {
		return Result{}, err
	}
	return e.sendAll(ctx, doc, targets), nil
}

// Update removes every posting recorded in prev (best-effort, failures
// ignored) and then publishes doc against the current resolution, which
// may differ from the one prev was built with. The caller persists the
// returned map as a wholesale replacement of prev.
func (e *Engine) Update(ctx context.Context, doc Document, prev ChannelMessageMap) (Result, error) {
	for channel, messageIDs := range prev {
		for _, id := range messageIDs {
			if err := e.client.DeleteMessage(ctx, channel, id); err != nil {
				e.logger.Debug("delete old posting failed",
					slog.String("channel", channel),
					slog.Int("message_id", id),
					slog.Any("error", err),
				)
			}
		}
	}
	return e.Publish(ctx, doc)
}

// Delete removes every posting recorded in m, best-effort.
func (e *Engine) Delete(ctx context.Context, m ChannelMessageMap) {
	for channel, messageIDs := range m {
		for _, id := range messageIDs {
			if err := e.client.DeleteMessage(ctx, channel, id); err != nil {
				e.logger.Debug("delete posting failed",
					slog.String("channel", channel),
					slog.Int("message_id", id),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Notify sends plain reminder text to one chat: no buttons, no tracked
// message lifecycle, single attempt.
func (e *Engine) Notify(ctx context.Context, chatID, text string) error {
	_, err := e.client.SendMessage(ctx, chatID, text, nil)
	return err
}

func (e *Engine) sendAll(ctx context.Context, doc Document, targets []string) Result {
	text := ComposeBody(doc)
	result := Result{Map: ChannelMessageMap{}}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			ids, err := e.sendOne(ctx, channel, text, doc.PhotoIDs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("channel send failed",
					slog.String("channel", channel),
					slog.String("document_id", doc.ID),
					slog.Any("error", err),
				)
				result.Failed++
				result.FailedChannels = append(result.FailedChannels, channel)
				return
			}
			result.Map[channel] = ids
			result.Sent++
		}(target)
	}
	wg.Wait()
	return result
}

func (e *Engine) sendOne(ctx context.Context, channel, text string, photoIDs []string) ([]int, error) {
	if len(photoIDs) > 0 {
		// Text rides as the album caption so the posting is one atomic group.
		return e.client.SendMediaGroup(ctx, channel, photoIDs, text)
	}
	id, err := e.client.SendMessage(ctx, channel, text, nil)
	if err != nil {
		return nil, err
	}
	return []int{id}, nil
}

// ComposeBody renders the report document as channel text.
func ComposeBody(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report — %s\n", doc.Date.Format("02.01.2006"))
	if doc.ObjectName != "" {
		fmt.Fprintf(&b, "Object: %s\n", doc.ObjectName)
	}
	if doc.AuthorName != "" {
		if doc.Position != "" {
			fmt.Fprintf(&b, "Author: %s (%s)\n", doc.AuthorName, doc.Position)
		} else {
			fmt.Fprintf(&b, "Author: %s\n", doc.AuthorName)
		}
	}
	if doc.WorkDone != "" {
		fmt.Fprintf(&b, "\nWork done:\n%s\n", doc.WorkDone)
	}
	if doc.Materials != "" {
		fmt.Fprintf(&b, "\nMaterials:\n%s\n", doc.Materials)
	}
	return strings.TrimRight(b.String(), "\n")
}
