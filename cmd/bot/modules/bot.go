package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/chat/telegram"
	"github.com/fieldops/reportbot/internal/config"
	"github.com/fieldops/reportbot/internal/flows"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/reminder"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/users"
	"github.com/fieldops/reportbot/internal/wizard"
)

var BotModule = fx.Module(
	"Bot",
	fx.Provide(
		provideTelegramClient,
		fx.Annotate(func(c *telegram.Client) *telegram.Client { return c },
			fx.As(new(chat.Client))),
		provideSessionStore,
		menu.NewRenderer,
		wizard.NewEngine,
		flows.New,
		provideRouter,
	),
	fx.Invoke(
		registerFlows,
		startListener,
		startReminder,
	),
)

func provideTelegramClient(log *slog.Logger, cfg config.Config) (*telegram.Client, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram bot_token required in config")
	}
	return telegram.New(log, cfg.Telegram.BotToken, cfg.Telegram.PollTimeout, cfg.Telegram.SendRatePerSec)
}

func provideSessionStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config,
	renderer *menu.Renderer) (*session.Store, error) {
	idleTTL, err := time.ParseDuration(cfg.Session.IdleTTL)
	if err != nil {
		return nil, fmt.Errorf("parse session idle ttl: %w", err)
	}
	store := session.NewStore(log, idleTTL)
	// An evicted session may still show a menu in the chat; drop it so
	// the next interaction starts with a clean surface.
	store.SetOnEvict(func(sess *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		renderer.Discard(ctx, sess)
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store, nil
}

func provideRouter(log *slog.Logger, store *session.Store, engine *wizard.Engine,
	renderer *menu.Renderer, usersService *users.Service) *router.Router {
	return router.New(log, store, engine, renderer, usersService)
}

func registerFlows(f *flows.Flows, r *router.Router) {
	f.Register(r)
}

func startListener(lc fx.Lifecycle, client *telegram.Client, r *router.Router,
	shutdowner fx.Shutdowner, log *slog.Logger) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				if err := client.Listen(ctx, func(ctx context.Context, upd chat.Update) {
					// Each update runs on its own goroutine; the session
					// in-flight marker serializes per user.
					go r.HandleUpdate(ctx, upd)
				}); err != nil && ctx.Err() == nil {
					log.Error("listener failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

func startReminder(lc fx.Lifecycle, svc *reminder.Service, cfg config.Config) {
	if !cfg.Reminder.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return svc.Start()
		},
		OnStop: func(context.Context) error {
			svc.Stop()
			return nil
		},
	})
}
