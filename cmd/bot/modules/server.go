package modules

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/fieldops/reportbot/internal/config"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/server"
	"github.com/fieldops/reportbot/internal/session"
)

var ServerModule = fx.Module(
	"Server",
	fx.Provide(
		provideOpsHandler,
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideOpsHandler(log *slog.Logger, reportService *report.Service, store *session.Store) *server.OpsHandler {
	return server.NewOpsHandler(log, reportService, store)
}

func provideServer(log *slog.Logger, cfg config.Config, ops *server.OpsHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, ops)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}
