package main

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/fieldops/reportbot/cmd/bot/modules"
	"github.com/fieldops/reportbot/internal/version"
)

func main() {
	fmt.Printf("Starting reportbot %s\n", version.GetInfo())

	fx.New(
		modules.InfraModule,
		modules.DomainModule,
		modules.BotModule,
		modules.ServerModule,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
