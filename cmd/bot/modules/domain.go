package modules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/config"
	"github.com/fieldops/reportbot/internal/flows"
	"github.com/fieldops/reportbot/internal/invite"
	"github.com/fieldops/reportbot/internal/org"
	"github.com/fieldops/reportbot/internal/publish"
	"github.com/fieldops/reportbot/internal/reminder"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/users"
)

var DomainModule = fx.Module(
	"Domain",
	fx.Provide(
		users.NewService,
		org.NewService,
		report.NewService,
		provideInviteService,
		provideResolver,
		providePublishEngine,
		provideReminder,

		fx.Annotate(func(s *users.Service) *users.Service { return s },
			fx.As(new(flows.UserDirectory))),
		fx.Annotate(func(s *org.Service) *org.Service { return s },
			fx.As(new(flows.Catalog))),
		fx.Annotate(func(s *report.Service) *report.Service { return s },
			fx.As(new(flows.ReportStore))),
		fx.Annotate(func(s *invite.Service) *invite.Service { return s },
			fx.As(new(flows.InviteIssuer))),
		fx.Annotate(func(e *publish.Engine) *publish.Engine { return e },
			fx.As(new(flows.Publisher))),
	),
)

func provideInviteService(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) (*invite.Service, error) {
	ttl, err := time.ParseDuration(cfg.Auth.InviteTTL)
	if err != nil {
		return nil, fmt.Errorf("parse invite ttl: %w", err)
	}
	return invite.NewService(log, pool, cfg.Auth.InviteSecret, ttl), nil
}

func provideResolver(orgService *org.Service) *publish.Resolver {
	return publish.NewResolver(orgService)
}

func providePublishEngine(log *slog.Logger, client chat.Client, resolver *publish.Resolver) *publish.Engine {
	return publish.NewEngine(log, client, resolver)
}

func provideReminder(log *slog.Logger, reportService *report.Service, engine *publish.Engine, cfg config.Config) *reminder.Service {
	return reminder.NewService(log, reportService, engine, cfg.Reminder.Pattern)
}
