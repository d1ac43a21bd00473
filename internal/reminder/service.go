// Package reminder nudges field staff who have not filed a report for
// the current day, on a cron pattern.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldops/reportbot/internal/report"
)

// MissingSource lists who still owes a report for the given day.
type MissingSource interface {
	MissingOn(ctx context.Context, day time.Time) ([]report.MissingEntry, error)
}

// Notifier delivers a plain text message to one private chat.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string) error
}

type Service struct {
	cron    *cron.Cron
	parser  cron.Parser
	source  MissingSource
	notify  Notifier
	pattern string
	logger  *slog.Logger
	mu      sync.Mutex
	entry   cron.EntryID
	started bool
}

func NewService(log *slog.Logger, source MissingSource, notify Notifier, pattern string) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		source:  source,
		notify:  notify,
		pattern: pattern,
		logger:  log.With(slog.String("service", "reminder")),
	}
}

// Start schedules the reminder job and starts the cron loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if _, err := s.parser.Parse(s.pattern); err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", s.pattern, err)
	}
	entry, err := s.cron.AddFunc(s.pattern, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Run(ctx, time.Now()); err != nil {
			s.logger.Error("reminder run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}
	s.entry = entry
	s.cron.Start()
	s.started = true
	s.logger.Info("reminder scheduled", slog.String("pattern", s.pattern))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
}

// Run notifies every active user without a report for the given day.
// Delivery failures are logged and do not stop the sweep.
func (s *Service) Run(ctx context.Context, day time.Time) error {
	missing, err := s.source.MissingOn(ctx, day)
	if err != nil {
		return fmt.Errorf("list missing reports: %w", err)
	}
	sent := 0
	for _, entry := range missing {
		text := fmt.Sprintf("Hi %s! You have not filed a work report for today yet. Open the menu to submit one.", entry.Name)
		if err := s.notify.Notify(ctx, entry.TGChatID, text); err != nil {
			s.logger.Warn("reminder delivery failed",
				slog.String("user_id", entry.UserID),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	s.logger.Info("reminder sweep done", slog.Int("missing", len(missing)), slog.Int("sent", sent))
	return nil
}
