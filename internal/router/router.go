// Package router dispatches inbound chat events to the active wizard
// step or to stateless menu handlers. It is the single entry point for
// every interaction and enforces strict per-user serialization: while
// one event for a user is in flight, further events for that user are
// dropped, so rapid double-taps execute at most once.
package router

import (
	"context"
	"log/slog"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/logger"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

// Handler is a stateless menu handler bound to an action name.
type Handler func(ctx context.Context, sess *session.Session, event ActionEvent) error

// Registration describes one stateless handler.
type Registration struct {
	Name string
	// TopLevel handlers cancel any in-flight wizard before running, so a
	// stale wizard never reacts to unrelated input.
	TopLevel bool
	// Privileged handlers re-check the caller's role at dispatch time,
	// not only at menu entry, because action events can be replayed.
	Privileged bool
	Handler    Handler
}

// RoleChecker answers whether a user may run privileged handlers.
type RoleChecker interface {
	IsPrivileged(ctx context.Context, userID string) (bool, error)
}

// Router wires sessions, the wizard engine, and the handler registry.
type Router struct {
	store    *session.Store
	engine   *wizard.Engine
	renderer *menu.Renderer
	roles    RoleChecker
	handlers map[string]Registration
	logger   *slog.Logger
}

// New creates a Router; handlers are added with Register.
func New(log *slog.Logger, store *session.Store, engine *wizard.Engine, renderer *menu.Renderer, roles RoleChecker) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		store:    store,
		engine:   engine,
		renderer: renderer,
		roles:    roles,
		handlers: map[string]Registration{},
		logger:   log.With(slog.String("service", "router")),
	}
}

// Register adds a stateless handler; duplicate names panic at wiring time.
func (r *Router) Register(reg Registration) {
	if reg.Name == "" || reg.Handler == nil {
		panic("router: registration requires name and handler")
	}
	if _, exists := r.handlers[reg.Name]; exists {
		panic("router: duplicate handler: " + reg.Name)
	}
	r.handlers[reg.Name] = reg
}

// HandleUpdate is the chat.Handler entry point.
func (r *Router) HandleUpdate(ctx context.Context, upd chat.Update) {
	event, ok := FromUpdate(upd)
	if !ok {
		return
	}
	if !r.store.BeginHandling(upd.UserID) {
		r.logger.Debug("dropped re-entrant event", slog.String("user_id", upd.UserID))
		return
	}
	defer r.store.EndHandling(upd.UserID)

	ctx = logger.WithContext(ctx, r.logger.With(slog.String("user_id", upd.UserID)))

	var err error
	switch ev := event.(type) {
	case TextEvent:
		err = r.routeText(ctx, ev)
	case ActionEvent:
		err = r.routeAction(ctx, ev)
	}
	if err != nil {
		// Fatal to this event only; the user's next interaction starts
		// from a clean session.
		r.logger.Error("event dropped",
			slog.String("user_id", upd.UserID),
			slog.Any("error", err),
		)
	}
}

func (r *Router) routeText(ctx context.Context, event TextEvent) error {
	sess := r.store.Get(event.UserID)
	if r.engine.Active(sess) && r.engine.ExpectsText(sess) {
		return r.engine.HandleText(ctx, sess, event.ChatID, event.Text)
	}
	// Idle free text gets no default reply.
	r.logger.Debug("ignored idle text", slog.String("user_id", event.UserID))
	return nil
}

func (r *Router) routeAction(ctx context.Context, event ActionEvent) error {
	sess := r.store.Get(event.UserID)

	// The active wizard step owns its declared actions; stateless
	// handlers only win when no step claims the name.
	if r.engine.Active(sess) && r.engine.OwnsAction(sess, event.Name) {
		return r.engine.HandleAction(ctx, sess, event.ChatID, event.Name, event.Args)
	}

	reg, ok := r.handlers[event.Name]
	if !ok {
		r.logger.Debug("unknown action", slog.String("action", event.Name), slog.String("user_id", event.UserID))
		return nil
	}

	if reg.Privileged {
		allowed, err := r.roles.IsPrivileged(ctx, event.UserID)
		if err != nil {
			return err
		}
		if !allowed {
			r.logger.Warn("privileged action denied", slog.String("action", event.Name), slog.String("user_id", event.UserID))
			_, err := r.renderer.Render(ctx, sess, event.ChatID, chat.Content{
				Text: "You are not permitted to do that.",
			})
			return err
		}
	}

	if reg.TopLevel && r.engine.Active(sess) {
		r.store.Reset(event.UserID)
	}

	return reg.Handler(ctx, sess, event)
}
