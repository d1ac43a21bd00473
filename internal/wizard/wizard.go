// Package wizard implements the table-driven multi-step input engine.
// A Definition is a named set of Steps; each Step is one
// prompt/validate/transition unit. The engine owns the session step
// pointer and renders every prompt through the menu renderer, so a
// wizard never leaves more than one live prompt in the chat.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/session"
)

// InputKind says what a step expects from the user.
type InputKind string

const (
	// InputText steps consume the next free-text message.
	InputText InputKind = "text"
	// InputChoice steps consume one of the step's declared button actions.
	InputChoice InputKind = "choice"
)

// Input is one validated unit of user input handed to a transition.
// Text is set for free-text steps; Action and Args for button presses.
type Input struct {
	Text   string
	Action string
	Args   []string
}

// Arg returns the i-th action argument, "" when absent.
func (in Input) Arg(i int) string {
	if i < 0 || i >= len(in.Args) {
		return ""
	}
	return in.Args[i]
}

// Result is a transition outcome: either the next step, or Done.
type Result struct {
	Next session.StepID
	Done bool
}

// Next advances to the given step.
func Next(id session.StepID) Result { return Result{Next: id} }

// Done completes the wizard.
func Done() Result { return Result{Done: true} }

// Stay re-renders the current step (used by pagination and toggles).
func Stay(sess *session.Session) Result { return Result{Next: sess.Step} }

// ErrValidation marks input the user can correct; the engine re-prompts
// with the message inline instead of failing the event.
var ErrValidation = errors.New("validation")

// Invalid builds a validation error with a user-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Step is one prompt/validate/transition unit.
type Step struct {
	ID     session.StepID
	Input  InputKind
	// Actions lists the action-name prefixes this step owns.
	Actions []string
	// Prompt is a pure function of the current form data.
	Prompt func(sess *session.Session) chat.Content
	// Validate may reject raw input with ErrValidation; nil accepts all.
	Validate func(in Input) error
	// Transition consumes validated input, mutates the form, and picks
	// the next step or completion. Branching lives here, explicitly.
	Transition func(ctx context.Context, sess *session.Session, in Input) (Result, error)
}

// Definition is a named wizard: ordered (or branching) steps plus a
// completion callback receiving the accumulated form.
type Definition struct {
	Name  string
	First session.StepID
	Steps map[session.StepID]Step
	// OnComplete runs after the terminal transition, before the session
	// resets to idle. Typically it hands the form to the publish engine.
	OnComplete func(ctx context.Context, sess *session.Session) error
}

// Engine drives wizard definitions against sessions.
type Engine struct {
	store    *session.Store
	renderer *menu.Renderer
	defs     map[string]*Definition
	logger   *slog.Logger
}

// NewEngine creates an Engine; definitions are added with Register.
func NewEngine(log *slog.Logger, store *session.Store, renderer *menu.Renderer) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    store,
		renderer: renderer,
		defs:     map[string]*Definition{},
		logger:   log.With(slog.String("service", "wizard")),
	}
}

// Register adds a definition; duplicate names panic at wiring time.
func (e *Engine) Register(def *Definition) {
	if def == nil || def.Name == "" {
		panic("wizard: definition requires a name")
	}
	if _, exists := e.defs[def.Name]; exists {
		panic("wizard: duplicate definition: " + def.Name)
	}
	if _, ok := def.Steps[def.First]; !ok {
		panic("wizard: first step missing: " + def.Name)
	}
	e.defs[def.Name] = def
}

// Definition returns a registered definition by name.
func (e *Engine) Definition(name string) (*Definition, bool) {
	def, ok := e.defs[name]
	return def, ok
}

// Start begins the named wizard for the session. Any previous wizard's
// step and form are discarded first, so fields never leak between
// flows. seed pre-populates the fresh form (e.g. an edit-target id).
func (e *Engine) Start(ctx context.Context, sess *session.Session, chatID, name string, seed map[string]string) error {
	def, ok := e.defs[name]
	if !ok {
		return fmt.Errorf("unknown wizard: %s", name)
	}
	e.store.Reset(sess.UserID)
	sess.Wizard = def.Name
	sess.Step = def.First
	for key, value := range seed {
		sess.Set(key, value)
	}
	return e.renderStep(ctx, sess, chatID, def.Steps[def.First], "")
}

// Active reports whether the session has a live wizard step.
func (e *Engine) Active(sess *session.Session) bool {
	return sess.Wizard != "" && sess.Step != ""
}

// ExpectsText reports whether the active step consumes free text.
func (e *Engine) ExpectsText(sess *session.Session) bool {
	step, ok := e.currentStep(sess)
	return ok && step.Input == InputText
}

// OwnsAction reports whether the active step claims the action name.
// Wizard ownership beats the stateless handler registry in the router,
// so a step can shadow a menu action only while it is live. Text steps
// may declare actions too (e.g. a "done" button on a photo-collecting
// step).
func (e *Engine) OwnsAction(sess *session.Session, action string) bool {
	step, ok := e.currentStep(sess)
	if !ok {
		return false
	}
	for _, prefix := range step.Actions {
		if action == prefix || strings.HasPrefix(action, prefix+":") {
			return true
		}
	}
	return false
}

// currentStep resolves the session's active wizard step, if any.
func (e *Engine) currentStep(sess *session.Session) (Step, bool) {
	def, ok := e.defs[sess.Wizard]
	if !ok {
		return Step{}, false
	}
	step, ok := def.Steps[sess.Step]
	return step, ok
}

// HandleText feeds a free-text message to the active step.
func (e *Engine) HandleText(ctx context.Context, sess *session.Session, chatID, text string) error {
	return e.handle(ctx, sess, chatID, Input{Text: text})
}

// HandleAction feeds a button press to the active step.
func (e *Engine) HandleAction(ctx context.Context, sess *session.Session, chatID, action string, args []string) error {
	return e.handle(ctx, sess, chatID, Input{Action: action, Args: args})
}

func (e *Engine) handle(ctx context.Context, sess *session.Session, chatID string, in Input) error {
	def, ok := e.defs[sess.Wizard]
	if !ok {
		// Session points at a wizard that no longer exists (restart with
		// changed registrations). Drop to idle; the next interaction
		// starts clean.
		e.logger.Warn("stale wizard on session", slog.String("wizard", sess.Wizard), slog.String("user_id", sess.UserID))
		e.store.Reset(sess.UserID)
		return nil
	}
	step, ok := def.Steps[sess.Step]
	if !ok {
		e.logger.Warn("stale step on session", slog.String("wizard", sess.Wizard), slog.String("step", string(sess.Step)))
		e.store.Reset(sess.UserID)
		return nil
	}

	if step.Validate != nil {
		if err := step.Validate(in); err != nil {
			if errors.Is(err, ErrValidation) {
				// Same prompt, inline error, no form mutation.
				return e.renderStep(ctx, sess, chatID, step, validationReason(err))
			}
			return err
		}
	}

	result, err := step.Transition(ctx, sess, in)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return e.renderStep(ctx, sess, chatID, step, validationReason(err))
		}
		return err
	}

	if result.Done {
		if def.OnComplete != nil {
			if err := def.OnComplete(ctx, sess); err != nil {
				e.store.Reset(sess.UserID)
				return fmt.Errorf("wizard %s complete: %w", def.Name, err)
			}
		}
		e.store.Reset(sess.UserID)
		return nil
	}

	next, ok := def.Steps[result.Next]
	if !ok {
		e.store.Reset(sess.UserID)
		return fmt.Errorf("wizard %s: transition to unknown step %s", def.Name, result.Next)
	}
	sess.Step = next.ID
	return e.renderStep(ctx, sess, chatID, next, "")
}

func (e *Engine) renderStep(ctx context.Context, sess *session.Session, chatID string, step Step, errorNote string) error {
	content := step.Prompt(sess)
	if errorNote != "" {
		content.Text = "⚠ " + errorNote + "\n\n" + content.Text
	}
	_, err := e.renderer.Render(ctx, sess, chatID, content)
	return err
}

func validationReason(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
