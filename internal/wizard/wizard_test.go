package wizard

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/session"
)

type fakeClient struct {
	nextID int
	live   map[string][]int
	texts  []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{nextID: 1, live: map[string][]int{}}
}

func (f *fakeClient) SendMessage(_ context.Context, chatID, text string, _ *chat.Keyboard) (int, error) {
	f.nextID++
	f.live[chatID] = append(f.live[chatID], f.nextID)
	f.texts = append(f.texts, text)
	return f.nextID, nil
}

func (f *fakeClient) SendMediaGroup(context.Context, string, []string, string) ([]int, error) {
	return nil, nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, chatID string, messageID int) error {
	kept := f.live[chatID][:0]
	for _, id := range f.live[chatID] {
		if id != messageID {
			kept = append(kept, id)
		}
	}
	f.live[chatID] = kept
	return nil
}

func (f *fakeClient) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.texts)
	return f.texts[len(f.texts)-1]
}

func newTestEngine(t *testing.T) (*Engine, *session.Store, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	store := session.NewStore(nil, 0)
	t.Cleanup(store.Close)
	renderer := menu.NewRenderer(nil, client)
	return NewEngine(nil, store, renderer), store, client
}

// twoStepDef builds a minimal report-like wizard: free-text description,
// then free-text materials, then completion.
func twoStepDef(completed *map[string]string) *Definition {
	return &Definition{
		Name:  "demo",
		First: "ask_work",
		Steps: map[session.StepID]Step{
			"ask_work": {
				ID:    "ask_work",
				Input: InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "What was done?"}
				},
				Validate: func(in Input) error {
					if in.Text == "" {
						return Invalid("description must not be empty")
					}
					return nil
				},
				Transition: func(_ context.Context, sess *session.Session, in Input) (Result, error) {
					sess.Set("workDone", in.Text)
					return Next("ask_materials"), nil
				},
			},
			"ask_materials": {
				ID:    "ask_materials",
				Input: InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Materials used?"}
				},
				Transition: func(_ context.Context, sess *session.Session, in Input) (Result, error) {
					sess.Set("materials", in.Text)
					return Done(), nil
				},
			},
		},
		OnComplete: func(_ context.Context, sess *session.Session) error {
			out := map[string]string{}
			for key, value := range sess.Form {
				out[key] = value
			}
			*completed = out
			return nil
		},
	}
}

func TestWizardDeterministicFold(t *testing.T) {
	t.Parallel()
	engine, store, _ := newTestEngine(t)
	var completed map[string]string
	engine.Register(twoStepDef(&completed))

	sess := store.Get("u1")
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, sess, "chat1", "demo", nil))
	require.NoError(t, engine.HandleText(ctx, sess, "chat1", "poured foundation"))
	require.NoError(t, engine.HandleText(ctx, sess, "chat1", "50 bags cement"))

	require.Equal(t, map[string]string{
		"workDone":  "poured foundation",
		"materials": "50 bags cement",
	}, completed)
	require.True(t, sess.Idle(), "session resets to idle after completion")
}

func TestValidationFailureReprompts(t *testing.T) {
	t.Parallel()
	engine, store, client := newTestEngine(t)
	var completed map[string]string
	engine.Register(twoStepDef(&completed))

	sess := store.Get("u1")
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, sess, "chat1", "demo", nil))
	require.NoError(t, engine.HandleText(ctx, sess, "chat1", ""))

	require.Equal(t, session.StepID("ask_work"), sess.Step, "step unchanged on validation failure")
	require.Contains(t, client.lastText(t), "description must not be empty")
	require.Contains(t, client.lastText(t), "What was done?")
	require.Empty(t, sess.Get("workDone"), "no form mutation on validation failure")
	require.Len(t, client.live["chat1"], 1, "re-prompt replaces the old prompt")
}

func TestStartClearsPreviousWizardForm(t *testing.T) {
	t.Parallel()
	engine, store, _ := newTestEngine(t)
	var completed map[string]string
	engine.Register(twoStepDef(&completed))

	other := &Definition{
		Name:  "other",
		First: "only",
		Steps: map[session.StepID]Step{
			"only": {
				ID:    "only",
				Input: InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "other prompt"}
				},
				Transition: func(_ context.Context, _ *session.Session, _ Input) (Result, error) {
					return Done(), nil
				},
			},
		},
	}
	engine.Register(other)

	sess := store.Get("u1")
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, sess, "chat1", "demo", nil))
	require.NoError(t, engine.HandleText(ctx, sess, "chat1", "halfway through"))
	require.Equal(t, "halfway through", sess.Get("workDone"))

	require.NoError(t, engine.Start(ctx, sess, "chat1", "other", map[string]string{"editTarget": "r-1"}))
	require.Equal(t, "other", sess.Wizard)
	require.Empty(t, sess.Get("workDone"), "previous wizard fields must not leak")
	require.Equal(t, "r-1", sess.Get("editTarget"))
}

func TestChoiceStepOwnershipAndPagination(t *testing.T) {
	t.Parallel()
	engine, store, client := newTestEngine(t)

	def := &Definition{
		Name:  "pick",
		First: "ask_object",
		Steps: map[session.StepID]Step{
			"ask_object": {
				ID:      "ask_object",
				Input:   InputChoice,
				Actions: []string{"pick_object", "page"},
				Prompt: func(sess *session.Session) chat.Content {
					return chat.Content{Text: "Pick an object (page " + sess.Get("page") + ")"}
				},
				Transition: func(_ context.Context, sess *session.Session, in Input) (Result, error) {
					switch in.Action {
					case "page":
						sess.Set("page", in.Arg(0))
						return Stay(sess), nil
					case "pick_object":
						sess.Set("objectName", in.Arg(0))
						return Done(), nil
					}
					return Stay(sess), nil
				},
			},
		},
	}
	engine.Register(def)

	sess := store.Get("u1")
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, sess, "chat1", "pick", map[string]string{"page": "0"}))

	require.True(t, engine.OwnsAction(sess, "pick_object"))
	require.True(t, engine.OwnsAction(sess, "page"))
	require.False(t, engine.OwnsAction(sess, "show_profile"))
	require.False(t, engine.ExpectsText(sess))

	// Pagination: the step targets itself with an updated offset.
	require.NoError(t, engine.HandleAction(ctx, sess, "chat1", "page", []string{"1"}))
	require.Equal(t, session.StepID("ask_object"), sess.Step)
	require.Contains(t, client.lastText(t), "page 1")

	require.NoError(t, engine.HandleAction(ctx, sess, "chat1", "pick_object", []string{"Site A"}))
	require.True(t, sess.Idle())
}

func TestStaleWizardResetsToIdle(t *testing.T) {
	t.Parallel()
	engine, store, _ := newTestEngine(t)

	sess := store.Get("u1")
	sess.Wizard = "gone"
	sess.Step = "nowhere"

	require.NoError(t, engine.HandleText(context.Background(), sess, "chat1", "hello"))
	require.True(t, store.Get("u1").Idle())
}

func TestManyStepFold(t *testing.T) {
	t.Parallel()
	engine, store, _ := newTestEngine(t)

	// A chain of N text steps writing indexed fields; the fold over
	// inputs must match regardless of how prompts rendered in between.
	const n = 6
	steps := map[session.StepID]Step{}
	for i := 0; i < n; i++ {
		i := i
		id := session.StepID("s" + strconv.Itoa(i))
		next := Result{Next: session.StepID("s" + strconv.Itoa(i+1))}
		if i == n-1 {
			next = Done()
		}
		steps[id] = Step{
			ID:    id,
			Input: InputText,
			Prompt: func(*session.Session) chat.Content {
				return chat.Content{Text: string(id)}
			},
			Transition: func(_ context.Context, sess *session.Session, in Input) (Result, error) {
				sess.Set("f"+strconv.Itoa(i), in.Text)
				return next, nil
			},
		}
	}
	var got map[string]string
	engine.Register(&Definition{
		Name:  "chain",
		First: "s0",
		Steps: steps,
		OnComplete: func(_ context.Context, sess *session.Session) error {
			got = map[string]string{}
			for k, v := range sess.Form {
				got[k] = v
			}
			return nil
		},
	})

	sess := store.Get("u1")
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, sess, "chat1", "chain", nil))
	want := map[string]string{}
	for i := 0; i < n; i++ {
		input := "value-" + strconv.Itoa(i)
		want["f"+strconv.Itoa(i)] = input
		require.NoError(t, engine.HandleText(ctx, sess, "chat1", input))
	}
	require.Equal(t, want, got)
}
