package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

type fakeClient struct {
	mu     sync.Mutex
	nextID int
	texts  []string
}

func (f *fakeClient) SendMessage(_ context.Context, _, text string, _ *chat.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.texts = append(f.texts, text)
	return f.nextID, nil
}

func (f *fakeClient) SendMediaGroup(context.Context, string, []string, string) ([]int, error) {
	return nil, nil
}
func (f *fakeClient) DeleteMessage(context.Context, string, int) error { return nil }

type fakeRoles struct {
	privileged map[string]bool
}

func (f *fakeRoles) IsPrivileged(_ context.Context, userID string) (bool, error) {
	return f.privileged[userID], nil
}

func newTestRouter(t *testing.T) (*Router, *session.Store, *wizard.Engine, *fakeClient, *fakeRoles) {
	t.Helper()
	client := &fakeClient{}
	store := session.NewStore(nil, 0)
	t.Cleanup(store.Close)
	renderer := menu.NewRenderer(nil, client)
	engine := wizard.NewEngine(nil, store, renderer)
	roles := &fakeRoles{privileged: map[string]bool{}}
	return New(nil, store, engine, renderer, roles), store, engine, client, roles
}

func TestDecodeAction(t *testing.T) {
	t.Parallel()
	name, args := DecodeAction("pick_object:Site A:3")
	require.Equal(t, "pick_object", name)
	require.Equal(t, []string{"Site A", "3"}, args)

	name, args = DecodeAction("main_menu")
	require.Equal(t, "main_menu", name)
	require.Nil(t, args)

	name, _ = DecodeAction("  ")
	require.Empty(t, name)

	require.Equal(t, "page:2", Encode("page", "2"))
	require.Equal(t, "main_menu", Encode("main_menu"))
}

func TestIdleTextIsIgnored(t *testing.T) {
	t.Parallel()
	r, store, _, client, _ := newTestRouter(t)

	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateText, UserID: "u1", ChatID: "c1", Text: "hello",
	})

	require.Empty(t, client.texts, "idle free text gets no reply")
	require.True(t, store.Get("u1").Idle(), "no state change")
}

func TestTopLevelActionCancelsActiveWizard(t *testing.T) {
	t.Parallel()
	r, store, engine, _, _ := newTestRouter(t)

	engine.Register(&wizard.Definition{
		Name:  "w",
		First: "s1",
		Steps: map[session.StepID]wizard.Step{
			"s1": {
				ID:    "s1",
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "p"}
				},
				Transition: func(_ context.Context, _ *session.Session, _ wizard.Input) (wizard.Result, error) {
					return wizard.Done(), nil
				},
			},
		},
	})
	var handled bool
	r.Register(Registration{
		Name:     "main_menu",
		TopLevel: true,
		Handler: func(_ context.Context, sess *session.Session, _ ActionEvent) error {
			handled = true
			require.True(t, sess.Idle(), "wizard must be cancelled before the handler runs")
			return nil
		},
	})

	sess := store.Get("u1")
	require.NoError(t, engine.Start(context.Background(), sess, "c1", "w", nil))
	require.False(t, sess.Idle())

	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "u1", ChatID: "c1", CallbackData: "main_menu",
	})
	require.True(t, handled)
}

func TestWizardStepOwnsActionOverStatelessHandler(t *testing.T) {
	t.Parallel()
	r, store, engine, _, _ := newTestRouter(t)

	var wizardGot, statelessGot bool
	engine.Register(&wizard.Definition{
		Name:  "w",
		First: "choose",
		Steps: map[session.StepID]wizard.Step{
			"choose": {
				ID:      "choose",
				Input:   wizard.InputChoice,
				Actions: []string{"toggle"},
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "p"}
				},
				Transition: func(_ context.Context, _ *session.Session, _ wizard.Input) (wizard.Result, error) {
					wizardGot = true
					return wizard.Done(), nil
				},
			},
		},
	})
	r.Register(Registration{
		Name: "toggle",
		Handler: func(_ context.Context, _ *session.Session, _ ActionEvent) error {
			statelessGot = true
			return nil
		},
	})

	sess := store.Get("u1")
	require.NoError(t, engine.Start(context.Background(), sess, "c1", "w", nil))

	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "u1", ChatID: "c1", CallbackData: "toggle:x",
	})
	require.True(t, wizardGot, "active wizard step owns the action")
	require.False(t, statelessGot)

	// Idle now: the stateless handler takes it.
	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "u1", ChatID: "c1", CallbackData: "toggle:x",
	})
	require.True(t, statelessGot)
}

func TestPrivilegedActionDenied(t *testing.T) {
	t.Parallel()
	r, _, _, client, roles := newTestRouter(t)

	var ran bool
	r.Register(Registration{
		Name:       "admin_panel",
		Privileged: true,
		Handler: func(_ context.Context, _ *session.Session, _ ActionEvent) error {
			ran = true
			return nil
		},
	})

	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "staff", ChatID: "c1", CallbackData: "admin_panel",
	})
	require.False(t, ran)
	require.NotEmpty(t, client.texts)
	require.Contains(t, client.texts[len(client.texts)-1], "not permitted")

	roles.privileged["boss"] = true
	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "boss", ChatID: "c2", CallbackData: "admin_panel",
	})
	require.True(t, ran)
}

func TestReentrantEventsAreDropped(t *testing.T) {
	t.Parallel()
	r, _, _, _, _ := newTestRouter(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	r.Register(Registration{
		Name: "toggle_object",
		Handler: func(_ context.Context, _ *session.Session, _ ActionEvent) error {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				close(started)
				<-release
			}
			return nil
		},
	})

	upd := chat.Update{Kind: chat.UpdateCallback, UserID: "u1", ChatID: "c1", CallbackData: "toggle_object:X"}
	done := make(chan struct{})
	go func() {
		r.HandleUpdate(context.Background(), upd)
		close(done)
	}()
	<-started

	// Second tap while the first is still in flight: dropped.
	r.HandleUpdate(context.Background(), upd)
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first event did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls, "double-tap must execute exactly once")
}

func TestUnknownActionDropped(t *testing.T) {
	t.Parallel()
	r, _, _, client, _ := newTestRouter(t)
	r.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: "u1", ChatID: "c1", CallbackData: "nope",
	})
	require.Empty(t, client.texts)
}
