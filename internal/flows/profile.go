package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

const (
	wizProfileName     = "profile_name"
	wizProfilePosition = "profile_position"
)

const (
	stepPfName         session.StepID = "pf_name"
	stepPfPositionPick session.StepID = "pf_position_pick"
	stepPfPositionText session.StepID = "pf_position_text"
)

const fUserID = "user_id"

func (f *Flows) handleProfile(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", u.Name)
	fmt.Fprintf(&b, "Position: %s\n", orDash(u.Position))
	fmt.Fprintf(&b, "Organization: %s\n", orDash(u.OrgName))
	fmt.Fprintf(&b, "Role: %s", u.Role)
	kb := &chat.Keyboard{}
	kb.Row(
		chat.Button{Label: "✏ Name", Data: router.Encode(actProfileEditName)},
		chat.Button{Label: "✏ Position", Data: router.Encode(actProfileEditPosition)},
	)
	backRow(kb)
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: b.String(), Keyboard: kb})
}

func (f *Flows) handleProfileEditName(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	return f.engine.Start(ctx, sess, event.ChatID, wizProfileName, map[string]string{fUserID: u.ID})
}

func (f *Flows) profileNameWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizProfileName,
		First: stepPfName,
		Steps: map[session.StepID]wizard.Step{
			stepPfName: {
				ID:    stepPfName,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Enter your new name."}
				},
				Validate: requireText("enter your name", 100),
				Transition: func(ctx context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if err := f.users.UpdateName(ctx, sess.Get(fUserID), strings.TrimSpace(in.Text)); err != nil {
						return wizard.Result{}, err
					}
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: func(ctx context.Context, sess *session.Session) error {
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     "Name updated.",
				Keyboard: backRow(&chat.Keyboard{}),
			})
		},
	}
}

func (f *Flows) handleProfileEditPosition(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	positions, err := f.catalog.ListPositions(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(positions))
	for _, p := range positions {
		names = append(names, p.Name)
	}
	return f.engine.Start(ctx, sess, event.ChatID, wizProfilePosition, map[string]string{
		fUserID:    u.ID,
		fPositions: packList(names),
	})
}

func (f *Flows) profilePositionWizard() *wizard.Definition {
	apply := func(ctx context.Context, sess *session.Session, position string) (wizard.Result, error) {
		if err := f.users.UpdatePosition(ctx, sess.Get(fUserID), position); err != nil {
			return wizard.Result{}, err
		}
		return wizard.Done(), nil
	}
	return &wizard.Definition{
		Name:  wizProfilePosition,
		First: stepPfPositionPick,
		Steps: map[session.StepID]wizard.Step{
			stepPfPositionPick: {
				ID:      stepPfPositionPick,
				Input:   wizard.InputChoice,
				Actions: []string{"pf_pos", "pf_other"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					for i, name := range unpackList(sess.Get(fPositions)) {
						kb.Row(chat.Button{Label: name, Data: router.Encode("pf_pos", strconv.Itoa(i))})
					}
					kb.Row(chat.Button{Label: "Other…", Data: router.Encode("pf_other")})
					return chat.Content{Text: "Select your new position.", Keyboard: kb}
				},
				Transition: func(ctx context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "pf_other" {
						return wizard.Next(stepPfPositionText), nil
					}
					positions := unpackList(sess.Get(fPositions))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(positions) {
						return wizard.Result{}, wizard.Invalid("pick a position from the list")
					}
					return apply(ctx, sess, positions[i])
				},
			},
			stepPfPositionText: {
				ID:    stepPfPositionText,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Enter your new position."}
				},
				Validate: requireText("enter your position", 100),
				Transition: func(ctx context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					return apply(ctx, sess, strings.TrimSpace(in.Text))
				},
			},
		},
		OnComplete: func(ctx context.Context, sess *session.Session) error {
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     "Position updated.",
				Keyboard: backRow(&chat.Keyboard{}),
			})
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
