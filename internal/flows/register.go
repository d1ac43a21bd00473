package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/invite"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/users"
	"github.com/fieldops/reportbot/internal/wizard"
)

const wizRegister = "register"

const (
	stepRegCode         session.StepID = "reg_code"
	stepRegName         session.StepID = "reg_name"
	stepRegPositionPick session.StepID = "reg_position_pick"
	stepRegPositionText session.StepID = "reg_position_text"
	stepRegOrg          session.StepID = "reg_org"
)

// Form keys of the registration wizard.
const (
	fInviteCode = "invite_code"
	fInviteRole = "invite_role"
	fRegName    = "reg_name"
	fPosition   = "position"
	fOrgID      = "org_id"
	fPositions  = "positions"
	fOrgs       = "orgs"
)

func (f *Flows) startRegistration(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	positions, err := f.catalog.ListPositions(ctx)
	if err != nil {
		return err
	}
	orgs, err := f.catalog.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	positionLines := make([]string, 0, len(positions))
	for _, p := range positions {
		positionLines = append(positionLines, p.Name)
	}
	orgLines := make([]string, 0, len(orgs))
	for _, o := range orgs {
		orgLines = append(orgLines, packRecord(o.ID, o.Name))
	}
	return f.engine.Start(ctx, sess, event.ChatID, wizRegister, map[string]string{
		fPositions: packList(positionLines),
		fOrgs:      packList(orgLines),
	})
}

func (f *Flows) registerWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizRegister,
		First: stepRegCode,
		Steps: map[session.StepID]wizard.Step{
			stepRegCode: {
				ID:    stepRegCode,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Welcome! Enter your invite code to register."}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					role, err := f.invites.Verify(in.Text)
					if errors.Is(err, invite.ErrExpired) {
						return wizard.Result{}, wizard.Invalid("that invite code has expired, ask for a new one")
					}
					if err != nil {
						return wizard.Result{}, wizard.Invalid("that invite code is not valid")
					}
					sess.Set(fInviteCode, strings.TrimSpace(in.Text))
					sess.Set(fInviteRole, role)
					return wizard.Next(stepRegName), nil
				},
			},
			stepRegName: {
				ID:    stepRegName,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "What is your full name?"}
				},
				Validate: requireText("enter your name", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fRegName, strings.TrimSpace(in.Text))
					if sess.Get(fPositions) == "" {
						return wizard.Next(stepRegPositionText), nil
					}
					return wizard.Next(stepRegPositionPick), nil
				},
			},
			stepRegPositionPick: {
				ID:      stepRegPositionPick,
				Input:   wizard.InputChoice,
				Actions: []string{"reg_pos"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					for i, name := range unpackList(sess.Get(fPositions)) {
						kb.Row(chat.Button{Label: name, Data: router.Encode("reg_pos", strconv.Itoa(i))})
					}
					return chat.Content{Text: "Select your position.", Keyboard: kb}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					positions := unpackList(sess.Get(fPositions))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(positions) {
						return wizard.Result{}, wizard.Invalid("pick a position from the list")
					}
					sess.Set(fPosition, positions[i])
					return f.afterPosition(sess), nil
				},
			},
			stepRegPositionText: {
				ID:    stepRegPositionText,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "What is your position? (e.g. foreman, electrician)"}
				},
				Validate: requireText("enter your position", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fPosition, strings.TrimSpace(in.Text))
					return f.afterPosition(sess), nil
				},
			},
			stepRegOrg: {
				ID:      stepRegOrg,
				Input:   wizard.InputChoice,
				Actions: []string{"reg_org"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					for i, line := range unpackList(sess.Get(fOrgs)) {
						kb.Row(chat.Button{Label: recordField(line, 1), Data: router.Encode("reg_org", strconv.Itoa(i))})
					}
					return chat.Content{Text: "Select your organization.", Keyboard: kb}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					orgs := unpackList(sess.Get(fOrgs))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(orgs) {
						return wizard.Result{}, wizard.Invalid("pick an organization from the list")
					}
					sess.Set(fOrgID, recordField(orgs[i], 0))
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: f.completeRegistration,
	}
}

func (f *Flows) afterPosition(sess *session.Session) wizard.Result {
	if sess.Get(fOrgs) == "" {
		return wizard.Done()
	}
	return wizard.Next(stepRegOrg)
}

func (f *Flows) completeRegistration(ctx context.Context, sess *session.Session) error {
	u, err := f.users.Create(ctx, users.CreateParams{
		TGUserID: sess.UserID,
		TGChatID: sess.ChatID,
		Name:     sess.Get(fRegName),
		Role:     sess.Get(fInviteRole),
		Position: sess.Get(fPosition),
		OrgID:    sess.Get(fOrgID),
	})
	if errors.Is(err, users.ErrExists) {
		return f.render(ctx, sess, sess.ChatID, chat.Content{
			Text: "You are already registered. Send /start to open the menu.",
		})
	}
	if err != nil {
		return err
	}
	if _, err := f.invites.Redeem(ctx, sess.Get(fInviteCode), u.ID); err != nil {
		// The code was consumed between Verify and now. Park the account
		// until an admin sorts it out.
		if derr := f.users.SetActive(ctx, u.ID, false); derr != nil {
			f.logger.Error("deactivate after failed redeem", slog.String("user_id", u.ID), slog.Any("error", derr))
		}
		return f.render(ctx, sess, sess.ChatID, chat.Content{
			Text: "That invite code was already used. Ask for a new one and send /start again.",
		})
	}
	text := fmt.Sprintf("Registration complete. Welcome, %s!", u.Name)
	return f.render(ctx, sess, sess.ChatID, chat.Content{
		Text:     text,
		Keyboard: backRow(&chat.Keyboard{}),
	})
}

// requireText validates a free-text step: non-blank and at most max runes.
func requireText(emptyMsg string, max int) func(wizard.Input) error {
	return func(in wizard.Input) error {
		if in.Action != "" {
			return nil
		}
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return wizard.Invalid("%s", emptyMsg)
		}
		if len([]rune(text)) > max {
			return wizard.Invalid("keep it under %d characters", max)
		}
		return nil
	}
}
