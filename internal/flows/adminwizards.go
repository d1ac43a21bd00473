package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/org"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

const (
	wizOrgCreate      = "org_create"
	wizOrgRename      = "org_rename"
	wizOrgChannel     = "org_channel"
	wizOrgMigrate     = "org_migrate"
	wizObjectCreate   = "object_create"
	wizObjectChannel  = "object_channel"
	wizPositionCreate = "position_create"
)

const (
	stepOcName    session.StepID = "oc_name"
	stepOcChannel session.StepID = "oc_channel"
	stepOrName    session.StepID = "or_name"
	stepOhChannel session.StepID = "oh_channel"
	stepOmTarget  session.StepID = "om_target"
	stepObName    session.StepID = "ob_name"
	stepObChannel session.StepID = "ob_channel"
	stepPcName    session.StepID = "pc_name"
)

const (
	fObjectID  = "object_id"
	fFromOrgID = "from_org_id"
	fNewName   = "new_name"
	fChannel   = "channel"
	fMigrated  = "migrated"
)

func adminDoneKeyboard(action, label string) *chat.Keyboard {
	return (&chat.Keyboard{}).Row(chat.Button{Label: label, Data: action})
}

func (f *Flows) orgCreateWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizOrgCreate,
		First: stepOcName,
		Steps: map[session.StepID]wizard.Step{
			stepOcName: {
				ID:    stepOcName,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Name of the new organization?"}
				},
				Validate: requireText("enter the organization name", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fNewName, strings.TrimSpace(in.Text))
					return wizard.Next(stepOcChannel), nil
				},
			},
			stepOcChannel: {
				ID:      stepOcChannel,
				Input:   wizard.InputText,
				Actions: []string{"oc_skip"},
				Prompt: func(*session.Session) chat.Content {
					kb := (&chat.Keyboard{}).Row(chat.Button{Label: "No broadcast channel", Data: router.Encode("oc_skip")})
					return chat.Content{
						Text:     "Broadcast channel for the organization? Send @channelname or a chat id.",
						Keyboard: kb,
					}
				},
				Validate: requireText("send a channel, or press the button", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action != "oc_skip" {
						sess.Set(fChannel, strings.TrimSpace(in.Text))
					}
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: func(ctx context.Context, sess *session.Session) error {
			o, err := f.catalog.CreateOrganization(ctx, sess.Get(fNewName))
			if errors.Is(err, org.ErrExists) {
				return f.render(ctx, sess, sess.ChatID, chat.Content{
					Text:     "An organization with that name already exists.",
					Keyboard: adminDoneKeyboard(router.Encode(actAdminOrgs), "« Organizations"),
				})
			}
			if err != nil {
				return err
			}
			if channel := sess.Get(fChannel); channel != "" {
				if err := f.catalog.SetBroadcastChannel(ctx, o.ID, channel); err != nil {
					return err
				}
			}
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     fmt.Sprintf("Organization %s created.", o.Name),
				Keyboard: adminDoneKeyboard(router.Encode(actAdminOrgView, o.ID), "Open it"),
			})
		},
	}
}

func (f *Flows) orgRenameWizard() *wizard.Definition {
	return f.singleTextWizard(wizOrgRename, stepOrName,
		"New name for the organization?", "enter the new name",
		func(ctx context.Context, sess *session.Session, value string) (string, *chat.Keyboard, error) {
			if err := f.catalog.RenameOrganization(ctx, sess.Get(fOrgID), value); err != nil {
				return "", nil, err
			}
			return "Organization renamed.", adminDoneKeyboard(router.Encode(actAdminOrgView, sess.Get(fOrgID)), "« Back"), nil
		})
}

func (f *Flows) orgChannelWizard() *wizard.Definition {
	return f.singleTextWizard(wizOrgChannel, stepOhChannel,
		"New broadcast channel? Send @channelname or a chat id, or \"-\" to unset.", "send a channel",
		func(ctx context.Context, sess *session.Session, value string) (string, *chat.Keyboard, error) {
			if value == "-" {
				value = ""
			}
			if err := f.catalog.SetBroadcastChannel(ctx, sess.Get(fOrgID), value); err != nil {
				return "", nil, err
			}
			return "Broadcast channel updated.", adminDoneKeyboard(router.Encode(actAdminOrgView, sess.Get(fOrgID)), "« Back"), nil
		})
}

// orgMigrateWizard moves every user of a doomed organization to a
// chosen target and only then deletes it.
func (f *Flows) orgMigrateWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizOrgMigrate,
		First: stepOmTarget,
		Steps: map[session.StepID]wizard.Step{
			stepOmTarget: {
				ID:      stepOmTarget,
				Input:   wizard.InputChoice,
				Actions: []string{"om_pick", "om_cancel"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					for i, line := range unpackList(sess.Get(fOrgs)) {
						kb.Row(chat.Button{Label: recordField(line, 1), Data: router.Encode("om_pick", strconv.Itoa(i))})
					}
					kb.Row(chat.Button{Label: "✖ Cancel", Data: router.Encode("om_cancel")})
					return chat.Content{
						Text:     "This organization still has users. Pick the organization to move them to; the old one is deleted afterwards.",
						Keyboard: kb,
					}
				},
				Transition: func(ctx context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "om_cancel" {
						return wizard.Done(), nil
					}
					orgs := unpackList(sess.Get(fOrgs))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(orgs) {
						return wizard.Result{}, wizard.Invalid("pick an organization from the list")
					}
					moved, err := f.catalog.MigrateUsers(ctx, sess.Get(fFromOrgID), recordField(orgs[i], 0))
					if err != nil {
						return wizard.Result{}, err
					}
					if err := f.catalog.DeleteOrganization(ctx, sess.Get(fFromOrgID)); err != nil {
						return wizard.Result{}, err
					}
					sess.Set(fMigrated, strconv.Itoa(moved))
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: func(ctx context.Context, sess *session.Session) error {
			text := "Deletion cancelled."
			if moved := sess.Get(fMigrated); moved != "" {
				text = fmt.Sprintf("Moved %s user(s) and deleted the organization.", moved)
			}
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     text,
				Keyboard: adminDoneKeyboard(router.Encode(actAdminOrgs), "« Organizations"),
			})
		},
	}
}

func (f *Flows) objectCreateWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizObjectCreate,
		First: stepObName,
		Steps: map[session.StepID]wizard.Step{
			stepObName: {
				ID:    stepObName,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: "Name of the new object?"}
				},
				Validate: requireText("enter the object name", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fNewName, strings.TrimSpace(in.Text))
					return wizard.Next(stepObChannel), nil
				},
			},
			stepObChannel: {
				ID:      stepObChannel,
				Input:   wizard.InputText,
				Actions: []string{"ob_skip"},
				Prompt: func(*session.Session) chat.Content {
					kb := (&chat.Keyboard{}).Row(chat.Button{Label: "No channel", Data: router.Encode("ob_skip")})
					return chat.Content{
						Text:     "Primary report channel for this object? Send @channelname or a chat id.",
						Keyboard: kb,
					}
				},
				Validate: requireText("send a channel, or press the button", 100),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action != "ob_skip" {
						sess.Set(fChannel, strings.TrimSpace(in.Text))
					}
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: func(ctx context.Context, sess *session.Session) error {
			obj, err := f.catalog.CreateObject(ctx, sess.Get(fOrgID), sess.Get(fNewName), sess.Get(fChannel))
			if errors.Is(err, org.ErrExists) {
				return f.render(ctx, sess, sess.ChatID, chat.Content{
					Text:     "An object with that name already exists in this organization.",
					Keyboard: adminDoneKeyboard(router.Encode(actAdminObjects, sess.Get(fOrgID)), "« Objects"),
				})
			}
			if err != nil {
				return err
			}
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     fmt.Sprintf("Object %s created.", obj.Name),
				Keyboard: adminDoneKeyboard(router.Encode(actAdminObjects, sess.Get(fOrgID)), "« Objects"),
			})
		},
	}
}

func (f *Flows) objectChannelWizard() *wizard.Definition {
	return f.singleTextWizard(wizObjectChannel, stepOhChannel,
		"New channel for this object? Send @channelname or a chat id, or \"-\" to unset.", "send a channel",
		func(ctx context.Context, sess *session.Session, value string) (string, *chat.Keyboard, error) {
			if value == "-" {
				value = ""
			}
			objID := sess.Get(fObjectID)
			if err := f.catalog.SetObjectChannel(ctx, objID, value); err != nil {
				return "", nil, err
			}
			obj, err := f.catalog.GetObject(ctx, objID)
			if err != nil {
				return "", nil, err
			}
			return "Object channel updated.", adminDoneKeyboard(router.Encode(actAdminObjects, obj.OrgID), "« Objects"), nil
		})
}

func (f *Flows) positionCreateWizard() *wizard.Definition {
	return f.singleTextWizard(wizPositionCreate, stepPcName,
		"Name of the new position?", "enter the position name",
		func(ctx context.Context, sess *session.Session, value string) (string, *chat.Keyboard, error) {
			if _, err := f.catalog.CreatePosition(ctx, value); err != nil && !errors.Is(err, org.ErrExists) {
				return "", nil, err
			}
			return "Position saved.", adminDoneKeyboard(router.Encode(actAdminPositions), "« Positions"), nil
		})
}

// singleTextWizard builds the common one-question admin wizard: ask,
// validate, apply, confirm. The apply callback returns the confirmation
// text and keyboard.
func (f *Flows) singleTextWizard(name string, step session.StepID, prompt, emptyMsg string,
	apply func(ctx context.Context, sess *session.Session, value string) (string, *chat.Keyboard, error)) *wizard.Definition {
	return &wizard.Definition{
		Name:  name,
		First: step,
		Steps: map[session.StepID]wizard.Step{
			step: {
				ID:    step,
				Input: wizard.InputText,
				Prompt: func(*session.Session) chat.Content {
					return chat.Content{Text: prompt}
				},
				Validate: requireText(emptyMsg, 100),
				Transition: func(ctx context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					text, kb, err := apply(ctx, sess, strings.TrimSpace(in.Text))
					if err != nil {
						return wizard.Result{}, err
					}
					if err := f.render(ctx, sess, sess.ChatID, chat.Content{Text: text, Keyboard: kb}); err != nil {
						return wizard.Result{}, err
					}
					return wizard.Done(), nil
				},
			},
		},
	}
}
