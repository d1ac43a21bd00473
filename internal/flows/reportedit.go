package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

const wizReportEdit = "report_edit_wizard"

const (
	stepReField  session.StepID = "re_field"
	stepReObject session.StepID = "re_object"
	stepReText   session.StepID = "re_text"
	stepRePhotos session.StepID = "re_photos"
)

const (
	fReportID = "report_id"
	fField    = "field"
	fNewValue = "new_value"
)

const (
	fieldObject    = "object"
	fieldWork      = "work"
	fieldMaterials = "materials"
	fieldPhotos    = "photos"
)

// handleReportEdit starts the edit wizard for one report. The object
// list and author identity are seeded up front because step prompts
// only see the form buffer.
func (f *Flows) handleReportEdit(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, rec, err := f.loadOwnReport(ctx, sess, event)
	if err != nil || rec == nil {
		return err
	}
	seed := map[string]string{
		fReportID:   rec.ID,
		fObjectName: rec.ObjectName,
	}
	orgID := u.OrgID
	if rec.AuthorID != u.ID {
		if author, err := f.users.Get(ctx, rec.AuthorID); err == nil {
			orgID = author.OrgID
		}
	}
	if orgID != "" {
		objects, err := f.catalog.ListObjects(ctx, orgID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(objects))
		for _, o := range objects {
			names = append(names, o.Name)
		}
		seed[fObjects] = packList(names)
	}
	return f.engine.Start(ctx, sess, event.ChatID, wizReportEdit, seed)
}

func (f *Flows) reportEditWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizReportEdit,
		First: stepReField,
		Steps: map[session.StepID]wizard.Step{
			stepReField: {
				ID:      stepReField,
				Input:   wizard.InputChoice,
				Actions: []string{"re_field", "re_cancel"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					kb.Row(chat.Button{Label: "Object", Data: router.Encode("re_field", fieldObject)})
					kb.Row(chat.Button{Label: "Work done", Data: router.Encode("re_field", fieldWork)})
					kb.Row(chat.Button{Label: "Materials", Data: router.Encode("re_field", fieldMaterials)})
					kb.Row(chat.Button{Label: "Photos", Data: router.Encode("re_field", fieldPhotos)})
					kb.Row(chat.Button{Label: "✖ Cancel", Data: router.Encode("re_cancel")})
					return chat.Content{Text: "What do you want to change?", Keyboard: kb}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "re_cancel" {
						return wizard.Done(), nil
					}
					field := in.Arg(0)
					sess.Set(fField, field)
					switch field {
					case fieldObject:
						if sess.Get(fObjects) == "" {
							return wizard.Result{}, wizard.Invalid("no objects are available to pick from")
						}
						return wizard.Next(stepReObject), nil
					case fieldWork, fieldMaterials:
						return wizard.Next(stepReText), nil
					case fieldPhotos:
						return wizard.Next(stepRePhotos), nil
					}
					return wizard.Result{}, wizard.Invalid("pick a field from the list")
				},
			},
			stepReObject: {
				ID:      stepReObject,
				Input:   wizard.InputChoice,
				Actions: []string{"re_pick", "re_page"},
				Prompt: func(sess *session.Session) chat.Content {
					return objectPickerPrompt(sess, "Pick the new object.", "re_pick", "re_page")
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "re_page" {
						sess.Set(fPage, in.Arg(0))
						return wizard.Stay(sess), nil
					}
					objects := unpackList(sess.Get(fObjects))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(objects) {
						return wizard.Result{}, wizard.Invalid("pick an object from the list")
					}
					sess.Set(fNewValue, objects[i])
					return wizard.Done(), nil
				},
			},
			stepReText: {
				ID:    stepReText,
				Input: wizard.InputText,
				Prompt: func(sess *session.Session) chat.Content {
					if sess.Get(fField) == fieldMaterials {
						return chat.Content{Text: "Enter the new materials list."}
					}
					return chat.Content{Text: "Enter the new work description."}
				},
				Validate: requireText("enter the new text", maxTextLen),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fNewValue, strings.TrimSpace(in.Text))
					return wizard.Done(), nil
				},
			},
			stepRePhotos: {
				ID:      stepRePhotos,
				Input:   wizard.InputText,
				Actions: []string{"re_photos_done"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := (&chat.Keyboard{}).Row(chat.Button{Label: "Done", Data: router.Encode("re_photos_done")})
					text := "Send the new photos one by one; they replace the current ones. Done with none sent keeps the current photos."
					if n := len(sess.List(fPhotos)); n > 0 {
						text = fmt.Sprintf("Got %d photo(s). Send more, or press Done to replace the current photos.", n)
					}
					return chat.Content{Text: text, Keyboard: kb}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "re_photos_done" {
						return wizard.Done(), nil
					}
					fileID, ok := chat.PhotoRef(in.Text)
					if !ok {
						return wizard.Result{}, wizard.Invalid("send a photo, or press Done")
					}
					sess.Append(fPhotos, fileID)
					if len(sess.List(fPhotos)) >= maxPhotos {
						return wizard.Done(), nil
					}
					return wizard.Stay(sess), nil
				},
			},
		},
		OnComplete: f.completeReportEdit,
	}
}

// completeReportEdit applies the edited field, then replaces every
// previous channel posting with a fresh fan-out against the current
// target resolution. The stored channel message map is swapped
// wholesale afterwards.
func (f *Flows) completeReportEdit(ctx context.Context, sess *session.Session) error {
	field := sess.Get(fField)
	if field == "" {
		return f.render(ctx, sess, sess.ChatID, chat.Content{
			Text:     "Edit cancelled.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	id := sess.Get(fReportID)
	prev, err := f.reports.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load report %s: %w", id, err)
	}

	var params report.UpdateParams
	switch field {
	case fieldObject:
		value := sess.Get(fNewValue)
		params.ObjectName = &value
	case fieldWork:
		value := sess.Get(fNewValue)
		params.WorkDone = &value
	case fieldMaterials:
		value := sess.Get(fNewValue)
		params.Materials = &value
	case fieldPhotos:
		photos := sess.List(fPhotos)
		// Done without sending anything keeps the current photos: no
		// body change, no republish.
		if len(photos) == 0 {
			return f.render(ctx, sess, sess.ChatID, chat.Content{
				Text:     "Photos unchanged.",
				Keyboard: backRow(&chat.Keyboard{}),
			})
		}
		params.PhotoIDs = photos
	default:
		return fmt.Errorf("unknown edit field: %s", field)
	}
	updated, err := f.reports.UpdateBody(ctx, id, params)
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}

	author, err := f.users.Get(ctx, updated.AuthorID)
	if err != nil {
		return fmt.Errorf("load author of %s: %w", id, err)
	}
	result, err := f.pub.Update(ctx, reportDocument(updated, author), prev.ChannelMessages)
	if err != nil {
		return fmt.Errorf("republish report %s: %w", id, err)
	}
	if err := f.reports.ReplaceChannelMessages(ctx, id, result.Map); err != nil {
		return fmt.Errorf("record postings for %s: %w", id, err)
	}
	return f.render(ctx, sess, sess.ChatID, chat.Content{
		Text:     "Report updated. " + publishOutcome(result),
		Keyboard: backRow(&chat.Keyboard{}),
	})
}
