package flows

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/logger"
	"github.com/fieldops/reportbot/internal/publish"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/wizard"
)

const wizReportCreate = "report_create"

const (
	stepRcObject    session.StepID = "rc_object"
	stepRcWork      session.StepID = "rc_work"
	stepRcMaterials session.StepID = "rc_materials"
	stepRcPhotos    session.StepID = "rc_photos"
	stepRcConfirm   session.StepID = "rc_confirm"
)

// Form keys of the report wizards.
const (
	fObjects    = "objects"
	fObjectName = "object_name"
	fWorkDone   = "work_done"
	fMaterials  = "materials"
	fPhotos     = "photos"
	fPage       = "page"
	fConfirmed  = "confirmed"
	fAuthorID   = "author_id"
	fAuthorName = "author_name"
	fAuthorPos  = "author_position"
	fOrgName    = "org_name"
	fRepeatDay  = "repeat_day"
)

const (
	objectsPerPage = 6
	maxPhotos      = 10
	maxTextLen     = 2000
)

func (f *Flows) handleReportNew(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	if u.OrgID == "" {
		return f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "You are not assigned to an organization yet. Ask your manager to assign you.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	objects, err := f.catalog.ListObjects(ctx, u.OrgID)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "No active objects are configured for your organization.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name)
	}
	seed := map[string]string{
		fObjects:    packList(names),
		fAuthorID:   u.ID,
		fAuthorName: u.Name,
		fAuthorPos:  u.Position,
		fOrgName:    u.OrgName,
	}
	if already, err := f.reports.HasReportOn(ctx, u.ID, time.Now()); err == nil && already {
		seed[fRepeatDay] = "1"
	}
	return f.engine.Start(ctx, sess, event.ChatID, wizReportCreate, seed)
}

func (f *Flows) reportCreateWizard() *wizard.Definition {
	return &wizard.Definition{
		Name:  wizReportCreate,
		First: stepRcObject,
		Steps: map[session.StepID]wizard.Step{
			stepRcObject: {
				ID:      stepRcObject,
				Input:   wizard.InputChoice,
				Actions: []string{"rc_pick", "rc_page"},
				Prompt: func(sess *session.Session) chat.Content {
					title := "Which object did you work on today?"
					if sess.Get(fRepeatDay) == "1" {
						title = "You already sent a report today. This one will be published as an additional report.\n\n" + title
					}
					return objectPickerPrompt(sess, title, "rc_pick", "rc_page")
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "rc_page" {
						sess.Set(fPage, in.Arg(0))
						return wizard.Stay(sess), nil
					}
					objects := unpackList(sess.Get(fObjects))
					i, err := strconv.Atoi(in.Arg(0))
					if err != nil || i < 0 || i >= len(objects) {
						return wizard.Result{}, wizard.Invalid("pick an object from the list")
					}
					sess.Set(fObjectName, objects[i])
					return wizard.Next(stepRcWork), nil
				},
			},
			stepRcWork: {
				ID:    stepRcWork,
				Input: wizard.InputText,
				Prompt: func(sess *session.Session) chat.Content {
					return chat.Content{Text: fmt.Sprintf("Object: %s\n\nDescribe the work done today.", sess.Get(fObjectName))}
				},
				Validate: requireText("describe the work done", maxTextLen),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					sess.Set(fWorkDone, strings.TrimSpace(in.Text))
					return wizard.Next(stepRcMaterials), nil
				},
			},
			stepRcMaterials: {
				ID:      stepRcMaterials,
				Input:   wizard.InputText,
				Actions: []string{"rc_no_materials"},
				Prompt: func(*session.Session) chat.Content {
					kb := &chat.Keyboard{}
					kb.Row(chat.Button{Label: "No materials used", Data: router.Encode("rc_no_materials")})
					return chat.Content{Text: "What materials were used?", Keyboard: kb}
				},
				Validate: requireText("list the materials, or press the button", maxTextLen),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "rc_no_materials" {
						sess.Set(fMaterials, "")
					} else {
						sess.Set(fMaterials, strings.TrimSpace(in.Text))
					}
					return wizard.Next(stepRcPhotos), nil
				},
			},
			stepRcPhotos: {
				ID:      stepRcPhotos,
				Input:   wizard.InputText,
				Actions: []string{"rc_photos_done"},
				Prompt:  photosPrompt("rc_photos_done"),
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "rc_photos_done" {
						return wizard.Next(stepRcConfirm), nil
					}
					fileID, ok := chat.PhotoRef(in.Text)
					if !ok {
						return wizard.Result{}, wizard.Invalid("send a photo, or press Done")
					}
					sess.Append(fPhotos, fileID)
					if len(sess.List(fPhotos)) >= maxPhotos {
						return wizard.Next(stepRcConfirm), nil
					}
					return wizard.Stay(sess), nil
				},
			},
			stepRcConfirm: {
				ID:      stepRcConfirm,
				Input:   wizard.InputChoice,
				Actions: []string{"rc_publish", "rc_cancel"},
				Prompt: func(sess *session.Session) chat.Content {
					kb := &chat.Keyboard{}
					kb.Row(
						chat.Button{Label: "✅ Publish", Data: router.Encode("rc_publish")},
						chat.Button{Label: "✖ Cancel", Data: router.Encode("rc_cancel")},
					)
					preview := publish.ComposeBody(documentFromForm(sess, "", time.Now()))
					text := "Here is your report:\n\n" + preview
					if n := len(sess.List(fPhotos)); n > 0 {
						text += fmt.Sprintf("\n\n📷 %d photo(s) attached", n)
					}
					return chat.Content{Text: text, Keyboard: kb}
				},
				Transition: func(_ context.Context, sess *session.Session, in wizard.Input) (wizard.Result, error) {
					if in.Action == "rc_publish" {
						sess.Set(fConfirmed, "1")
					}
					return wizard.Done(), nil
				},
			},
		},
		OnComplete: f.completeReportCreate,
	}
}

func (f *Flows) completeReportCreate(ctx context.Context, sess *session.Session) error {
	if sess.Get(fConfirmed) != "1" {
		return f.render(ctx, sess, sess.ChatID, chat.Content{
			Text:     "Report discarded.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	rec, err := f.reports.Create(ctx, report.CreateParams{
		AuthorID:   sess.Get(fAuthorID),
		ObjectName: sess.Get(fObjectName),
		WorkDone:   sess.Get(fWorkDone),
		Materials:  sess.Get(fMaterials),
		PhotoIDs:   sess.List(fPhotos),
		ReportDate: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	result, err := f.pub.Publish(ctx, documentFromForm(sess, rec.ID, rec.ReportDate))
	if err != nil {
		return fmt.Errorf("publish report %s: %w", rec.ID, err)
	}
	if err := f.reports.ReplaceChannelMessages(ctx, rec.ID, result.Map); err != nil {
		return fmt.Errorf("record postings for %s: %w", rec.ID, err)
	}
	logger.FromContext(ctx).Info("report published",
		slog.String("report_id", rec.ID),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
	)
	return f.render(ctx, sess, sess.ChatID, chat.Content{
		Text:     publishOutcome(result),
		Keyboard: backRow(&chat.Keyboard{}),
	})
}

func documentFromForm(sess *session.Session, id string, date time.Time) publish.Document {
	return publish.Document{
		ID:         id,
		AuthorID:   sess.Get(fAuthorID),
		AuthorName: sess.Get(fAuthorName),
		Position:   sess.Get(fAuthorPos),
		ObjectName: sess.Get(fObjectName),
		OrgName:    sess.Get(fOrgName),
		WorkDone:   sess.Get(fWorkDone),
		Materials:  sess.Get(fMaterials),
		PhotoIDs:   sess.List(fPhotos),
		Date:       date,
	}
}

func publishOutcome(result publish.Result) string {
	switch {
	case result.Sent == 0 && result.Failed == 0:
		return "Report saved. No channels are configured for this object yet."
	case result.Failed == 0:
		return fmt.Sprintf("Report published to %d channel(s).", result.Sent)
	default:
		return fmt.Sprintf("Report published to %d channel(s); %d channel(s) failed: %s.",
			result.Sent, result.Failed, strings.Join(result.FailedChannels, ", "))
	}
}

// objectPickerPrompt renders one page of object buttons with prev/next
// navigation. The full list lives in the form; buttons carry indexes.
func objectPickerPrompt(sess *session.Session, title, pickAction, pageAction string) chat.Content {
	objects := unpackList(sess.Get(fObjects))
	page, _ := strconv.Atoi(sess.Get(fPage))
	last := (len(objects) - 1) / objectsPerPage
	if page < 0 {
		page = 0
	}
	if page > last {
		page = last
	}
	start := page * objectsPerPage
	end := start + objectsPerPage
	if end > len(objects) {
		end = len(objects)
	}
	kb := &chat.Keyboard{}
	for i := start; i < end; i++ {
		kb.Row(chat.Button{Label: objects[i], Data: router.Encode(pickAction, strconv.Itoa(i))})
	}
	var nav []chat.Button
	if page > 0 {
		nav = append(nav, chat.Button{Label: "« Prev", Data: router.Encode(pageAction, strconv.Itoa(page-1))})
	}
	if page < last {
		nav = append(nav, chat.Button{Label: "Next »", Data: router.Encode(pageAction, strconv.Itoa(page+1))})
	}
	if len(nav) > 0 {
		kb.Row(nav...)
	}
	text := title
	if last > 0 {
		text = fmt.Sprintf("%s (page %d/%d)", title, page+1, last+1)
	}
	return chat.Content{Text: text, Keyboard: kb}
}

func photosPrompt(doneAction string) func(*session.Session) chat.Content {
	return func(sess *session.Session) chat.Content {
		kb := &chat.Keyboard{}
		kb.Row(chat.Button{Label: "Done", Data: router.Encode(doneAction)})
		text := "Send photos of the work, one by one, or press Done to skip."
		if n := len(sess.List(fPhotos)); n > 0 {
			text = fmt.Sprintf("Got %d photo(s). Send more, or press Done.", n)
		}
		return chat.Content{Text: text, Keyboard: kb}
	}
}
