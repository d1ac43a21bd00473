package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/publish"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/users"
)

const reportsPerPage = 5

func (f *Flows) handleReportList(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	page, _ := strconv.Atoi(event.Arg(0))
	if page < 0 {
		page = 0
	}
	total, err := f.reports.CountByAuthor(ctx, u.ID)
	if err != nil {
		return err
	}
	if total == 0 {
		return f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "You have no reports yet.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	last := (total - 1) / reportsPerPage
	if page > last {
		page = last
	}
	items, err := f.reports.ListByAuthor(ctx, u.ID, reportsPerPage, page*reportsPerPage)
	if err != nil {
		return err
	}
	kb := &chat.Keyboard{}
	for _, rec := range items {
		label := fmt.Sprintf("%s — %s", rec.ReportDate.Format("02.01"), rec.ObjectName)
		kb.Row(chat.Button{Label: label, Data: router.Encode(actReportView, rec.ID)})
	}
	var nav []chat.Button
	if page > 0 {
		nav = append(nav, chat.Button{Label: "« Prev", Data: router.Encode(actReportList, strconv.Itoa(page-1))})
	}
	if page < last {
		nav = append(nav, chat.Button{Label: "Next »", Data: router.Encode(actReportList, strconv.Itoa(page+1))})
	}
	if len(nav) > 0 {
		kb.Row(nav...)
	}
	backRow(kb)
	text := fmt.Sprintf("Your reports (%d total", total)
	if last > 0 {
		text += fmt.Sprintf(", page %d/%d", page+1, last+1)
	}
	text += "):"
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

// loadOwnReport fetches the report behind an event and checks the
// caller may touch it: the author always, managers and admins too.
func (f *Flows) loadOwnReport(ctx context.Context, sess *session.Session, event router.ActionEvent) (*users.User, *report.Report, error) {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return nil, nil, err
	}
	rec, err := f.reports.Get(ctx, event.Arg(0))
	if errors.Is(err, report.ErrNotFound) {
		return nil, nil, f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "That report no longer exists.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	if err != nil {
		return nil, nil, err
	}
	if rec.AuthorID != u.ID && !u.Privileged() {
		return nil, nil, f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "You are not permitted to do that.",
			Keyboard: backRow(&chat.Keyboard{}),
		})
	}
	return u, &rec, nil
}

func (f *Flows) handleReportView(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, rec, err := f.loadOwnReport(ctx, sess, event)
	if err != nil || rec == nil {
		return err
	}
	author := *u
	if rec.AuthorID != u.ID {
		if loaded, err := f.users.Get(ctx, rec.AuthorID); err == nil {
			author = loaded
		}
	}
	text := publish.ComposeBody(reportDocument(*rec, author))
	if n := len(rec.PhotoIDs); n > 0 {
		text += fmt.Sprintf("\n\n📷 %d photo(s)", n)
	}
	if n := len(rec.ChannelMessages); n > 0 {
		text += fmt.Sprintf("\nPublished in %d channel(s)", n)
	}
	kb := &chat.Keyboard{}
	kb.Row(
		chat.Button{Label: "✏ Edit", Data: router.Encode(actReportEdit, rec.ID)},
		chat.Button{Label: "🗑 Delete", Data: router.Encode(actReportDelete, rec.ID)},
	)
	kb.Row(chat.Button{Label: "« My reports", Data: router.Encode(actReportList, "0")})
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleReportDelete(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	_, rec, err := f.loadOwnReport(ctx, sess, event)
	if err != nil || rec == nil {
		return err
	}
	kb := &chat.Keyboard{}
	kb.Row(
		chat.Button{Label: "Yes, delete", Data: router.Encode(actReportDeleteConfirm, rec.ID)},
		chat.Button{Label: "Keep it", Data: router.Encode(actReportView, rec.ID)},
	)
	text := fmt.Sprintf("Delete the report for %s from %s? Its channel postings will be removed too.",
		rec.ObjectName, rec.ReportDate.Format("02.01.2006"))
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleReportDeleteConfirm(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	_, rec, err := f.loadOwnReport(ctx, sess, event)
	if err != nil || rec == nil {
		return err
	}
	f.pub.Delete(ctx, rec.ChannelMessages)
	if err := f.reports.Delete(ctx, rec.ID); err != nil {
		return err
	}
	return f.render(ctx, sess, event.ChatID, chat.Content{
		Text:     "Report deleted.",
		Keyboard: backRow(&chat.Keyboard{}),
	})
}

// reportDocument builds the publishable document for a stored report.
func reportDocument(rec report.Report, author users.User) publish.Document {
	return publish.Document{
		ID:         rec.ID,
		AuthorID:   rec.AuthorID,
		AuthorName: author.Name,
		Position:   author.Position,
		ObjectName: rec.ObjectName,
		OrgName:    author.OrgName,
		WorkDone:   rec.WorkDone,
		Materials:  rec.Materials,
		PhotoIDs:   rec.PhotoIDs,
		Date:       rec.ReportDate,
	}
}
