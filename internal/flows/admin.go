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
	"github.com/fieldops/reportbot/internal/users"
)

const usersPerPage = 8

func (f *Flows) handleAdmin(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	kb := &chat.Keyboard{}
	kb.Row(chat.Button{Label: "🏢 Organizations", Data: router.Encode(actAdminOrgs)})
	kb.Row(chat.Button{Label: "🛠 Positions", Data: router.Encode(actAdminPositions)})
	kb.Row(chat.Button{Label: "👥 Users", Data: router.Encode(actAdminUsers, "0")})
	kb.Row(chat.Button{Label: "✉ Invites", Data: router.Encode(actAdminInvites)})
	backRow(kb)
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: "Administration", Keyboard: kb})
}

// --- organizations ---

func (f *Flows) handleAdminOrgs(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	orgs, err := f.catalog.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	kb := &chat.Keyboard{}
	for _, o := range orgs {
		kb.Row(chat.Button{Label: o.Name, Data: router.Encode(actAdminOrgView, o.ID)})
	}
	kb.Row(chat.Button{Label: "➕ New organization", Data: router.Encode(actAdminOrgNew)})
	kb.Row(chat.Button{Label: "« Administration", Data: router.Encode(actAdmin)})
	text := "Organizations"
	if len(orgs) == 0 {
		text = "No organizations yet."
	}
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleAdminOrgView(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	o, err := f.catalog.GetOrganization(ctx, event.Arg(0))
	if errors.Is(err, org.ErrNotFound) {
		return f.handleAdminOrgs(ctx, sess, event)
	}
	if err != nil {
		return err
	}
	members, err := f.users.ListByOrg(ctx, o.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Organization: %s\nBroadcast channel: %s\nMembers: %d",
		o.Name, orDash(o.BroadcastChannel), len(members))
	kb := &chat.Keyboard{}
	kb.Row(
		chat.Button{Label: "✏ Rename", Data: router.Encode(actAdminOrgRename, o.ID)},
		chat.Button{Label: "📢 Channel", Data: router.Encode(actAdminOrgChannel, o.ID)},
	)
	kb.Row(chat.Button{Label: "📍 Objects", Data: router.Encode(actAdminObjects, o.ID)})
	kb.Row(chat.Button{Label: "🗑 Delete", Data: router.Encode(actAdminOrgDelete, o.ID)})
	kb.Row(chat.Button{Label: "« Organizations", Data: router.Encode(actAdminOrgs)})
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleAdminOrgNew(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizOrgCreate, nil)
}

func (f *Flows) handleAdminOrgRename(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizOrgRename, map[string]string{fOrgID: event.Arg(0)})
}

func (f *Flows) handleAdminOrgChannel(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizOrgChannel, map[string]string{fOrgID: event.Arg(0)})
}

// handleAdminOrgDelete deletes an empty organization outright. One that
// still has users assigned goes through the migration wizard instead,
// so no user is left pointing at a dead organization.
func (f *Flows) handleAdminOrgDelete(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	id := event.Arg(0)
	err := f.catalog.DeleteOrganization(ctx, id)
	if errors.Is(err, org.ErrHasUsers) {
		orgs, lerr := f.catalog.ListOrganizations(ctx)
		if lerr != nil {
			return lerr
		}
		lines := make([]string, 0, len(orgs))
		for _, o := range orgs {
			if o.ID == id {
				continue
			}
			lines = append(lines, packRecord(o.ID, o.Name))
		}
		if len(lines) == 0 {
			return f.render(ctx, sess, event.ChatID, chat.Content{
				Text:     "This organization still has users and there is no other organization to move them to. Create one first.",
				Keyboard: (&chat.Keyboard{}).Row(chat.Button{Label: "« Organizations", Data: router.Encode(actAdminOrgs)}),
			})
		}
		return f.engine.Start(ctx, sess, event.ChatID, wizOrgMigrate, map[string]string{
			fFromOrgID: id,
			fOrgs:      packList(lines),
		})
	}
	if errors.Is(err, org.ErrNotFound) {
		return f.handleAdminOrgs(ctx, sess, event)
	}
	if err != nil {
		return err
	}
	return f.render(ctx, sess, event.ChatID, chat.Content{
		Text:     "Organization deleted.",
		Keyboard: (&chat.Keyboard{}).Row(chat.Button{Label: "« Organizations", Data: router.Encode(actAdminOrgs)}),
	})
}

// --- objects ---

func (f *Flows) handleAdminObjects(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.renderAdminObjects(ctx, sess, event.ChatID, event.Arg(0))
}

func (f *Flows) renderAdminObjects(ctx context.Context, sess *session.Session, chatID, orgID string) error {
	o, err := f.catalog.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	objects, err := f.catalog.ListAllObjects(ctx, orgID)
	if err != nil {
		return err
	}
	kb := &chat.Keyboard{}
	for _, obj := range objects {
		marker := "●"
		if !obj.IsActive {
			marker = "○"
		}
		kb.Row(
			chat.Button{Label: marker + " " + obj.Name, Data: router.Encode(actAdminObjectToggle, obj.ID)},
			chat.Button{Label: "📢", Data: router.Encode(actAdminObjectChannel, obj.ID)},
		)
	}
	kb.Row(chat.Button{Label: "➕ New object", Data: router.Encode(actAdminObjectNew, orgID)})
	kb.Row(chat.Button{Label: "« " + o.Name, Data: router.Encode(actAdminOrgView, orgID)})
	text := fmt.Sprintf("Objects of %s\nTap an object to toggle it, 📢 to set its channel.", o.Name)
	if len(objects) == 0 {
		text = fmt.Sprintf("%s has no objects yet.", o.Name)
	}
	return f.render(ctx, sess, chatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleAdminObjectNew(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizObjectCreate, map[string]string{fOrgID: event.Arg(0)})
}

func (f *Flows) handleAdminObjectChannel(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizObjectChannel, map[string]string{fObjectID: event.Arg(0)})
}

func (f *Flows) handleAdminObjectToggle(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	obj, err := f.catalog.GetObject(ctx, event.Arg(0))
	if err != nil {
		return err
	}
	if err := f.catalog.SetObjectActive(ctx, obj.ID, !obj.IsActive); err != nil {
		return err
	}
	return f.renderAdminObjects(ctx, sess, event.ChatID, obj.OrgID)
}

// --- positions ---

func (f *Flows) handleAdminPositions(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.renderAdminPositions(ctx, sess, event.ChatID)
}

func (f *Flows) renderAdminPositions(ctx context.Context, sess *session.Session, chatID string) error {
	positions, err := f.catalog.ListPositions(ctx)
	if err != nil {
		return err
	}
	kb := &chat.Keyboard{}
	for _, p := range positions {
		kb.Row(chat.Button{Label: "🗑 " + p.Name, Data: router.Encode(actAdminPositionDelete, p.ID)})
	}
	kb.Row(chat.Button{Label: "➕ New position", Data: router.Encode(actAdminPositionNew)})
	kb.Row(chat.Button{Label: "« Administration", Data: router.Encode(actAdmin)})
	text := "Positions\nTap one to delete it."
	if len(positions) == 0 {
		text = "No positions yet."
	}
	return f.render(ctx, sess, chatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleAdminPositionNew(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.engine.Start(ctx, sess, event.ChatID, wizPositionCreate, nil)
}

func (f *Flows) handleAdminPositionDelete(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	if err := f.catalog.DeletePosition(ctx, event.Arg(0)); err != nil && !errors.Is(err, org.ErrNotFound) {
		return err
	}
	return f.renderAdminPositions(ctx, sess, event.ChatID)
}

// --- users ---

func (f *Flows) handleAdminUsers(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	all, err := f.users.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return f.render(ctx, sess, event.ChatID, chat.Content{
			Text:     "No users yet.",
			Keyboard: (&chat.Keyboard{}).Row(chat.Button{Label: "« Administration", Data: router.Encode(actAdmin)}),
		})
	}
	page, _ := strconv.Atoi(event.Arg(0))
	last := (len(all) - 1) / usersPerPage
	if page < 0 {
		page = 0
	}
	if page > last {
		page = last
	}
	start := page * usersPerPage
	end := start + usersPerPage
	if end > len(all) {
		end = len(all)
	}
	kb := &chat.Keyboard{}
	for _, u := range all[start:end] {
		label := fmt.Sprintf("%s (%s)", u.Name, u.Role)
		if !u.IsActive {
			label = "🚫 " + label
		}
		kb.Row(chat.Button{Label: label, Data: router.Encode(actAdminUserView, u.ID)})
	}
	var nav []chat.Button
	if page > 0 {
		nav = append(nav, chat.Button{Label: "« Prev", Data: router.Encode(actAdminUsers, strconv.Itoa(page-1))})
	}
	if page < last {
		nav = append(nav, chat.Button{Label: "Next »", Data: router.Encode(actAdminUsers, strconv.Itoa(page+1))})
	}
	if len(nav) > 0 {
		kb.Row(nav...)
	}
	kb.Row(chat.Button{Label: "« Administration", Data: router.Encode(actAdmin)})
	text := fmt.Sprintf("Users (%d)", len(all))
	if last > 0 {
		text += fmt.Sprintf(", page %d/%d", page+1, last+1)
	}
	return f.render(ctx, sess, event.ChatID, chat.Content{Text: text, Keyboard: kb})
}

func (f *Flows) handleAdminUserView(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	return f.renderAdminUser(ctx, sess, event.ChatID, event.Arg(0))
}

func (f *Flows) renderAdminUser(ctx context.Context, sess *session.Session, chatID, id string) error {
	u, err := f.users.Get(ctx, id)
	if err != nil {
		return err
	}
	status := "active"
	toggleLabel := "🚫 Deactivate"
	if !u.IsActive {
		status = "deactivated"
		toggleLabel = "✅ Activate"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", u.Name)
	fmt.Fprintf(&b, "Position: %s\n", orDash(u.Position))
	fmt.Fprintf(&b, "Organization: %s\n", orDash(u.OrgName))
	fmt.Fprintf(&b, "Role: %s\n", u.Role)
	fmt.Fprintf(&b, "Status: %s", status)
	kb := &chat.Keyboard{}
	var roleButtons []chat.Button
	for _, role := range []string{users.RoleStaff, users.RoleManager, users.RoleAdmin} {
		if role == u.Role {
			continue
		}
		roleButtons = append(roleButtons, chat.Button{
			Label: "→ " + role,
			Data:  router.Encode(actAdminUserRole, u.ID, role),
		})
	}
	kb.Row(roleButtons...)
	kb.Row(chat.Button{Label: toggleLabel, Data: router.Encode(actAdminUserToggle, u.ID)})
	kb.Row(chat.Button{Label: "« Users", Data: router.Encode(actAdminUsers, "0")})
	return f.render(ctx, sess, chatID, chat.Content{Text: b.String(), Keyboard: kb})
}

func (f *Flows) handleAdminUserRole(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	if err := f.users.SetRole(ctx, event.Arg(0), event.Arg(1)); err != nil {
		return err
	}
	return f.renderAdminUser(ctx, sess, event.ChatID, event.Arg(0))
}

func (f *Flows) handleAdminUserToggle(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.users.Get(ctx, event.Arg(0))
	if err != nil {
		return err
	}
	if err := f.users.SetActive(ctx, u.ID, !u.IsActive); err != nil {
		return err
	}
	return f.renderAdminUser(ctx, sess, event.ChatID, u.ID)
}

// --- invites ---

func (f *Flows) handleAdminInvites(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	kb := &chat.Keyboard{}
	for _, role := range []string{users.RoleStaff, users.RoleManager, users.RoleAdmin} {
		kb.Row(chat.Button{Label: "Invite " + role, Data: router.Encode(actAdminInvite, role)})
	}
	kb.Row(chat.Button{Label: "« Administration", Data: router.Encode(actAdmin)})
	return f.render(ctx, sess, event.ChatID, chat.Content{
		Text:     "Issue a single-use invite code. The code expires on its own if unused.",
		Keyboard: kb,
	})
}

func (f *Flows) handleAdminInvite(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	role := event.Arg(0)
	switch role {
	case users.RoleStaff, users.RoleManager, users.RoleAdmin:
	default:
		return fmt.Errorf("unknown invite role: %s", role)
	}
	code, err := f.invites.Issue(ctx, role)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Invite code for a new %s. Forward it to the person; they send it to the bot after /start.\n\n%s", role, code)
	return f.render(ctx, sess, event.ChatID, chat.Content{
		Text:     text,
		Keyboard: (&chat.Keyboard{}).Row(chat.Button{Label: "« Invites", Data: router.Encode(actAdminInvites)}),
	})
}
