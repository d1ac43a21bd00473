// Package flows defines every user-facing conversation: the main menu,
// the registration / report / profile wizards, and the admin screens.
// Wizard definitions are data handed to the wizard engine; stateless
// screens are handlers registered on the action router.
package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldops/reportbot/internal/chat"
	"github.com/fieldops/reportbot/internal/menu"
	"github.com/fieldops/reportbot/internal/org"
	"github.com/fieldops/reportbot/internal/publish"
	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/router"
	"github.com/fieldops/reportbot/internal/session"
	"github.com/fieldops/reportbot/internal/users"
	"github.com/fieldops/reportbot/internal/wizard"
)

// UserDirectory is the slice of the users service the flows need.
type UserDirectory interface {
	GetByTGUserID(ctx context.Context, tgUserID string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	Create(ctx context.Context, params users.CreateParams) (users.User, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdatePosition(ctx context.Context, id, position string) error
	SetRole(ctx context.Context, id, role string) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context) ([]users.User, error)
	ListByOrg(ctx context.Context, orgID string) ([]users.User, error)
}

// Catalog is the slice of the org service the flows need.
type Catalog interface {
	ListOrganizations(ctx context.Context) ([]org.Organization, error)
	GetOrganization(ctx context.Context, id string) (org.Organization, error)
	CreateOrganization(ctx context.Context, name string) (org.Organization, error)
	RenameOrganization(ctx context.Context, id, name string) error
	SetBroadcastChannel(ctx context.Context, id, channel string) error
	DeleteOrganization(ctx context.Context, id string) error
	MigrateUsers(ctx context.Context, fromID, toID string) (int, error)
	ListObjects(ctx context.Context, orgID string) ([]org.Object, error)
	ListAllObjects(ctx context.Context, orgID string) ([]org.Object, error)
	GetObject(ctx context.Context, id string) (org.Object, error)
	CreateObject(ctx context.Context, orgID, name, channel string) (org.Object, error)
	SetObjectChannel(ctx context.Context, id, channel string) error
	SetObjectActive(ctx context.Context, id string, active bool) error
	ListPositions(ctx context.Context) ([]org.Position, error)
	CreatePosition(ctx context.Context, name string) (org.Position, error)
	DeletePosition(ctx context.Context, id string) error
}

// ReportStore is the slice of the report service the flows need.
type ReportStore interface {
	Create(ctx context.Context, params report.CreateParams) (report.Report, error)
	Get(ctx context.Context, id string) (report.Report, error)
	UpdateBody(ctx context.Context, id string, params report.UpdateParams) (report.Report, error)
	ReplaceChannelMessages(ctx context.Context, id string, m publish.ChannelMessageMap) error
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]report.Report, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	HasReportOn(ctx context.Context, authorID string, day time.Time) (bool, error)
}

// InviteIssuer is the slice of the invite service the flows need.
type InviteIssuer interface {
	Issue(ctx context.Context, role string) (string, error)
	Verify(code string) (string, error)
	Redeem(ctx context.Context, code, userID string) (string, error)
}

// Publisher is the slice of the publish engine the flows need.
type Publisher interface {
	Publish(ctx context.Context, doc publish.Document) (publish.Result, error)
	Update(ctx context.Context, doc publish.Document, prev publish.ChannelMessageMap) (publish.Result, error)
	Delete(ctx context.Context, m publish.ChannelMessageMap)
}

// Flows owns every conversation definition.
type Flows struct {
	engine   *wizard.Engine
	renderer *menu.Renderer
	users    UserDirectory
	catalog  Catalog
	reports  ReportStore
	invites  InviteIssuer
	pub      Publisher
	logger   *slog.Logger
}

func New(log *slog.Logger, engine *wizard.Engine, renderer *menu.Renderer,
	users UserDirectory, catalog Catalog, reports ReportStore,
	invites InviteIssuer, pub Publisher) *Flows {
	if log == nil {
		log = slog.Default()
	}
	return &Flows{
		engine:   engine,
		renderer: renderer,
		users:    users,
		catalog:  catalog,
		reports:  reports,
		invites:  invites,
		pub:      pub,
		logger:   log.With(slog.String("service", "flows")),
	}
}

// Action names. Wizard steps reference them in Actions lists and
// keyboards encode them with router.Encode.
const (
	actStart = "start"
	actMenu  = "menu"

	actReportNew           = "report_new"
	actReportList          = "report_list"
	actReportView          = "report_view"
	actReportEdit          = "report_edit"
	actReportDelete        = "report_delete"
	actReportDeleteConfirm = "report_delete_yes"

	actProfile             = "profile"
	actProfileEditName     = "profile_edit_name"
	actProfileEditPosition = "profile_edit_position"

	actAdmin           = "admin"
	actAdminOrgs       = "admin_orgs"
	actAdminOrgView    = "admin_org_view"
	actAdminOrgNew     = "admin_org_new"
	actAdminOrgRename  = "admin_org_rename"
	actAdminOrgChannel = "admin_org_channel"
	actAdminOrgDelete  = "admin_org_delete"

	actAdminObjects       = "admin_objects"
	actAdminObjectNew     = "admin_object_new"
	actAdminObjectChannel = "admin_object_channel"
	actAdminObjectToggle  = "admin_object_toggle"

	actAdminPositions      = "admin_positions"
	actAdminPositionNew    = "admin_position_new"
	actAdminPositionDelete = "admin_position_del"

	actAdminUsers      = "admin_users"
	actAdminUserView   = "admin_user_view"
	actAdminUserRole   = "admin_user_role"
	actAdminUserToggle = "admin_user_toggle"

	actAdminInvites = "admin_invites"
	actAdminInvite  = "admin_invite"
)

// Register wires every handler and wizard definition. Called once at
// boot; duplicate registrations panic there, not at runtime.
func (f *Flows) Register(r *router.Router) {
	f.engine.Register(f.registerWizard())
	f.engine.Register(f.reportCreateWizard())
	f.engine.Register(f.reportEditWizard())
	f.engine.Register(f.profileNameWizard())
	f.engine.Register(f.profilePositionWizard())
	f.engine.Register(f.orgCreateWizard())
	f.engine.Register(f.orgRenameWizard())
	f.engine.Register(f.orgChannelWizard())
	f.engine.Register(f.orgMigrateWizard())
	f.engine.Register(f.objectCreateWizard())
	f.engine.Register(f.objectChannelWizard())
	f.engine.Register(f.positionCreateWizard())

	top := func(name string, h router.Handler) router.Registration {
		return router.Registration{Name: name, TopLevel: true, Handler: h}
	}
	admin := func(name string, h router.Handler) router.Registration {
		return router.Registration{Name: name, TopLevel: true, Privileged: true, Handler: h}
	}

	for _, reg := range []router.Registration{
		top(actStart, f.handleStart),
		top(actMenu, f.handleMenu),

		top(actReportNew, f.handleReportNew),
		top(actReportList, f.handleReportList),
		top(actReportView, f.handleReportView),
		top(actReportEdit, f.handleReportEdit),
		top(actReportDelete, f.handleReportDelete),
		top(actReportDeleteConfirm, f.handleReportDeleteConfirm),

		top(actProfile, f.handleProfile),
		top(actProfileEditName, f.handleProfileEditName),
		top(actProfileEditPosition, f.handleProfileEditPosition),

		admin(actAdmin, f.handleAdmin),
		admin(actAdminOrgs, f.handleAdminOrgs),
		admin(actAdminOrgView, f.handleAdminOrgView),
		admin(actAdminOrgNew, f.handleAdminOrgNew),
		admin(actAdminOrgRename, f.handleAdminOrgRename),
		admin(actAdminOrgChannel, f.handleAdminOrgChannel),
		admin(actAdminOrgDelete, f.handleAdminOrgDelete),

		admin(actAdminObjects, f.handleAdminObjects),
		admin(actAdminObjectNew, f.handleAdminObjectNew),
		admin(actAdminObjectChannel, f.handleAdminObjectChannel),
		admin(actAdminObjectToggle, f.handleAdminObjectToggle),

		admin(actAdminPositions, f.handleAdminPositions),
		admin(actAdminPositionNew, f.handleAdminPositionNew),
		admin(actAdminPositionDelete, f.handleAdminPositionDelete),

		admin(actAdminUsers, f.handleAdminUsers),
		admin(actAdminUserView, f.handleAdminUserView),
		admin(actAdminUserRole, f.handleAdminUserRole),
		admin(actAdminUserToggle, f.handleAdminUserToggle),

		admin(actAdminInvites, f.handleAdminInvites),
		admin(actAdminInvite, f.handleAdminInvite),
	} {
		r.Register(reg)
	}
}

// --- entry points ---

// handleStart greets a registered user with the main menu and sends an
// unknown one into the registration wizard.
func (f *Flows) handleStart(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.users.GetByTGUserID(ctx, event.UserID)
	if errors.Is(err, users.ErrNotFound) {
		return f.startRegistration(ctx, sess, event)
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return f.render(ctx, sess, event.ChatID, chat.Content{
			Text: "Your account is deactivated. Contact your manager.",
		})
	}
	return f.renderMainMenu(ctx, sess, event.ChatID, u)
}

func (f *Flows) handleMenu(ctx context.Context, sess *session.Session, event router.ActionEvent) error {
	u, err := f.requireUser(ctx, sess, event)
	if err != nil || u == nil {
		return err
	}
	return f.renderMainMenu(ctx, sess, event.ChatID, *u)
}

func (f *Flows) renderMainMenu(ctx context.Context, sess *session.Session, chatID string, u users.User) error {
	kb := &chat.Keyboard{}
	kb.Row(chat.Button{Label: "📝 New report", Data: router.Encode(actReportNew)})
	kb.Row(chat.Button{Label: "📋 My reports", Data: router.Encode(actReportList, "0")})
	kb.Row(chat.Button{Label: "👤 Profile", Data: router.Encode(actProfile)})
	if u.Privileged() {
		kb.Row(chat.Button{Label: "⚙ Administration", Data: router.Encode(actAdmin)})
	}
	text := fmt.Sprintf("Hello, %s!\nWhat would you like to do?", u.Name)
	return f.render(ctx, sess, chatID, chat.Content{Text: text, Keyboard: kb})
}

// requireUser loads the active registered user behind the event. A nil
// user with nil error means a prompt to register was already rendered.
func (f *Flows) requireUser(ctx context.Context, sess *session.Session, event router.ActionEvent) (*users.User, error) {
	u, err := f.users.GetByTGUserID(ctx, event.UserID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, f.render(ctx, sess, event.ChatID, chat.Content{
			Text: "You are not registered yet. Send /start to begin.",
		})
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, f.render(ctx, sess, event.ChatID, chat.Content{
			Text: "Your account is deactivated. Contact your manager.",
		})
	}
	return &u, nil
}

func (f *Flows) render(ctx context.Context, sess *session.Session, chatID string, content chat.Content) error {
	_, err := f.renderer.Render(ctx, sess, chatID, content)
	return err
}

// --- shared keyboard helpers ---

func backRow(kb *chat.Keyboard) *chat.Keyboard {
	return kb.Row(chat.Button{Label: "« Menu", Data: router.Encode(actMenu)})
}

// --- list seeding ---
//
// Step prompts are pure functions of the form buffer, so anything a
// prompt lists (objects, organizations, positions) is loaded once when
// the wizard starts and seeded into the form as newline-joined records.
// Buttons then carry list indexes, which also keeps callback payloads
// inside the platform's 64-byte limit.

const recordSep = "\x1f"

func packList(lines []string) string {
	return strings.Join(lines, "\n")
}

func unpackList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func packRecord(fields ...string) string {
	return strings.Join(fields, recordSep)
}

func unpackRecord(line string) []string {
	return strings.Split(line, recordSep)
}

func recordField(line string, i int) string {
	fields := unpackRecord(line)
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
