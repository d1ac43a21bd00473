package flows

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

// --- fakes ---

type fakeClient struct {
	nextID int
	sent   []string
}

func (c *fakeClient) SendMessage(_ context.Context, _, text string, _ *chat.Keyboard) (int, error) {
	c.nextID++
	c.sent = append(c.sent, text)
	return c.nextID, nil
}

func (c *fakeClient) SendMediaGroup(_ context.Context, _ string, photoIDs []string, caption string) ([]int, error) {
	c.nextID++
	c.sent = append(c.sent, caption)
	return []int{c.nextID}, nil
}

func (c *fakeClient) DeleteMessage(context.Context, string, int) error { return nil }

func (c *fakeClient) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

type fakeUsers struct {
	byTG map[string]users.User
	byID map[string]users.User
}

func newFakeUsers(list ...users.User) *fakeUsers {
	f := &fakeUsers{byTG: map[string]users.User{}, byID: map[string]users.User{}}
	for _, u := range list {
		f.byTG[u.TGUserID] = u
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByTGUserID(_ context.Context, tgUserID string) (users.User, error) {
	u, ok := f.byTG[tgUserID]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, params users.CreateParams) (users.User, error) {
	if _, ok := f.byTG[params.TGUserID]; ok {
		return users.User{}, users.ErrExists
	}
	u := users.User{
		ID:       fmt.Sprintf("user-%d", len(f.byID)+1),
		TGUserID: params.TGUserID,
		TGChatID: params.TGChatID,
		Name:     params.Name,
		Role:     params.Role,
		Position: params.Position,
		OrgID:    params.OrgID,
		IsActive: true,
	}
	f.byTG[u.TGUserID] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) update(id string, mutate func(*users.User)) error {
	u, ok := f.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	mutate(&u)
	f.byID[id] = u
	f.byTG[u.TGUserID] = u
	return nil
}

func (f *fakeUsers) UpdateName(_ context.Context, id, name string) error {
	return f.update(id, func(u *users.User) { u.Name = name })
}

func (f *fakeUsers) UpdatePosition(_ context.Context, id, position string) error {
	return f.update(id, func(u *users.User) { u.Position = position })
}

func (f *fakeUsers) SetRole(_ context.Context, id, role string) error {
	return f.update(id, func(u *users.User) { u.Role = role })
}

func (f *fakeUsers) SetActive(_ context.Context, id string, active bool) error {
	return f.update(id, func(u *users.User) { u.IsActive = active })
}

func (f *fakeUsers) List(context.Context) ([]users.User, error) {
	var out []users.User
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) ListByOrg(_ context.Context, orgID string) ([]users.User, error) {
	var out []users.User
	for _, u := range f.byID {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) IsPrivileged(_ context.Context, tgUserID string) (bool, error) {
	u, ok := f.byTG[tgUserID]
	return ok && u.IsActive && u.Privileged(), nil
}

type fakeCatalog struct {
	orgs      []org.Organization
	objects   []org.Object
	positions []org.Position
	orgUsers  map[string]int // org id -> assigned user count
	ops       []string       // ordered migrate/delete log
}

func (f *fakeCatalog) ListOrganizations(context.Context) ([]org.Organization, error) {
	return f.orgs, nil
}

func (f *fakeCatalog) GetOrganization(_ context.Context, id string) (org.Organization, error) {
	for _, o := range f.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return org.Organization{}, org.ErrNotFound
}

func (f *fakeCatalog) CreateOrganization(_ context.Context, name string) (org.Organization, error) {
	o := org.Organization{ID: fmt.Sprintf("org-%d", len(f.orgs)+1), Name: name}
	f.orgs = append(f.orgs, o)
	return o, nil
}

func (f *fakeCatalog) RenameOrganization(context.Context, string, string) error { return nil }
func (f *fakeCatalog) SetBroadcastChannel(context.Context, string, string) error {
	return nil
}
func (f *fakeCatalog) DeleteOrganization(_ context.Context, id string) error {
	if f.orgUsers[id] > 0 {
		return org.ErrHasUsers
	}
	kept := f.orgs[:0]
	for _, o := range f.orgs {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	f.orgs = kept
	f.ops = append(f.ops, "delete:"+id)
	return nil
}

func (f *fakeCatalog) MigrateUsers(_ context.Context, fromID, toID string) (int, error) {
	if f.orgUsers == nil {
		f.orgUsers = map[string]int{}
	}
	moved := f.orgUsers[fromID]
	f.orgUsers[toID] += moved
	f.orgUsers[fromID] = 0
	f.ops = append(f.ops, fmt.Sprintf("migrate:%s>%s", fromID, toID))
	return moved, nil
}

func (f *fakeCatalog) ListObjects(_ context.Context, orgID string) ([]org.Object, error) {
	var out []org.Object
	for _, obj := range f.objects {
		if obj.OrgID == orgID && obj.IsActive {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListAllObjects(_ context.Context, orgID string) ([]org.Object, error) {
	var out []org.Object
	for _, obj := range f.objects {
		if obj.OrgID == orgID {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetObject(_ context.Context, id string) (org.Object, error) {
	for _, obj := range f.objects {
		if obj.ID == id {
			return obj, nil
		}
	}
	return org.Object{}, org.ErrNotFound
}

func (f *fakeCatalog) CreateObject(_ context.Context, orgID, name, channel string) (org.Object, error) {
	obj := org.Object{ID: fmt.Sprintf("obj-%d", len(f.objects)+1), OrgID: orgID, Name: name, Channel: channel, IsActive: true}
	f.objects = append(f.objects, obj)
	return obj, nil
}

func (f *fakeCatalog) SetObjectChannel(context.Context, string, string) error { return nil }
func (f *fakeCatalog) SetObjectActive(context.Context, string, bool) error    { return nil }

func (f *fakeCatalog) ListPositions(context.Context) ([]org.Position, error) {
	return f.positions, nil
}

func (f *fakeCatalog) CreatePosition(_ context.Context, name string) (org.Position, error) {
	p := org.Position{ID: fmt.Sprintf("pos-%d", len(f.positions)+1), Name: name}
	f.positions = append(f.positions, p)
	return p, nil
}

func (f *fakeCatalog) DeletePosition(context.Context, string) error { return nil }

type fakeReports struct {
	byID   map[string]report.Report
	nextID int
}

func newFakeReports() *fakeReports {
	return &fakeReports{byID: map[string]report.Report{}}
}

func (f *fakeReports) Create(_ context.Context, params report.CreateParams) (report.Report, error) {
	f.nextID++
	rec := report.Report{
		ID:              fmt.Sprintf("report-%d", f.nextID),
		AuthorID:        params.AuthorID,
		ObjectName:      params.ObjectName,
		WorkDone:        params.WorkDone,
		Materials:       params.Materials,
		PhotoIDs:        params.PhotoIDs,
		ChannelMessages: publish.ChannelMessageMap{},
		ReportDate:      params.ReportDate,
	}
	f.byID[rec.ID] = rec
	return rec, nil
}

func (f *fakeReports) Get(_ context.Context, id string) (report.Report, error) {
	rec, ok := f.byID[id]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	return rec, nil
}

func (f *fakeReports) UpdateBody(_ context.Context, id string, params report.UpdateParams) (report.Report, error) {
	rec, ok := f.byID[id]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	if params.ObjectName != nil {
		rec.ObjectName = *params.ObjectName
	}
	if params.WorkDone != nil {
		rec.WorkDone = *params.WorkDone
	}
	if params.Materials != nil {
		rec.Materials = *params.Materials
	}
	if params.PhotoIDs != nil {
		rec.PhotoIDs = params.PhotoIDs
	}
	f.byID[id] = rec
	return rec, nil
}

func (f *fakeReports) ReplaceChannelMessages(_ context.Context, id string, m publish.ChannelMessageMap) error {
	rec, ok := f.byID[id]
	if !ok {
		return report.ErrNotFound
	}
	rec.ChannelMessages = m
	f.byID[id] = rec
	return nil
}

func (f *fakeReports) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return report.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeReports) ListByAuthor(_ context.Context, authorID string, limit, offset int) ([]report.Report, error) {
	var out []report.Report
	for _, rec := range f.byID {
		if rec.AuthorID == authorID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeReports) CountByAuthor(_ context.Context, authorID string) (int, error) {
	count := 0
	for _, rec := range f.byID {
		if rec.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (f *fakeReports) HasReportOn(_ context.Context, authorID string, day time.Time) (bool, error) {
	for _, rec := range f.byID {
		if rec.AuthorID == authorID && rec.ReportDate.Format("2006-01-02") == day.Format("2006-01-02") {
			return true, nil
		}
	}
	return false, nil
}

type fakeInvites struct {
	issued   []string
	redeemed []string
}

// Codes are "code-<role>" in tests.
func (f *fakeInvites) Issue(_ context.Context, role string) (string, error) {
	code := "code-" + role
	f.issued = append(f.issued, code)
	return code, nil
}

func (f *fakeInvites) Verify(code string) (string, error) {
	role, ok := strings.CutPrefix(strings.TrimSpace(code), "code-")
	if !ok {
		return "", fmt.Errorf("bad code")
	}
	return role, nil
}

func (f *fakeInvites) Redeem(_ context.Context, code, userID string) (string, error) {
	f.redeemed = append(f.redeemed, code+"/"+userID)
	return f.Verify(code)
}

type fakePublisher struct {
	published []publish.Document
	updated   []publish.Document
	prevMaps  []publish.ChannelMessageMap
	deleted   []publish.ChannelMessageMap
	result    publish.Result
}

func (f *fakePublisher) Publish(_ context.Context, doc publish.Document) (publish.Result, error) {
	f.published = append(f.published, doc)
	return f.result, nil
}

func (f *fakePublisher) Update(_ context.Context, doc publish.Document, prev publish.ChannelMessageMap) (publish.Result, error) {
	f.updated = append(f.updated, doc)
	f.prevMaps = append(f.prevMaps, prev)
	return f.result, nil
}

func (f *fakePublisher) Delete(_ context.Context, m publish.ChannelMessageMap) {
	f.deleted = append(f.deleted, m)
}

// --- harness ---

type harness struct {
	client  *fakeClient
	store   *session.Store
	router  *router.Router
	users   *fakeUsers
	catalog *fakeCatalog
	reports *fakeReports
	invites *fakeInvites
	pub     *fakePublisher
}

func newHarness(t *testing.T, userList ...users.User) *harness {
	t.Helper()
	log := slog.Default()
	client := &fakeClient{}
	store := session.NewStore(log, 0)
	t.Cleanup(store.Close)
	renderer := menu.NewRenderer(log, client)
	engine := wizard.NewEngine(log, store, renderer)

	h := &harness{
		client:  client,
		store:   store,
		users:   newFakeUsers(userList...),
		catalog: &fakeCatalog{},
		reports: newFakeReports(),
		invites: &fakeInvites{},
		pub:     &fakePublisher{result: publish.Result{Map: publish.ChannelMessageMap{}}},
	}
	fl := New(log, engine, renderer, h.users, h.catalog, h.reports, h.invites, h.pub)
	h.router = router.New(log, store, engine, renderer, h.users)
	fl.Register(h.router)
	return h
}

func (h *harness) text(userID, text string) {
	h.router.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateText, UserID: userID, ChatID: userID, Text: text,
	})
}

func (h *harness) tap(userID, data string) {
	h.router.HandleUpdate(context.Background(), chat.Update{
		Kind: chat.UpdateCallback, UserID: userID, ChatID: userID, CallbackData: data,
	})
}

var staffUser = users.User{
	ID: "user-staff", TGUserID: "100", TGChatID: "100",
	Name: "Anna", Role: users.RoleStaff, Position: "Foreman",
	OrgID: "org-1", OrgName: "BuildCo", IsActive: true,
}

// --- tests ---

func TestCreateReportFlow(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.orgs = []org.Organization{{ID: "org-1", Name: "BuildCo", BroadcastChannel: "@buildco"}}
	h.catalog.objects = []org.Object{
		{ID: "obj-1", OrgID: "org-1", Name: "Site A", Channel: "@site_a", IsActive: true},
		{ID: "obj-2", OrgID: "org-1", Name: "Site B", Channel: "@site_b", IsActive: true},
	}
	h.pub.result = publish.Result{
		Map:  publish.ChannelMessageMap{"@site_a": {11}, "@buildco": {12}},
		Sent: 2,
	}

	h.tap("100", "report_new")
	h.tap("100", "rc_pick:0")
	h.text("100", "poured foundation")
	h.text("100", "50 bags cement")
	h.tap("100", "rc_photos_done")
	h.tap("100", "rc_publish")

	require.Len(t, h.pub.published, 1)
	doc := h.pub.published[0]
	require.Equal(t, "Site A", doc.ObjectName)
	require.Equal(t, "poured foundation", doc.WorkDone)
	require.Equal(t, "50 bags cement", doc.Materials)
	require.Equal(t, "Anna", doc.AuthorName)
	require.Equal(t, "BuildCo", doc.OrgName)

	rec, err := h.reports.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, publish.ChannelMessageMap{"@site_a": {11}, "@buildco": {12}}, rec.ChannelMessages)
	require.Contains(t, h.client.lastText(t), "published to 2 channel(s)")

	// The wizard is done; the session is idle again.
	require.True(t, h.store.Get("100").Idle())
}

func TestCreateReportFlow_CancelDiscards(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.objects = []org.Object{{ID: "obj-1", OrgID: "org-1", Name: "Site A", IsActive: true}}

	h.tap("100", "report_new")
	h.tap("100", "rc_pick:0")
	h.text("100", "work")
	h.text("100", "materials")
	h.tap("100", "rc_photos_done")
	h.tap("100", "rc_cancel")

	require.Empty(t, h.pub.published)
	require.Empty(t, h.reports.byID)
	require.Contains(t, h.client.lastText(t), "discarded")
}

func TestCreateReportFlow_PhotoCollection(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.objects = []org.Object{{ID: "obj-1", OrgID: "org-1", Name: "Site A", IsActive: true}}

	h.tap("100", "report_new")
	h.tap("100", "rc_pick:0")
	h.text("100", "work")
	h.text("100", "materials")
	h.text("100", chat.PhotoText("file-1"))
	h.text("100", chat.PhotoText("file-2"))
	h.tap("100", "rc_photos_done")
	h.tap("100", "rc_publish")

	require.Len(t, h.pub.published, 1)
	require.Equal(t, []string{"file-1", "file-2"}, h.pub.published[0].PhotoIDs)
}

func TestCreateReportFlow_ValidationRepromptsWithoutAdvancing(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.objects = []org.Object{{ID: "obj-1", OrgID: "org-1", Name: "Site A", IsActive: true}}

	h.tap("100", "report_new")
	h.tap("100", "rc_pick:0")
	h.text("100", "   ")
	require.Contains(t, h.client.lastText(t), "⚠")

	h.text("100", "real work")
	h.text("100", "materials")
	h.tap("100", "rc_photos_done")
	h.tap("100", "rc_publish")
	require.Len(t, h.pub.published, 1)
	require.Equal(t, "real work", h.pub.published[0].WorkDone)
}

func TestRegistrationFlow(t *testing.T) {
	h := newHarness(t)
	h.catalog.orgs = []org.Organization{{ID: "org-1", Name: "BuildCo"}}
	h.catalog.positions = []org.Position{{ID: "pos-1", Name: "Foreman"}, {ID: "pos-2", Name: "Electrician"}}

	h.text("200", "/start")
	h.text("200", "code-staff")
	h.text("200", "Boris Petrov")
	h.tap("200", "reg_pos:1")
	h.tap("200", "reg_org:0")

	u, err := h.users.GetByTGUserID(context.Background(), "200")
	require.NoError(t, err)
	require.Equal(t, "Boris Petrov", u.Name)
	require.Equal(t, users.RoleStaff, u.Role)
	require.Equal(t, "Electrician", u.Position)
	require.Equal(t, "org-1", u.OrgID)
	require.Len(t, h.invites.redeemed, 1)
	require.Contains(t, h.client.lastText(t), "Welcome, Boris Petrov")
}

func TestRegistrationFlow_BadCodeReprompts(t *testing.T) {
	h := newHarness(t)

	h.text("200", "/start")
	h.text("200", "garbage")
	require.Contains(t, h.client.lastText(t), "not valid")

	// Still on the code step.
	h.text("200", "code-manager")
	require.Contains(t, h.client.lastText(t), "name")
}

func TestStartWizardClearsPreviousForm(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.objects = []org.Object{{ID: "obj-1", OrgID: "org-1", Name: "Site A", IsActive: true}}

	// Begin a report, then abandon it for the profile name wizard.
	h.tap("100", "report_new")
	h.tap("100", "rc_pick:0")
	h.text("100", "half-finished work")
	h.tap("100", "profile_edit_name")

	sess := h.store.Get("100")
	require.Empty(t, sess.Get(fWorkDone))
	require.Equal(t, "user-staff", sess.Get(fUserID))
}

func TestEditReportFlow_RepublishesAgainstPrevMap(t *testing.T) {
	h := newHarness(t, staffUser)
	h.catalog.objects = []org.Object{
		{ID: "obj-1", OrgID: "org-1", Name: "Site A", IsActive: true},
		{ID: "obj-2", OrgID: "org-1", Name: "Site B", IsActive: true},
	}
	rec, err := h.reports.Create(context.Background(), report.CreateParams{
		AuthorID: "user-staff", ObjectName: "Site A", WorkDone: "old work", ReportDate: time.Now(),
	})
	require.NoError(t, err)
	prev := publish.ChannelMessageMap{"@site_a": {41, 42}}
	require.NoError(t, h.reports.ReplaceChannelMessages(context.Background(), rec.ID, prev))
	h.pub.result = publish.Result{Map: publish.ChannelMessageMap{"@site_b": {77}}, Sent: 1}

	h.tap("100", "report_edit:"+rec.ID)
	h.tap("100", "re_field:object")
	h.tap("100", "re_pick:1")

	require.Len(t, h.pub.updated, 1)
	require.Equal(t, "Site B", h.pub.updated[0].ObjectName)
	require.Equal(t, prev, h.pub.prevMaps[0])

	stored, err := h.reports.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Site B", stored.ObjectName)
	require.Equal(t, publish.ChannelMessageMap{"@site_b": {77}}, stored.ChannelMessages)
}

func TestDeleteReportFlow(t *testing.T) {
	h := newHarness(t, staffUser)
	rec, err := h.reports.Create(context.Background(), report.CreateParams{
		AuthorID: "user-staff", ObjectName: "Site A", ReportDate: time.Now(),
	})
	require.NoError(t, err)
	m := publish.ChannelMessageMap{"@site_a": {5}}
	require.NoError(t, h.reports.ReplaceChannelMessages(context.Background(), rec.ID, m))

	h.tap("100", "report_delete:"+rec.ID)
	require.Contains(t, h.client.lastText(t), "Delete the report")
	h.tap("100", "report_delete_yes:"+rec.ID)

	require.Equal(t, []publish.ChannelMessageMap{m}, h.pub.deleted)
	require.Empty(t, h.reports.byID)
}

func TestPrivilegedActionDeniedForStaff(t *testing.T) {
	h := newHarness(t, staffUser)

	h.tap("100", "admin")
	require.Contains(t, h.client.lastText(t), "not permitted")
}

func TestEditReportFlow_PhotosDoneWithoutPhotosKeepsExisting(t *testing.T) {
	h := newHarness(t, staffUser)
	rec, err := h.reports.Create(context.Background(), report.CreateParams{
		AuthorID: "user-staff", ObjectName: "Site A",
		PhotoIDs: []string{"keep-1", "keep-2"}, ReportDate: time.Now(),
	})
	require.NoError(t, err)

	h.tap("100", "report_edit:"+rec.ID)
	h.tap("100", "re_field:photos")
	h.tap("100", "re_photos_done")

	stored, err := h.reports.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"keep-1", "keep-2"}, stored.PhotoIDs,
		"Done with no photos sent keeps the old set")
	require.Empty(t, h.pub.updated, "no republish when nothing changed")
	require.Contains(t, h.client.lastText(t), "unchanged")
}

func TestAdminOrgDeleteWithUsersMigratesFirst(t *testing.T) {
	admin := staffUser
	admin.ID = "user-admin"
	admin.TGUserID = "900"
	admin.TGChatID = "900"
	admin.Role = users.RoleAdmin
	h := newHarness(t, admin)
	h.catalog.orgs = []org.Organization{
		{ID: "org-1", Name: "BuildCo"},
		{ID: "org-2", Name: "RoadCo"},
	}
	h.catalog.orgUsers = map[string]int{"org-1": 3}

	h.tap("900", "admin_org_delete:org-1")
	require.Contains(t, h.client.lastText(t), "still has users")
	require.Empty(t, h.catalog.ops, "nothing moves or goes until a target is picked")

	// The picker excludes the doomed organization, so index 0 is RoadCo.
	h.tap("900", "om_pick:0")
	require.Equal(t, []string{"migrate:org-1>org-2", "delete:org-1"}, h.catalog.ops,
		"users move to the target before the organization is deleted")
	require.Contains(t, h.client.lastText(t), "Moved 3 user(s)")
	require.Len(t, h.catalog.orgs, 1)
	require.Equal(t, "org-2", h.catalog.orgs[0].ID)
}

func TestAdminOrgDeleteWithUsersNoTarget(t *testing.T) {
	admin := staffUser
	admin.ID = "user-admin"
	admin.TGUserID = "900"
	admin.TGChatID = "900"
	admin.Role = users.RoleAdmin
	h := newHarness(t, admin)
	h.catalog.orgs = []org.Organization{{ID: "org-1", Name: "BuildCo"}}
	h.catalog.orgUsers = map[string]int{"org-1": 2}

	h.tap("900", "admin_org_delete:org-1")
	require.Contains(t, h.client.lastText(t), "no other organization")
	require.Empty(t, h.catalog.ops)
	require.Len(t, h.catalog.orgs, 1, "the organization survives")
}

func TestAdminInviteIssue(t *testing.T) {
	admin := staffUser
	admin.ID = "user-admin"
	admin.TGUserID = "900"
	admin.TGChatID = "900"
	admin.Role = users.RoleAdmin
	h := newHarness(t, admin)

	h.tap("900", "admin_invite:manager")
	require.Contains(t, h.client.lastText(t), "code-manager")
	require.Equal(t, []string{"code-manager"}, h.invites.issued)
}
