// Package org manages organizations, work objects, and positions, and
// supplies channel configuration to the publish target resolver.
package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/reportbot/internal/db"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("name already taken")
	// ErrHasUsers blocks deleting an organization that still has users
	// assigned: affected users must be migrated first, otherwise later
	// publishes would hit an unresolvable target.
	ErrHasUsers = errors.New("organization still has users assigned")
)

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "org")),
	}
}

// --- organizations ---

func (s *Service) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("organization name is required")
	}
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Organization{}, ErrExists
		}
		return Organization{}, err
	}
	return s.GetOrganization(ctx, db.UUIDToString(id))
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Organization{}, err
	}
	return s.scanOrg(s.pool.QueryRow(ctx,
		`SELECT id, name, broadcast_channel, created_at, updated_at FROM organizations WHERE id = $1`, pgID))
}

func (s *Service) scanOrg(row pgx.Row) (Organization, error) {
	var o Organization
	var id pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&id, &o.Name, &o.BroadcastChannel, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	if err != nil {
		return Organization{}, err
	}
	o.ID = db.UUIDToString(id)
	o.CreatedAt = db.TimeFromPg(createdAt)
	o.UpdatedAt = db.TimeFromPg(updatedAt)
	return o, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, broadcast_channel, created_at, updated_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Organization
	for rows.Next() {
		o, err := s.scanOrg(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (s *Service) RenameOrganization(ctx context.Context, id, name string) error {
	return s.execOne(ctx, `UPDATE organizations SET name = $2, updated_at = now() WHERE id = $1`, id, strings.TrimSpace(name))
}

func (s *Service) SetBroadcastChannel(ctx context.Context, id, channel string) error {
	return s.execOne(ctx, `UPDATE organizations SET broadcast_channel = $2, updated_at = now() WHERE id = $1`, id, strings.TrimSpace(channel))
}

// DeleteOrganization removes an organization. It refuses while users
// are still assigned; callers migrate them first with MigrateUsers.
func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE org_id = $1`, pgID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrHasUsers
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("organization deleted", slog.String("org_id", id))
	return nil
}

// MigrateUsers reassigns every user of fromID to toID.
func (s *Service) MigrateUsers(ctx context.Context, fromID, toID string) (int, error) {
	pgFrom, err := db.ParseUUID(fromID)
	if err != nil {
		return 0, err
	}
	pgTo, err := db.ParseUUID(toID)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET org_id = $2, updated_at = now() WHERE org_id = $1`, pgFrom, pgTo)
	if err != nil {
		return 0, err
	}
	moved := int(tag.RowsAffected())
	s.logger.Info("users migrated", slog.String("from", fromID), slog.String("to", toID), slog.Int("count", moved))
	return moved, nil
}

// --- objects ---

func (s *Service) CreateObject(ctx context.Context, orgID, name, channel string) (Object, error) {
	pgOrgID, err := db.ParseUUID(orgID)
	if err != nil {
		return Object{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Object{}, fmt.Errorf("object name is required")
	}
	var id pgtype.UUID
	err = s.pool.QueryRow(ctx,
		`INSERT INTO objects (org_id, name, channel) VALUES ($1, $2, $3) RETURNING id`,
		pgOrgID, name, strings.TrimSpace(channel)).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Object{}, ErrExists
		}
		return Object{}, err
	}
	return s.GetObject(ctx, db.UUIDToString(id))
}

func (s *Service) GetObject(ctx context.Context, id string) (Object, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Object{}, err
	}
	return s.scanObject(s.pool.QueryRow(ctx,
		`SELECT id, org_id, name, channel, is_active, created_at, updated_at FROM objects WHERE id = $1`, pgID))
}

func (s *Service) scanObject(row pgx.Row) (Object, error) {
	var o Object
	var id, orgID pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&id, &orgID, &o.Name, &o.Channel, &o.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, err
	}
	o.ID = db.UUIDToString(id)
	o.OrgID = db.UUIDToString(orgID)
	o.CreatedAt = db.TimeFromPg(createdAt)
	o.UpdatedAt = db.TimeFromPg(updatedAt)
	return o, nil
}

// ListObjects returns the active objects of one organization, ordered by name.
func (s *Service) ListObjects(ctx context.Context, orgID string) ([]Object, error) {
	pgID, err := db.ParseUUID(orgID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, name, channel, is_active, created_at, updated_at
		 FROM objects WHERE org_id = $1 AND is_active ORDER BY name`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Object
	for rows.Next() {
		o, err := s.scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// ListAllObjects returns every object of one organization, inactive
// ones included, for the admin screens.
func (s *Service) ListAllObjects(ctx context.Context, orgID string) ([]Object, error) {
	pgID, err := db.ParseUUID(orgID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, name, channel, is_active, created_at, updated_at
		 FROM objects WHERE org_id = $1 ORDER BY name`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Object
	for rows.Next() {
		o, err := s.scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (s *Service) SetObjectChannel(ctx context.Context, id, channel string) error {
	return s.execOne(ctx, `UPDATE objects SET channel = $2, updated_at = now() WHERE id = $1`, id, strings.TrimSpace(channel))
}

func (s *Service) SetObjectActive(ctx context.Context, id string, active bool) error {
	return s.execOne(ctx, `UPDATE objects SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
}

// --- positions ---

func (s *Service) CreatePosition(ctx context.Context, name string) (Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Position{}, fmt.Errorf("position name is required")
	}
	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx,
		`INSERT INTO positions (name) VALUES ($1) RETURNING id, created_at`, name).Scan(&id, &createdAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Position{}, ErrExists
		}
		return Position{}, err
	}
	return Position{ID: db.UUIDToString(id), Name: name, CreatedAt: db.TimeFromPg(createdAt)}, nil
}

func (s *Service) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM positions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Position
	for rows.Next() {
		var p Position
		var id pgtype.UUID
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&id, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.ID = db.UUIDToString(id)
		p.CreatedAt = db.TimeFromPg(createdAt)
		items = append(items, p)
	}
	return items, rows.Err()
}

func (s *Service) DeletePosition(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) execOne(ctx context.Context, query, id string, arg any) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, pgID, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- publish target source ---

// ObjectChannel returns the primary channel for the named object, ""
// when unknown or unset.
func (s *Service) ObjectChannel(ctx context.Context, objectName string) (string, error) {
	var channel string
	err := s.pool.QueryRow(ctx,
		`SELECT channel FROM objects WHERE name = $1 AND is_active LIMIT 1`,
		strings.TrimSpace(objectName)).Scan(&channel)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return channel, nil
}

// OrgBroadcastChannels returns the organization's distribution channels.
func (s *Service) OrgBroadcastChannels(ctx context.Context, orgName string) ([]string, error) {
	var channel string
	err := s.pool.QueryRow(ctx,
		`SELECT broadcast_channel FROM organizations WHERE name = $1`,
		strings.TrimSpace(orgName)).Scan(&channel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if channel == "" {
		return nil, nil
	}
	return []string{channel}, nil
}
