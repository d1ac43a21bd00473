package users

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
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already registered")
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
		logger: log.With(slog.String("service", "users")),
	}
}

const userColumns = `
	u.id, u.tg_user_id, u.tg_chat_id, u.name, u.role, u.position,
	u.org_id, COALESCE(o.name, ''), u.is_active, u.created_at, u.updated_at
`

const userFrom = ` FROM users u LEFT JOIN organizations o ON o.id = u.org_id `

func (s *Service) scanUser(row pgx.Row) (User, error) {
	var u User
	var id, orgID pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&id, &u.TGUserID, &u.TGChatID, &u.Name, &u.Role, &u.Position,
		&orgID, &u.OrgName, &u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return User{}, err
	}
	u.ID = db.UUIDToString(id)
	u.OrgID = db.UUIDToString(orgID)
	u.CreatedAt = db.TimeFromPg(createdAt)
	u.UpdatedAt = db.TimeFromPg(updatedAt)
	return u, nil
}

// GetByTGUserID looks a user up by the platform user id.
func (s *Service) GetByTGUserID(ctx context.Context, tgUserID string) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("users pool not configured")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+userFrom+` WHERE u.tg_user_id = $1`, strings.TrimSpace(tgUserID))
	u, err := s.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Get looks a user up by internal id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("users pool not configured")
	}
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = $1`, pgID)
	u, err := s.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Create registers a new user.
func (s *Service) Create(ctx context.Context, params CreateParams) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("users pool not configured")
	}
	role := params.Role
	if role == "" {
		role = RoleStaff
	}
	orgID := pgtype.UUID{}
	if params.OrgID != "" {
		parsed, err := db.ParseUUID(params.OrgID)
		if err != nil {
			return User{}, err
		}
		orgID = parsed
	}
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (tg_user_id, tg_chat_id, name, role, position, org_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		strings.TrimSpace(params.TGUserID), strings.TrimSpace(params.TGChatID),
		strings.TrimSpace(params.Name), role, strings.TrimSpace(params.Position), orgID,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrExists
		}
		return User{}, err
	}
	s.logger.Info("user registered", slog.String("tg_user_id", params.TGUserID), slog.String("role", role))
	return s.Get(ctx, db.UUIDToString(id))
}

// UpdateName renames a user.
func (s *Service) UpdateName(ctx context.Context, id, name string) error {
	return s.exec(ctx, `UPDATE users SET name = $2, updated_at = now() WHERE id = $1`, id, strings.TrimSpace(name))
}

// UpdatePosition changes a user's position.
func (s *Service) UpdatePosition(ctx context.Context, id, position string) error {
	return s.exec(ctx, `UPDATE users SET position = $2, updated_at = now() WHERE id = $1`, id, strings.TrimSpace(position))
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, id, role string) error {
	switch role {
	case RoleStaff, RoleManager, RoleAdmin:
	default:
		return fmt.Errorf("unknown role: %s", role)
	}
	return s.exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
}

// SetActive toggles a user's active flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
}

func (s *Service) exec(ctx context.Context, query, id string, arg any) error {
	if s.pool == nil {
		return fmt.Errorf("users pool not configured")
	}
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

// List returns all users, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.list(ctx, `SELECT `+userColumns+userFrom+` ORDER BY u.created_at DESC`)
}

// ListByOrg returns users of one organization.
func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]User, error) {
	pgID, err := db.ParseUUID(orgID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, `SELECT `+userColumns+userFrom+` WHERE u.org_id = $1 ORDER BY u.name`, pgID)
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]User, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("users pool not configured")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// IsPrivileged implements the router's role check: manager and admin
// roles may run privileged handlers. Unknown users are never privileged.
func (s *Service) IsPrivileged(ctx context.Context, tgUserID string) (bool, error) {
	u, err := s.GetByTGUserID(ctx, tgUserID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive && u.Privileged(), nil
}
