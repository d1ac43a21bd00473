// Package invite issues and redeems single-use registration codes.
// Codes are signed JWTs carrying the granted role; only a hash of the
// code is stored, so the database never holds a redeemable secret.
package invite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/reportbot/internal/db"
)

var (
	ErrInvalid = errors.New("invite code is invalid")
	ErrExpired = errors.New("invite code has expired")
	ErrUsed    = errors.New("invite code was already used")
)

type Service struct {
	pool   *pgxpool.Pool
	secret string
	ttl    time.Duration
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool, secret string, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{
		pool:   pool,
		secret: secret,
		ttl:    ttl,
		logger: log.With(slog.String("service", "invite")),
	}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issue creates a signed invite code granting the given role.
func (s *Service) Issue(ctx context.Context, role string) (string, error) {
	if strings.TrimSpace(s.secret) == "" {
		return "", fmt.Errorf("invite secret not configured")
	}
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	code, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("sign invite: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO invites (code_hash, role, expires_at)
		VALUES ($1, $2, $3)`,
		hashCode(code), role, pgtype.Timestamptz{Time: expiresAt, Valid: true})
	if err != nil {
		return "", err
	}
	s.logger.Info("invite issued", slog.String("role", role), slog.Time("expires_at", expiresAt))
	return code, nil
}

// Verify checks a code's signature and expiry and returns the role it
// grants, without consuming it.
func (s *Service) Verify(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalid
	}
	var c claims
	_, err := jwt.ParseWithClaims(code, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrExpired
	}
	if err != nil {
		return "", ErrInvalid
	}
	return c.Role, nil
}

// Redeem consumes a code on behalf of a registering user and returns
// the granted role. A code redeems exactly once; the guarded UPDATE
// makes concurrent redeems lose cleanly.
func (s *Service) Redeem(ctx context.Context, code, userID string) (string, error) {
	code = strings.TrimSpace(code)
	role, err := s.Verify(code)
	if err != nil {
		return "", err
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return "", err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE invites SET used_by = $2, used_at = now()
		WHERE code_hash = $1 AND used_at IS NULL AND expires_at > now()`,
		hashCode(code), pgUserID)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM invites WHERE code_hash = $1)`,
			hashCode(code)).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return "", ErrInvalid
		}
		return "", ErrUsed
	}
	s.logger.Info("invite redeemed", slog.String("role", role), slog.String("user_id", userID))
	return role, nil
}
