package invite

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signCode(t *testing.T, secret, role string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "test-invite",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	code, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign code: %v", err)
	}
	return code
}

func TestVerify(t *testing.T) {
	secret := "test-secret-key-for-invites"
	svc := &Service{secret: secret, logger: slog.Default()}

	code := signCode(t, secret, "manager", time.Now().Add(time.Hour))
	role, err := svc.Verify(code)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if role != "manager" {
		t.Errorf("expected role=manager, got=%s", role)
	}
}

func TestVerify_Expired(t *testing.T) {
	secret := "test-secret-key-for-invites"
	svc := &Service{secret: secret, logger: slog.Default()}

	code := signCode(t, secret, "staff", time.Now().Add(-time.Minute))
	if _, err := svc.Verify(code); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got: %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := &Service{secret: "right-secret", logger: slog.Default()}

	code := signCode(t, "wrong-secret", "admin", time.Now().Add(time.Hour))
	if _, err := svc.Verify(code); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid, got: %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := &Service{secret: "secret", logger: slog.Default()}
	for _, code := range []string{"", "   ", "not-a-token"} {
		if _, err := svc.Verify(code); err != ErrInvalid {
			t.Fatalf("code %q: expected ErrInvalid, got: %v", code, err)
		}
	}
}

func TestIssue_EmptySecret(t *testing.T) {
	svc := &Service{secret: "", logger: slog.Default()}
	if _, err := svc.Issue(context.Background(), "staff"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
