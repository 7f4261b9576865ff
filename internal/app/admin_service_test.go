package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
)

func testPasswordHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func TestAdminService_Login(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("issues a session on valid password", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clock.NewFixed(now), zerolog.Nop())

		session, err := svc.Login(ctx, "hunter2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.Token == "" {
			t.Fatalf("expected token")
		}
		if !session.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
			t.Fatalf("expected 30m session, got %v", session.ExpiresAt)
		}
		if err := svc.Authenticate(ctx, session.Token); err != nil {
			t.Fatalf("expected valid session, got %v", err)
		}
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clock.NewFixed(now), zerolog.Nop())

		if _, err := svc.Login(ctx, "wrong"); err != domain.ErrInvalidCredentials {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects everything when no hash is configured", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(NewBcryptChecker(""), clock.NewFixed(now), zerolog.Nop())

		if _, err := svc.Login(ctx, "anything"); err != domain.ErrInvalidCredentials {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("locks after repeated failures and recovers", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFixed(now)
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clk, zerolog.Nop(),
			WithLoginPolicy(3, 5*time.Minute))

		for i := 0; i < 3; i++ {
			if _, err := svc.Login(ctx, "wrong"); err != domain.ErrInvalidCredentials {
				t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
			}
		}

		// Even the right password is refused during the lockout.
		if _, err := svc.Login(ctx, "hunter2"); err != domain.ErrLoginLocked {
			t.Fatalf("expected ErrLoginLocked, got %v", err)
		}

		clk.Advance(5 * time.Minute)
		if _, err := svc.Login(ctx, "hunter2"); err != nil {
			t.Fatalf("expected login after lockout window, got %v", err)
		}
	})
}

func TestAdminService_Authenticate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("expired sessions are pruned", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFixed(now)
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clk, zerolog.Nop(),
			WithSessionTTL(10*time.Minute))

		session, err := svc.Login(ctx, "hunter2")
		if err != nil {
			t.Fatalf("login: %v", err)
		}

		clk.Advance(10 * time.Minute)
		if err := svc.Authenticate(ctx, session.Token); err != domain.ErrSessionInvalid {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clock.NewFixed(now), zerolog.Nop())

		if err := svc.Authenticate(ctx, "nope"); err != domain.ErrSessionInvalid {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})

	t.Run("logout discards the session", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(NewBcryptChecker(testPasswordHash(t, "hunter2")), clock.NewFixed(now), zerolog.Nop())

		session, err := svc.Login(ctx, "hunter2")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		svc.Logout(ctx, session.Token)
		if err := svc.Authenticate(ctx, session.Token); err != domain.ErrSessionInvalid {
			t.Fatalf("expected ErrSessionInvalid after logout, got %v", err)
		}

		// Logging out twice is fine.
		svc.Logout(ctx, session.Token)
	})
}
