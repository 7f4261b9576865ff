package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imagedrop/storefront/internal/app"
	"github.com/imagedrop/storefront/internal/domain"
)

type fakeAdminAuth struct {
	session   app.Session
	loginErr  error
	authErr   error
	loggedOut []string
}

func (f *fakeAdminAuth) Login(_ context.Context, _ string) (app.Session, error) {
	if f.loginErr != nil {
		return app.Session{}, f.loginErr
	}
	return f.session, nil
}

func (f *fakeAdminAuth) Authenticate(_ context.Context, _ string) error {
	return f.authErr
}

func (f *fakeAdminAuth) Logout(_ context.Context, token string) {
	f.loggedOut = append(f.loggedOut, token)
}

type fakeLedgerReader struct {
	entries []domain.LedgerEntry
	err     error
}

func (f *fakeLedgerReader) Ledger(_ context.Context) ([]domain.LedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func TestHandleAdminLogin(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("issues a session token", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAdminAuth{session: app.Session{Token: "tok", ExpiresAt: now.Add(30 * time.Minute)}}
		handler := HandleAdminLogin(svc)

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"hunter2"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"token":"tok"`) {
			t.Fatalf("expected token, got %s", rec.Body.String())
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		handler := HandleAdminLogin(&fakeAdminAuth{loginErr: domain.ErrInvalidCredentials})

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"wrong"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("locked out", func(t *testing.T) {
		t.Parallel()
		handler := HandleAdminLogin(&fakeAdminAuth{loginErr: domain.ErrLoginLocked})

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"hunter2"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		t.Parallel()
		handler := HandleAdminLogin(&fakeAdminAuth{})

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleAdminLogout(t *testing.T) {
	t.Parallel()

	svc := &fakeAdminAuth{}
	handler := HandleAdminLogout(svc)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(svc.loggedOut) != 1 || svc.loggedOut[0] != "tok" {
		t.Fatalf("expected tok logged out, got %v", svc.loggedOut)
	}

	// Without a token the logout is still a 204.
	req = httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 without token, got %d", rec.Code)
	}
}

func TestHandleAdminLedger(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeLedgerReader{entries: []domain.LedgerEntry{{
		OrderID:         "Kentron-0.5G-777",
		Timestamp:       now,
		LocationID:      "Kentron",
		ProductTier:     "0.5G",
		Amount:          26,
		Address:         "Xaddr",
		Status:          domain.OrderStatusVerified,
		ImagesDelivered: 1,
	}}}
	handler := HandleAdminLedger(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/ledger", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"orderId":"Kentron-0.5G-777"`) || !strings.Contains(body, `"status":"verified"`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid session passes through", func(t *testing.T) {
		t.Parallel()
		handler := RequireAdmin(&fakeAdminAuth{}, next)

		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		handler := RequireAdmin(&fakeAdminAuth{}, next)

		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid session", func(t *testing.T) {
		t.Parallel()
		handler := RequireAdmin(&fakeAdminAuth{authErr: domain.ErrSessionInvalid}, next)

		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		t.Parallel()
		handler := RequireAdmin(&fakeAdminAuth{}, next)

		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		req.Header.Set("Authorization", "tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
