package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/imagedrop/storefront/internal/app"
	"github.com/imagedrop/storefront/internal/domain"
)

// AdminAuth is the session surface of the admin panel.
type AdminAuth interface {
	Login(ctx context.Context, password string) (app.Session, error)
	Authenticate(ctx context.Context, token string) error
	Logout(ctx context.Context, token string)
}

// LedgerReader lists the audit trail for the admin transaction table.
type LedgerReader interface {
	Ledger(ctx context.Context) ([]domain.LedgerEntry, error)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleAdminLogin issues an admin session for a valid password.
func HandleAdminLogin(svc AdminAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req loginRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil || req.Password == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "password is required")
			return
		}

		session, err := svc.Login(r.Context(), req.Password)
		if err != nil {
			switch err {
			case domain.ErrLoginLocked:
				writeError(w, http.StatusTooManyRequests, codeLoginLocked, err.Error())
			case domain.ErrInvalidCredentials:
				writeError(w, http.StatusUnauthorized, codeInvalidCredentials, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
		})
	}
}

// HandleAdminLogout discards the caller's session.
func HandleAdminLogout(svc AdminAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if token := bearerToken(r); token != "" {
			svc.Logout(r.Context(), token)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type ledgerEntryPayload struct {
	OrderID         string    `json:"orderId"`
	Timestamp       time.Time `json:"timestamp"`
	LocationID      string    `json:"locationId"`
	ProductTier     string    `json:"productTier"`
	Amount          float64   `json:"amount"`
	Address         string    `json:"address"`
	Status          string    `json:"status"`
	ImagesDelivered int       `json:"imagesDelivered"`
}

// HandleAdminLedger lists audit entries, newest first.
func HandleAdminLedger(svc LedgerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		entries, err := svc.Ledger(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]ledgerEntryPayload, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, ledgerEntryPayload{
				OrderID:         e.OrderID,
				Timestamp:       e.Timestamp,
				LocationID:      e.LocationID,
				ProductTier:     e.ProductTier,
				Amount:          e.Amount,
				Address:         e.Address,
				Status:          string(e.Status),
				ImagesDelivered: e.ImagesDelivered,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RequireAdmin rejects requests without a valid admin session token.
func RequireAdmin(svc AdminAuth, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeSessionInvalid, "missing admin session")
			return
		}
		if err := svc.Authenticate(r.Context(), token); err != nil {
			writeError(w, http.StatusUnauthorized, codeSessionInvalid, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
