package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/imagedrop/storefront/internal/domain"
)

// OrderFinder locates an order by its payment address and amount, the
// reconciliation key webhooks carry.
type OrderFinder interface {
	FindByAddress(ctx context.Context, address string, amount, tolerance float64) (domain.Order, error)
}

type monitorRequest struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	OrderID string  `json:"orderId"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleBlockchainMonitor registers an address for watching. It is a
// best-effort accelerator: the poller stays the source of truth, so
// this only makes sure one is running for the order.
func HandleBlockchainMonitor(orders OrderGetter, poller PollerControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req monitorRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Address == "" || req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "address and orderId are required")
			return
		}

		order, err := orders.Get(r.Context(), req.OrderID)
		if err != nil {
			writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
			return
		}
		if order.Status.Terminal() {
			writeJSON(w, http.StatusOK, statusResponse{
				Success: false,
				Message: "Order already resolved",
			})
			return
		}

		poller.Start(order)
		writeJSON(w, http.StatusOK, statusResponse{
			Success: true,
			Message: "Blockchain monitoring started",
		})
	}
}

type webhookRequest struct {
	Address       string  `json:"address"`
	Amount        float64 `json:"amount"`
	Confirmations int     `json:"confirmations"`
	TxID          string  `json:"txid"`
	Status        string  `json:"status"`
}

// HandleBlockchainWebhook is the asynchronous confirmation push. It
// reconciles against the same order state as the poll path and is safe
// to receive redundantly or out of order.
func HandleBlockchainWebhook(orders OrderFinder, deliverer Deliverer, poller PollerControl, cfg VerifyConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req webhookRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if req.Status != "confirmed" || req.Confirmations < cfg.MinConfirmations {
			writeJSON(w, http.StatusOK, statusResponse{
				Success: false,
				Message: "Transaction not found or not confirmed",
			})
			return
		}

		order, err := orders.FindByAddress(r.Context(), req.Address, req.Amount, cfg.Tolerance)
		if err != nil {
			writeJSON(w, http.StatusOK, statusResponse{
				Success: false,
				Message: "Transaction not found or not confirmed",
			})
			return
		}

		if _, err := deliverer.Deliver(r.Context(), order.ID, req.TxID); err != nil {
			switch err {
			case domain.ErrInsufficientInventory:
				writeJSON(w, http.StatusOK, statusResponse{
					Success: false,
					Message: "Payment verified but no items are in stock",
				})
			case domain.ErrAlreadyDelivered:
				// Redundant webhook racing the poller; the first
				// delivery wins and this one reports success.
				writeJSON(w, http.StatusOK, statusResponse{
					Success: true,
					Message: "Payment verified and images delivered",
				})
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "webhook processing failed")
			}
			return
		}

		poller.Stop(order.ID)
		writeJSON(w, http.StatusOK, statusResponse{
			Success: true,
			Message: "Payment verified and images delivered",
		})
	}
}
