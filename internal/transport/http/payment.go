package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/imagedrop/storefront/internal/app"
	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/payment"
)

// OrderCreator is the minimal interface needed to open an order session.
type OrderCreator interface {
	Create(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// OrderGetter looks up an active order session.
type OrderGetter interface {
	Get(ctx context.Context, orderID string) (domain.Order, error)
}

// PollerControl is the poller surface the transport needs.
type PollerControl interface {
	Start(order domain.Order) *payment.Handle
	Stop(orderID string)
	Active(orderID string) bool
}

// Deliverer hands images to a confirmed order.
type Deliverer interface {
	Deliver(ctx context.Context, orderID, txid string) ([]domain.Image, error)
}

type paymentAddressRequest struct {
	Amount      float64 `json:"amount"`
	OrderID     string  `json:"orderId"`
	LocationID  string  `json:"location_id,omitempty"`
	ProductTier string  `json:"product_tier,omitempty"`
}

type paymentAddressResponse struct {
	Address   string    `json:"address"`
	Amount    float64   `json:"amount"`
	QRCode    string    `json:"qrCode"`
	OrderID   string    `json:"orderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandlePaymentAddress allocates a payment target for an order and
// starts the confirmation poller.
func HandlePaymentAddress(orders OrderCreator, poller PollerControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentAddressRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Amount <= 0 || req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "amount and orderId are required")
			return
		}

		locationID, tier := req.LocationID, req.ProductTier
		if locationID == "" || tier == "" {
			locationID, tier = parseBucketFromOrderID(req.OrderID)
		}

		order, err := orders.Create(r.Context(), app.CreateOrderInput{
			OrderID:     req.OrderID,
			LocationID:  locationID,
			ProductTier: tier,
			Amount:      req.Amount,
		})
		if err != nil {
			switch err {
			case domain.ErrLocationNotFound:
				writeError(w, http.StatusBadRequest, codeLocationNotFound, err.Error())
			case domain.ErrProductNotFound:
				writeError(w, http.StatusBadRequest, codeProductNotFound, err.Error())
			case domain.ErrInvalidAmount:
				writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
			case domain.ErrOrderExists:
				writeError(w, http.StatusConflict, codeOrderExists, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		poller.Start(order)

		qr, err := payment.QRCodeDataURI(order.PaymentAddress, order.ExpectedAmount)
		if err != nil {
			// The address is still usable without a rendered code.
			qr = ""
		}

		writeJSON(w, http.StatusCreated, paymentAddressResponse{
			Address:   order.PaymentAddress,
			Amount:    order.ExpectedAmount,
			QRCode:    qr,
			OrderID:   order.ID,
			ExpiresAt: order.ExpiresAt,
		})
	}
}

// parseBucketFromOrderID splits the storefront's "Location-Tier-suffix"
// order id shape.
func parseBucketFromOrderID(orderID string) (locationID, tier string) {
	parts := strings.SplitN(orderID, "-", 3)
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

type paymentVerifyRequest struct {
	Address        string  `json:"address"`
	ExpectedAmount float64 `json:"expectedAmount"`
	OrderID        string  `json:"orderId"`
}

type transactionPayload struct {
	TxID          string  `json:"txid"`
	Amount        float64 `json:"amount"`
	Confirmations int     `json:"confirmations"`
	Time          int64   `json:"time"`
}

type paymentVerifyResponse struct {
	Success     bool                `json:"success"`
	Transaction *transactionPayload `json:"transaction,omitempty"`
	Images      []string            `json:"images,omitempty"`
	Message     string              `json:"message"`
}

// VerifyConfig carries the matching rules the verify endpoint shares
// with the poller.
type VerifyConfig struct {
	Tolerance        float64
	MinConfirmations int
}

// HandlePaymentVerify is the pull-based confirmation check: one
// balance lookup, and delivery when a matching transaction is found.
func HandlePaymentVerify(orders OrderGetter, checker payment.BalanceChecker, deliverer Deliverer, poller PollerControl, cfg VerifyConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentVerifyRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Address == "" || req.ExpectedAmount <= 0 || req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "address, expectedAmount and orderId are required")
			return
		}

		order, err := orders.Get(r.Context(), req.OrderID)
		if err != nil {
			writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
			return
		}

		switch order.Status {
		case domain.OrderStatusVerified:
			writeJSON(w, http.StatusOK, paymentVerifyResponse{
				Success: true,
				Images:  imageURLs(order.DeliveredImageIDs),
				Message: "Payment confirmed and images delivered",
			})
			return
		case domain.OrderStatusExpired:
			writeJSON(w, http.StatusOK, paymentVerifyResponse{
				Success: false,
				Message: "Order expired, please start over",
			})
			return
		case domain.OrderStatusFailed:
			writeJSON(w, http.StatusOK, paymentVerifyResponse{
				Success: false,
				Message: "Order failed, please start over",
			})
			return
		}

		txs, err := checker.Check(r.Context(), req.Address)
		if err != nil {
			writeJSON(w, http.StatusOK, paymentVerifyResponse{
				Success: false,
				Message: "Payment verification temporarily unavailable",
			})
			return
		}

		tx, ok := payment.MatchTransaction(txs, req.ExpectedAmount, cfg.Tolerance, cfg.MinConfirmations)
		if !ok {
			writeJSON(w, http.StatusOK, paymentVerifyResponse{
				Success: false,
				Message: "Payment not found or insufficient confirmations",
			})
			return
		}

		images, err := deliverer.Deliver(r.Context(), order.ID, tx.TxID)
		if err != nil {
			if err == domain.ErrInsufficientInventory {
				writeJSON(w, http.StatusOK, paymentVerifyResponse{
					Success: false,
					Transaction: &transactionPayload{
						TxID:          tx.TxID,
						Amount:        tx.Amount,
						Confirmations: tx.Confirmations,
						Time:          tx.Time.Unix(),
					},
					Message: "Payment confirmed but no items are in stock, contact support",
				})
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		poller.Stop(order.ID)

		ids := make([]string, 0, len(images))
		for _, img := range images {
			ids = append(ids, img.ID)
		}
		writeJSON(w, http.StatusOK, paymentVerifyResponse{
			Success: true,
			Transaction: &transactionPayload{
				TxID:          tx.TxID,
				Amount:        tx.Amount,
				Confirmations: tx.Confirmations,
				Time:          tx.Time.Unix(),
			},
			Images:  imageURLs(ids),
			Message: "Payment confirmed and images delivered",
		})
	}
}

func imageURLs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, "/images/"+id)
	}
	return out
}
