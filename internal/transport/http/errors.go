package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeMissingRequiredField  = "missing_required_field"
	codeInvalidAmount         = "invalid_amount"
	codeLocationNotFound      = "location_not_found"
	codeProductNotFound       = "product_not_found"
	codeOrderNotFound         = "order_not_found"
	codeOrderExists           = "order_exists"
	codeOrderExpired          = "order_expired"
	codeInsufficientInventory = "insufficient_inventory"
	codeAlreadyDelivered      = "already_delivered"
	codeImageNotFound         = "image_not_found"
	codeInvalidCredentials    = "invalid_credentials"
	codeLoginLocked           = "login_locked"
	codeSessionInvalid        = "session_invalid"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
