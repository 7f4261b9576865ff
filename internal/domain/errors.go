package domain

import "errors"

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderExists           = errors.New("order already exists")
	ErrOrderExpired          = errors.New("order expired")
	ErrOrderTerminal         = errors.New("order already in terminal state")
	ErrAlreadyDelivered      = errors.New("order already delivered")
	ErrLocationNotFound      = errors.New("location not found")
	ErrProductNotFound       = errors.New("product tier not found")
	ErrImageNotFound         = errors.New("image not found")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidID             = errors.New("invalid id")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrLoginLocked           = errors.New("too many failed login attempts")
	ErrSessionInvalid        = errors.New("admin session invalid or expired")
)
