package payment

import (
	"encoding/base64"
	"fmt"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCodeDataURI renders the payment request as a scannable QR PNG,
// inlined as a data URI for the storefront to display directly.
func QRCodeDataURI(address string, amount float64) (string, error) {
	uri := fmt.Sprintf("dash:%s?amount=%s", address, strconv.FormatFloat(amount, 'f', -1, 64))
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
