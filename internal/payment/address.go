package payment

import (
	"context"
	"crypto/rand"
	"fmt"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// RandomAddressGenerator produces unique, wallet-shaped addresses. It
// stands in for a real wallet or payment-processor integration; the
// system never validates chain-of-custody for these.
type RandomAddressGenerator struct {
	// Prefix is the network prefix for generated addresses.
	Prefix string
}

func (g RandomAddressGenerator) NewAddress(_ context.Context, _ string) (string, error) {
	b := make([]byte, 33)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate address: %w", err)
	}
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = base58Alphabet[int(v)%len(base58Alphabet)]
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = "X"
	}
	return prefix + string(out), nil
}
