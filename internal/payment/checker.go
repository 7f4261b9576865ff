package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Transaction is one payment seen by the balance-lookup service.
type Transaction struct {
	TxID          string
	Amount        float64
	Confirmations int
	Time          time.Time
}

// BalanceChecker looks up the transactions received by an address. It
// is the pluggable collaborator the poller and the verify endpoint
// share; implementations are swappable per deployment.
type BalanceChecker interface {
	Check(ctx context.Context, address string) ([]Transaction, error)
}

// HTTPChecker queries insight-style explorer APIs over HTTP, trying
// each configured endpoint in order until one answers.
type HTTPChecker struct {
	client    *http.Client
	endpoints []string
	logger    zerolog.Logger
}

func NewHTTPChecker(endpoints []string, timeout time.Duration, logger zerolog.Logger) *HTTPChecker {
	return &HTTPChecker{
		client:    &http.Client{Timeout: timeout},
		endpoints: endpoints,
		logger:    logger.With().Str("component", "balance-checker").Logger(),
	}
}

// addressInfo tolerates the field variations across explorers:
// transactions vs txrefs, txid vs tx_hash, value vs total (satoshis),
// unix time vs RFC 3339 confirmed.
type addressInfo struct {
	Transactions []rawTransaction `json:"transactions"`
	TxRefs       []rawTransaction `json:"txrefs"`
}

type rawTransaction struct {
	TxID          string    `json:"txid"`
	TxHash        string    `json:"tx_hash"`
	Value         int64     `json:"value"`
	Total         int64     `json:"total"`
	Confirmations int       `json:"confirmations"`
	Time          int64     `json:"time"`
	Confirmed     time.Time `json:"confirmed"`
}

const satoshisPerUnit = 100_000_000

func (c *HTTPChecker) Check(ctx context.Context, address string) ([]Transaction, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		txs, err := c.checkOne(ctx, endpoint, address)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("balance endpoint failed")
			lastErr = err
			continue
		}
		return txs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no balance endpoints configured")
	}
	return nil, fmt.Errorf("balance lookup for %s: %w", address, lastErr)
}

func (c *HTTPChecker) checkOne(ctx context.Context, endpoint, address string) ([]Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/"+address, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storefront-api/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var info addressInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw := info.Transactions
	if len(raw) == 0 {
		raw = info.TxRefs
	}

	txs := make([]Transaction, 0, len(raw))
	for _, tx := range raw {
		txs = append(txs, tx.normalize())
	}
	return txs, nil
}

func (tx rawTransaction) normalize() Transaction {
	id := tx.TxID
	if id == "" {
		id = tx.TxHash
	}
	sats := tx.Value
	if sats == 0 {
		sats = tx.Total
	}
	when := tx.Confirmed
	if tx.Time > 0 {
		when = time.Unix(tx.Time, 0).UTC()
	}
	return Transaction{
		TxID:          id,
		Amount:        float64(sats) / satoshisPerUnit,
		Confirmations: tx.Confirmations,
		Time:          when,
	}
}

// MatchTransaction picks the first transaction whose amount is within
// tolerance of the expected amount and that is confirmed deeply enough.
func MatchTransaction(txs []Transaction, expected, tolerance float64, minConfirmations int) (Transaction, bool) {
	for _, tx := range txs {
		if math.Abs(tx.Amount-expected) < tolerance && tx.Confirmations >= minConfirmations {
			return tx, true
		}
	}
	return Transaction{}, false
}
