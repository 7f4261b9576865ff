package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/metrics"
)

// Callbacks connect the poller to the order lifecycle. Confirmed may
// return ErrInsufficientInventory to keep the poller alive; any other
// outcome ends it.
type Callbacks struct {
	// Checking fires once, before the first balance lookup.
	Checking func(orderID string)
	// Confirmed fires when a matching, sufficiently confirmed
	// transaction is found.
	Confirmed func(ctx context.Context, orderID string, tx Transaction) error
	// Expired fires when the order deadline passes without a match.
	Expired func(orderID string)
	// Failed fires after too many consecutive transient failures.
	Failed func(orderID string, err error)
}

// Poller owns one watching goroutine per order. Ticks are discrete and
// non-overlapping: the next lookup is scheduled only after the current
// one resolves. A poller self-terminates at the order deadline even if
// Stop is never called.
type Poller struct {
	checker          BalanceChecker
	clock            clock.Clock
	interval         time.Duration
	tolerance        float64
	minConfirmations int
	maxTransient     int
	callbacks        Callbacks
	metrics          *metrics.Metrics
	logger           zerolog.Logger

	mu     sync.Mutex
	active map[string]*Handle
}

const (
	defaultPollInterval     = 10 * time.Second
	defaultAmountTolerance  = 0.001
	defaultMinConfirmations = 1
	defaultMaxTransient     = 3
)

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithTolerance(t float64) PollerOption {
	return func(p *Poller) {
		if t > 0 {
			p.tolerance = t
		}
	}
}

func WithMinConfirmations(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.minConfirmations = n
		}
	}
}

func WithMaxTransientFailures(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxTransient = n
		}
	}
}

func NewPoller(checker BalanceChecker, clk clock.Clock, cb Callbacks, m *metrics.Metrics, logger zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:          checker,
		clock:            clk,
		interval:         defaultPollInterval,
		tolerance:        defaultAmountTolerance,
		minConfirmations: defaultMinConfirmations,
		maxTransient:     defaultMaxTransient,
		callbacks:        cb,
		metrics:          m,
		logger:           logger.With().Str("component", "poller").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.active = make(map[string]*Handle)
	return p
}

// Handle cancels one order's polling. Stop is idempotent and safe to
// call from any goroutine.
type Handle struct {
	orderID string
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (h *Handle) Stop() {
	h.once.Do(h.cancel)
}

// Done closes when the polling goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start begins polling for the order. At most one poller runs per
// order id; a second Start is a no-op returning the existing handle.
func (p *Poller) Start(order domain.Order) *Handle {
	p.mu.Lock()
	if existing, ok := p.active[order.ID]; ok {
		p.mu.Unlock()
		p.logger.Warn().Str("order", order.ID).Msg("poller already active, ignoring duplicate start")
		return existing
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		orderID: order.ID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	p.active[order.ID] = h
	p.mu.Unlock()

	p.metrics.ActivePollers.Inc()
	go p.run(ctx, order, h)
	return h
}

// Stop cancels the poller for an order, if any. Idempotent.
func (p *Poller) Stop(orderID string) {
	p.mu.Lock()
	h, ok := p.active[orderID]
	p.mu.Unlock()
	if ok {
		h.Stop()
	}
}

// Active reports whether a poller currently runs for the order.
func (p *Poller) Active(orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[orderID]
	return ok
}

func (p *Poller) run(ctx context.Context, order domain.Order, h *Handle) {
	logger := p.logger.With().Str("order", order.ID).Str("address", order.PaymentAddress).Logger()
	defer func() {
		h.Stop()
		p.mu.Lock()
		delete(p.active, order.ID)
		p.mu.Unlock()
		p.metrics.ActivePollers.Dec()
		close(h.done)
	}()

	if p.callbacks.Checking != nil {
		p.callbacks.Checking(order.ID)
	}

	consecutive := 0
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("poller stopped")
			return
		case <-timer.C:
		}

		if !p.clock.Now().Before(order.ExpiresAt) {
			logger.Info().Time("expires_at", order.ExpiresAt).Msg("order deadline reached")
			p.metrics.OrdersExpired.Inc()
			if p.callbacks.Expired != nil {
				p.callbacks.Expired(order.ID)
			}
			return
		}

		p.metrics.PollTicks.Inc()
		tickCtx, cancel := context.WithTimeout(ctx, p.interval)
		txs, err := p.checker.Check(tickCtx, order.PaymentAddress)
		cancel()

		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			consecutive++
			p.metrics.TransientFailures.Inc()
			logger.Warn().Err(err).Int("consecutive", consecutive).Msg("balance lookup failed")
			if consecutive >= p.maxTransient {
				p.metrics.OrdersFailed.Inc()
				if p.callbacks.Failed != nil {
					p.callbacks.Failed(order.ID, err)
				}
				return
			}
		default:
			consecutive = 0
			if tx, ok := MatchTransaction(txs, order.ExpectedAmount, p.tolerance, p.minConfirmations); ok {
				err := p.callbacks.Confirmed(ctx, order.ID, tx)
				if err == nil {
					return
				}
				if errors.Is(err, domain.ErrInsufficientInventory) {
					// Payment stands but the bucket is empty; keep
					// polling so a restock can complete the order.
					logger.Warn().Msg("confirmed payment waiting on inventory")
				} else {
					logger.Error().Err(err).Msg("delivery failed for confirmed payment")
					return
				}
			}
		}

		timer.Reset(p.interval)
	}
}
