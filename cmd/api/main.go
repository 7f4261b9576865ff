package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/imagedrop/storefront/internal/app"
	"github.com/imagedrop/storefront/internal/blob"
	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/config"
	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/metrics"
	"github.com/imagedrop/storefront/internal/payment"
	"github.com/imagedrop/storefront/internal/storage/memory"
	"github.com/imagedrop/storefront/internal/storage/postgres"
	transporthttp "github.com/imagedrop/storefront/internal/transport/http"
	"github.com/imagedrop/storefront/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("app", cfg.AppName).
		Logger()
	log.Logger = logger

	catalog, err := buildCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid catalog config")
	}

	blobs, err := blob.NewFSStore(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("cannot open data dir")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	clk := clock.NewSystem()

	var (
		inventoryRepo app.InventoryRepository
		ledgerRepo    app.LedgerRepository
	)
	if cfg.DatabaseURL != "" {
		startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("connect to db")
		}
		defer pool.Close()
		if err := pool.Ping(startupCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("db ping")
		}
		if err := migrations.Apply(startupCtx, pool); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		cancel()
		inventoryRepo = postgres.NewInventoryRepository(pool)
		ledgerRepo = postgres.NewLedgerRepository(pool)
		logger.Info().Msg("using postgres inventory and ledger")
	} else {
		inventoryRepo = memory.NewInventoryStore()
		ledgerRepo = memory.NewLedgerStore()
		logger.Warn().Msg("DATABASE_URL not set, inventory and ledger are in-memory")
	}
	orderRepo := memory.NewOrderStore()

	orderSvc := app.NewOrderService(orderRepo, ledgerRepo, payment.RandomAddressGenerator{}, clk, catalog, logger,
		app.WithOrderTTL(cfg.OrderTTL))
	inventorySvc := app.NewInventoryService(inventoryRepo, blobs, clk, logger)
	deliverySvc := app.NewDeliveryService(inventoryRepo, orderSvc, clk, m, logger,
		app.WithImageCount(cfg.RequiredImageCount))

	checker := payment.NewHTTPChecker(config.SplitCSV(cfg.BalanceAPIEndpoints), cfg.BalanceAPITimeout, logger)
	poller := payment.NewPoller(checker, clk, payment.Callbacks{
		Checking: func(orderID string) {
			orderSvc.MarkChecking(context.Background(), orderID)
		},
		Confirmed: func(ctx context.Context, orderID string, tx payment.Transaction) error {
			_, err := deliverySvc.Deliver(ctx, orderID, tx.TxID)
			return err
		},
		Expired: func(orderID string) {
			if err := orderSvc.Cancel(context.Background(), orderID, app.CancelExpired); err != nil {
				logger.Warn().Err(err).Str("order", orderID).Msg("cancel on expiry failed")
			}
		},
		Failed: func(orderID string, err error) {
			logger.Error().Err(err).Str("order", orderID).Msg("giving up on order after repeated lookup failures")
			if err := orderSvc.Cancel(context.Background(), orderID, app.CancelLookupFailed); err != nil {
				logger.Warn().Err(err).Str("order", orderID).Msg("cancel on lookup failure failed")
			}
		},
	}, m, logger,
		payment.WithInterval(cfg.PollInterval),
		payment.WithTolerance(cfg.AmountTolerance),
		payment.WithMinConfirmations(cfg.MinConfirmations),
		payment.WithMaxTransientFailures(cfg.MaxTransientFailures),
	)

	if cfg.AdminPasswordHash == "" {
		logger.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin login is disabled")
	}
	adminSvc := app.NewAdminService(app.NewBcryptChecker(cfg.AdminPasswordHash), clk, logger,
		app.WithSessionTTL(cfg.AdminSessionTTL),
		app.WithLoginPolicy(cfg.AdminMaxLoginAttempts, cfg.AdminLoginLockout))

	verifyCfg := transporthttp.VerifyConfig{
		Tolerance:        cfg.AmountTolerance,
		MinConfirmations: cfg.MinConfirmations,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/payment/address", transporthttp.HandlePaymentAddress(orderSvc, poller))
	mux.Handle("/payment/verify", transporthttp.HandlePaymentVerify(orderSvc, checker, deliverySvc, poller, verifyCfg))
	mux.Handle("/blockchain/monitor", transporthttp.HandleBlockchainMonitor(orderSvc, poller))
	mux.Handle("/blockchain/webhook", transporthttp.HandleBlockchainWebhook(orderSvc, deliverySvc, poller, verifyCfg))
	mux.Handle("/inventory", transporthttp.RequireAdmin(adminSvc, transporthttp.HandleInventory(inventorySvc)))
	mux.Handle("/inventory/upload", transporthttp.RequireAdmin(adminSvc, transporthttp.HandleInventoryUpload(inventorySvc)))
	mux.Handle("/admin/login", transporthttp.HandleAdminLogin(adminSvc))
	mux.Handle("/admin/logout", transporthttp.HandleAdminLogout(adminSvc))
	mux.Handle("/admin/ledger", transporthttp.RequireAdmin(adminSvc, transporthttp.HandleAdminLedger(orderSvc)))
	mux.Handle("/images/", transporthttp.HandleImageDownload(inventorySvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	corsOrigins := config.SplitCSV(cfg.CORSOrigins)
	handler := transporthttp.RequestLogger(transporthttp.CORS(corsOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info().Str("port", cfg.Port).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
}

// buildCatalog parses the LOCATIONS and PRODUCT_TIERS config values.
// Tiers use the "code=price" form, e.g. "0.5G=26,1.0G=35".
func buildCatalog(cfg config.Config) (domain.Catalog, error) {
	var catalog domain.Catalog
	for _, name := range config.SplitCSV(cfg.Locations) {
		catalog.Locations = append(catalog.Locations, domain.Location{ID: name, Name: name})
	}
	for _, entry := range config.SplitCSV(cfg.ProductTiers) {
		code, priceStr, ok := strings.Cut(entry, "=")
		if !ok {
			return domain.Catalog{}, errors.New("product tier entry missing price: " + entry)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			return domain.Catalog{}, errors.New("product tier entry has invalid price: " + entry)
		}
		catalog.Tiers = append(catalog.Tiers, domain.ProductTier{
			Code:      strings.TrimSpace(code),
			UnitPrice: price,
		})
	}
	if len(catalog.Locations) == 0 || len(catalog.Tiers) == 0 {
		return domain.Catalog{}, errors.New("catalog needs at least one location and one product tier")
	}
	return catalog, nil
}
