package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appcheckout "github.com/shoplite/checkout-engine/internal/application/checkout"
	appinventory "github.com/shoplite/checkout-engine/internal/application/inventory"
	apppayment "github.com/shoplite/checkout-engine/internal/application/payment"
	appshipping "github.com/shoplite/checkout-engine/internal/application/shipping"
	domcatalog "github.com/shoplite/checkout-engine/internal/domain/catalog"
	"github.com/shoplite/checkout-engine/internal/infrastructure/carrier"
	staticcatalog "github.com/shoplite/checkout-engine/internal/infrastructure/catalog"
	"github.com/shoplite/checkout-engine/internal/infrastructure/id"
	"github.com/shoplite/checkout-engine/internal/infrastructure/memory"
	infranotif "github.com/shoplite/checkout-engine/internal/infrastructure/notification"
	"github.com/shoplite/checkout-engine/internal/infrastructure/observability/oteltrace"
	"github.com/shoplite/checkout-engine/internal/infrastructure/observability/prometrics"
	"github.com/shoplite/checkout-engine/internal/infrastructure/observability/telemetry"
	"github.com/shoplite/checkout-engine/internal/infrastructure/observability/zaplogger"
	"github.com/shoplite/checkout-engine/internal/infrastructure/outbox"
	infrapayment "github.com/shoplite/checkout-engine/internal/infrastructure/payment"
	shippingworker "github.com/shoplite/checkout-engine/internal/infrastructure/shipping/worker"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/pkg/cache"
	httppresentation "github.com/shoplite/checkout-engine/internal/presentation/http"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "checkout-engine")
	env := getenvDefault("ENV", "dev")

	baseLogger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)
	if s, ok := baseLogger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	metricsRegistry := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: metricsRegistry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: metricsRegistry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MExternalRequests: metricsRegistry.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external providers.",
			"peer", "endpoint", "outcome",
		),
		observability.MReservationConflicts: metricsRegistry.Counter(
			string(observability.MReservationConflicts),
			"Optimistic-concurrency conflicts while mutating stock records.",
			"product_id",
		),
		observability.MCompensations: metricsRegistry.Counter(
			string(observability.MCompensations),
			"Compensating actions executed while unwinding failed checkouts.",
			"step",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: metricsRegistry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: metricsRegistry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: metricsRegistry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external provider calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}

	tel := telemetry.New(oteltrace.New(serviceName), baseLogger, counters, histograms)
	systemLogger := tel.Logger().With(observability.F("component", "main"))

	// Repositories and gateways.
	orderRepo := memory.NewOrderRepository()
	inventoryRepo := memory.NewInventoryRepository()
	labelStore := memory.NewLabelStore()
	catalogGw := staticcatalog.NewStaticGateway(demoCatalog()...)
	carrierGw := carrier.NewSimulatedGateway()
	for _, p := range demoCatalog() {
		inventoryRepo.Seed(p.ID, p.Stock)
	}

	var readCache cache.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		readCache = cache.NewRedisCache(redisAddr, serviceName)
	} else {
		readCache = cache.NewMemoryCache(serviceName)
	}

	idGenerator := id.NewGenerator()

	// Payment processors behind one registry.
	cardProcessor := infrapayment.NewCardProcessor()
	walletProcessor := infrapayment.NewWalletProcessor()
	bankProcessor := infrapayment.NewBankTransferProcessor()
	processors := apppayment.NewRegistry(cardProcessor, walletProcessor, bankProcessor)

	ledger := appinventory.NewLedger(inventoryRepo, idGenerator, tel)
	issuer := appshipping.NewIssuer(labelStore, carrierGw, catalogGw, tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(tel.Logger())
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	orchestrator := appcheckout.NewOrchestrator(
		orderRepo, catalogGw, ledger, processors, issuer, bus, idGenerator, tel,
		appcheckout.Config{Currency: getenvDefault("CURRENCY", "EUR")},
	)

	notificationWorker := infranotif.NewWorker(orderRepo, infranotif.NewLogGateway(tel.Logger()), bus, tel.Logger())
	notificationWorker.Start()

	labelWorker := shippingworker.New(orderRepo, issuer, bus, tel.Logger())
	labelWorker.Start(ctx)

	go releaseExpiredHolds(ctx, ledger, systemLogger)

	handler := httppresentation.NewHandler(orchestrator, readCache, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("HTTP_ADDR", ":8080"),
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// releaseExpiredHolds returns stock from reservations whose hold TTL elapsed
// without the payment resolving.
func releaseExpiredHolds(ctx context.Context, ledger *appinventory.Ledger, log observability.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if released := ledger.ReleaseExpired(ctx, now); released > 0 {
				log.Info("expired_reservations_released",
					observability.F("count", released),
				)
			}
		}
	}
}

func demoCatalog() []domcatalog.Product {
	return []domcatalog.Product{
		{ID: "P-1001", Price: 15000, WeightGrams: 800, Stock: 50, Active: true},
		{ID: "P-1002", Price: 4500, WeightGrams: 250, Stock: 200, Active: true},
		{ID: "P-1003", Price: 99900, WeightGrams: 12000, Stock: 5, Active: true},
		{ID: "P-1004", Price: 2500, WeightGrams: 100, Stock: 0, Active: false},
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
