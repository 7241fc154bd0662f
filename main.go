package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appalert "github.com/pharmaracks/stockledger/internal/application/alert"
	appledger "github.com/pharmaracks/stockledger/internal/application/ledger"
	"github.com/pharmaracks/stockledger/internal/config"
	"github.com/pharmaracks/stockledger/internal/domain/event"
	alertworker "github.com/pharmaracks/stockledger/internal/infrastructure/alert/worker"
	"github.com/pharmaracks/stockledger/internal/infrastructure/bus"
	"github.com/pharmaracks/stockledger/internal/infrastructure/id"
	"github.com/pharmaracks/stockledger/internal/infrastructure/kafka"
	"github.com/pharmaracks/stockledger/internal/infrastructure/memory"
	"github.com/pharmaracks/stockledger/internal/infrastructure/observability/oteltrace"
	"github.com/pharmaracks/stockledger/internal/infrastructure/observability/prometrics"
	"github.com/pharmaracks/stockledger/internal/infrastructure/observability/telemetry"
	"github.com/pharmaracks/stockledger/internal/infrastructure/observability/zaplogger"
	"github.com/pharmaracks/stockledger/internal/infrastructure/postgres"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName)
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MReservationRecomputes: registry.Counter(
			string(observability.MReservationRecomputes),
			"Total number of product reserved-total recomputes.",
		),
		observability.MReconcileRuns: registry.Counter(
			string(observability.MReconcileRuns),
			"Total number of reservation reconcile sweeps.",
		),
		observability.MEventPublishFailures: registry.Counter(
			string(observability.MEventPublishFailures),
			"Count of event publish failures.",
			"event",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
	}
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.PostgresDSN != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("postgres_connect_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
		logger.Info("store_selected", observability.F("store", "postgres"))
	} else {
		store = memory.NewStore()
		logger.Info("store_selected", observability.F("store", "memory"))
	}

	eventBus := bus.New(tel)
	eventBus.Start(ctx)
	defer eventBus.Stop(context.Background())

	var publisher event.Publisher = eventBus
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, tel)
		defer func() { _ = kp.Close() }()
		publisher = bus.Fanout{eventBus, kp}
		logger.Info("kafka_publisher_enabled",
			observability.F("topic", cfg.KafkaTopic),
		)
	}

	ids := id.NewUUIDGenerator()
	clk := clock.System()

	ledgerService := appledger.NewService(store, ids, clk, publisher, tel)
	alertService := appalert.NewService(store, clk, publisher, tel)

	alertWorker := alertworker.New(eventBus, store, ids, tel)
	alertWorker.Start()

	// Heal any reserved totals a crash may have left stale before serving.
	if err := ledgerService.Reconcile(ctx); err != nil {
		logger.Warn("startup_reconcile_failed", observability.F("error", err.Error()))
	}

	go sweepLoop(ctx, alertService, cfg.SweepInterval, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		logger.Info("metrics_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("metrics_server_stopped")
	}
}

func sweepLoop(ctx context.Context, alerts *appalert.Service, interval time.Duration, logger observability.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := alerts.Sweep(ctx); err != nil {
				logger.Warn("alert_sweep_failed", observability.F("error", err.Error()))
			}
		}
	}
}
