package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/expirians/storefront/internal/health"
	"github.com/expirians/storefront/internal/messaging/kafka"
	"github.com/expirians/storefront/internal/service/address"
	"github.com/expirians/storefront/internal/service/checkout"
	"github.com/expirians/storefront/internal/service/httpapi"
	"github.com/expirians/storefront/internal/service/lifecycle"
	"github.com/expirians/storefront/internal/service/outbox"
	"github.com/expirians/storefront/internal/service/review"
	"github.com/expirians/storefront/internal/version"
)

const (
	shutdownTimeout = 5 * time.Second

	outboxDegradedAt  = 100
	outboxUnhealthyAt = 1000

	idempotencyCleanupBatch = 1000
)

// Run собирает зависимости и запускает HTTP API, сервер метрик,
// outbox relay и фоновую очистку ключей идемпотентности. Блокируется
// до отмены контекста или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	assembler := checkout.NewAssembler(
		deps.Orders, deps.Products, deps.Addresses, deps.Ledger,
		deps.History, deps.Outbox,
		logger.WithField("layer", "checkout"),
	)
	machine := lifecycle.NewMachine(
		deps.Orders, deps.Ledger, deps.History, deps.Outbox,
		logger.WithField("layer", "lifecycle"),
	)
	registry := address.NewRegistry(deps.Addresses, nil, logger.WithField("layer", "address"))
	gate := review.NewGate(deps.Reviews, deps.Orders, deps.Outbox, logger.WithField("layer", "review"))

	apiServer := httpapi.NewServer(
		assembler, machine, registry, gate,
		deps.Orders, deps.History,
		httpapi.WithLogger(logger.WithField("layer", "httpapi")),
		httpapi.WithIdempotency(deps.Idempotency, cfg.IdempotencyTTL),
	)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	if kafkaProducer != nil {
		relay := outbox.NewRelay(
			deps.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithLogger(logger.WithField("layer", "outbox-relay")),
		)
		go relay.Run(ctx)
	} else {
		logger.Warn("kafka is not configured, outbox relay is disabled")
	}

	go runIdempotencyCleanup(ctx, deps, cfg.IdempotencyCleanupInterval)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker(
		"outbox", outboxDegradedAt, outboxUnhealthyAt,
		func() (int64, error) {
			stats, err := deps.Outbox.Stats()
			if err != nil {
				return 0, err
			}
			return int64(stats.PendingCount), nil
		},
	))
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiServer.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runIdempotencyCleanup периодически удаляет просроченные ключи идемпотентности.
func runIdempotencyCleanup(ctx context.Context, deps *Dependencies, interval time.Duration) {
	if interval <= 0 {
		return
	}
	logger := deps.Logger.WithField("layer", "idempotency-cleanup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := deps.Idempotency.DeleteExpired(time.Now().UTC(), idempotencyCleanupBatch)
			if err != nil {
				logger.WithError(err).Warn("failed to delete expired idempotency keys")
				continue
			}
			if deleted > 0 {
				logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
			}
		}
	}
}

// startMetricsServer запускает служебный HTTP-сервер метрик и health-проверок.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.Handle("/readyz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
