package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/storage/memory"
	"github.com/expirians/storefront/internal/storage/postgres"
)

// Dependencies содержит хранилища, на которых работают сервисы витрины.
type Dependencies struct {
	Orders      domain.OrderRepository
	Products    domain.ProductRepository
	Ledger      domain.StockLedger
	Addresses   domain.AddressRepository
	Reviews     domain.ReviewRepository
	History     domain.StatusHistoryRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	// Store не nil только при работе поверх PostgreSQL.
	Store  *postgres.Store
	Logger *log.Entry
}

// NewDependencies собирает хранилища по конфигурации: PostgreSQL при
// заданном DSN, иначе in-memory реализации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		return newMemoryDependencies(logger), nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := store.MigrateUp(ctx, 0); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("postgres storage initialized")

	products := postgres.NewProductRepository(store)
	return &Dependencies{
		Orders:      postgres.NewOrderRepository(store),
		Products:    products,
		Ledger:      products,
		Addresses:   postgres.NewAddressRepository(store),
		Reviews:     postgres.NewReviewRepository(store),
		History:     postgres.NewHistoryRepository(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		Store:       store,
		Logger:      logger,
	}, nil
}

func newMemoryDependencies(logger *log.Entry) *Dependencies {
	products := memory.NewProductRepository()
	return &Dependencies{
		Orders:      memory.NewOrderRepository(),
		Products:    products,
		Ledger:      products,
		Addresses:   memory.NewAddressRepository(),
		Reviews:     memory.NewReviewRepository(),
		History:     memory.NewStatusHistoryRepository(),
		Outbox:      memory.NewOutboxRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
		Logger:      logger,
	}
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() {
	if d == nil || d.Store == nil {
		return
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}
