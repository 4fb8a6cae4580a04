package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
)

// Storage объединяет репозитории выбранного хранилища.
type Storage struct {
	Driver      StorageDriver
	Orders      domain.OrderStore
	OrderReader domain.OrderReader
	Customers   domain.CustomerRepository
	Products    domain.ProductRepository
	Users       domain.UserRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping проверяет доступность хранилища.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close освобождает соединения хранилища.
func (s *Storage) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// initStorage открывает хранилище и при необходимости применяет миграции.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*Storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &Storage{
			Driver:      StorageDriverMemory,
			Orders:      store,
			OrderReader: store.Orders(),
			Customers:   store.Customers(),
			Products:    store.Products(),
			Users:       store.Users(),
			Outbox:      store.Outbox(),
			Idempotency: store.Idempotency(),
			ping:        store.Ping,
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("read migration status: %w", err)
			}
			logger.WithFields(log.Fields{
				"version": state.Version,
				"applied": state.Applied,
			}).Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return &Storage{
			Driver:      StorageDriverPostgres,
			Orders:      store,
			OrderReader: store.Orders(),
			Customers:   store.Customers(),
			Products:    store.Products(),
			Users:       store.Users(),
			Outbox:      store.Outbox(),
			Idempotency: store.Idempotency(),
			ping:        store.Ping,
			close:       store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
