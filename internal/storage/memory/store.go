package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// Store — in-memory хранилище для локальной разработки и тестов.
// Пишущие операции (транзакции движка и изменения каталога) сериализуются через writeLock,
// чтение идёт под RWMutex и видит только зафиксированное состояние.
type Store struct {
	mu        sync.RWMutex
	writeLock chan struct{}

	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	users     map[string]domain.User

	outbox      *outboxRepositoryInMemory
	idempotency *idempotencyRepositoryInMemory
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		writeLock:   make(chan struct{}, 1),
		customers:   make(map[string]domain.Customer),
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
		users:       make(map[string]domain.User),
		outbox:      NewOutboxRepository(),
		idempotency: NewIdempotencyRepository(),
	}
}

// Customers возвращает репозиторий клиентов.
func (s *Store) Customers() domain.CustomerRepository { return &customerRepository{store: s} }

// Products возвращает репозиторий товаров.
func (s *Store) Products() domain.ProductRepository { return &productRepository{store: s} }

// Orders возвращает read-модель заказов.
func (s *Store) Orders() domain.OrderReader { return &orderReader{store: s} }

// Users возвращает репозиторий учётных записей.
func (s *Store) Users() domain.UserRepository { return &userRepository{store: s} }

// Outbox возвращает outbox, в который попадают события зафиксированных транзакций.
func (s *Store) Outbox() *outboxRepositoryInMemory { return s.outbox }

// Idempotency возвращает репозиторий ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository { return s.idempotency }

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writeLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire write lock: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.writeLock
}

// Begin открывает транзакцию движка заказов.
func (s *Store) Begin(ctx context.Context) (domain.OrderTx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &orderTx{
		store:    s,
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		deleted:  make(map[string]struct{}),
	}, nil
}

// orderTx накапливает изменения и применяет их к Store при Commit.
type orderTx struct {
	store *Store
	done  bool

	products map[string]domain.Product
	orders   map[string]domain.Order
	deleted  map[string]struct{}
	outbox   []domain.OutboxMessage
}

var errTxDone = errors.New("transaction already finished")

func (tx *orderTx) check(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	return ctx.Err()
}

func (tx *orderTx) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if err := tx.check(ctx); err != nil {
		return domain.Customer{}, err
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	customer, ok := tx.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", id)
	}
	return customer, nil
}

func (tx *orderTx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if staged, ok := tx.products[id]; ok {
			result[id] = staged
			continue
		}
		if product, ok := tx.store.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (tx *orderTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := tx.check(ctx); err != nil {
		return domain.Order{}, err
	}
	if _, gone := tx.deleted[id]; gone {
		return domain.Order{}, domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
	}
	if staged, ok := tx.orders[id]; ok {
		return staged.Clone(), nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	order, ok := tx.store.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
	}
	return order.Clone(), nil
}

func (tx *orderTx) SaveOrder(ctx context.Context, order domain.Order) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	delete(tx.deleted, order.ID)
	tx.orders[order.ID] = order.Clone()
	return nil
}

func (tx *orderTx) SaveProducts(ctx context.Context, products []domain.Product) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	for _, product := range products {
		if product.Stock < 0 {
			return domain.Conflict(domain.ErrStockNegative, "stock of product %s cannot drop below zero", product.ID)
		}
		tx.products[product.ID] = product
	}
	return nil
}

func (tx *orderTx) DeleteOrder(ctx context.Context, id string) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	delete(tx.orders, id)
	tx.deleted[id] = struct{}{}
	return nil
}

func (tx *orderTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	tx.outbox = append(tx.outbox, msg)
	return nil
}

// Commit применяет накопленные изменения одним шагом под эксклюзивной блокировкой.
func (tx *orderTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	defer tx.store.release()

	s := tx.store
	s.mu.Lock()
	for id, product := range tx.products {
		s.products[id] = product
	}
	for id := range tx.deleted {
		delete(s.orders, id)
	}
	for id, order := range tx.orders {
		s.orders[id] = order
	}
	s.mu.Unlock()

	for _, msg := range tx.outbox {
		if _, err := s.outbox.Enqueue(context.Background(), msg); err != nil {
			return fmt.Errorf("enqueue outbox message: %w", err)
		}
	}
	return nil
}

// Rollback отбрасывает изменения; повторный вызов ничего не делает.
func (tx *orderTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.release()
	return nil
}

var _ domain.OrderStore = (*Store)(nil)
