package domain

import (
	"context"
	"time"
)

// OrderStore открывает транзакции движка заказов.
type OrderStore interface {
	Begin(ctx context.Context) (OrderTx, error)
}

// OrderTx — единица работы движка заказов. Все изменения видны другим
// транзакциям только после Commit; Rollback безопасно вызывать повторно.
type OrderTx interface {
	// GetCustomer возвращает клиента или NotFound(ErrCustomerNotFound).
	GetCustomer(ctx context.Context, id string) (Customer, error)
	// LockProducts загружает и блокирует товары до конца транзакции.
	// Отсутствующие идентификаторы просто не попадают в результат.
	LockProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// GetOrder возвращает заказ с позициями или NotFound(ErrOrderNotFound).
	GetOrder(ctx context.Context, id string) (Order, error)
	// SaveOrder создаёт или перезаписывает заказ, заменяя набор позиций целиком.
	SaveOrder(ctx context.Context, order Order) error
	// SaveProducts сохраняет остатки изменённых товаров.
	SaveProducts(ctx context.Context, products []Product) error
	// DeleteOrder удаляет заказ вместе с позициями.
	DeleteOrder(ctx context.Context, id string) error
	// Enqueue кладёт событие в transactional outbox в рамках той же транзакции.
	Enqueue(ctx context.Context, msg OutboxMessage) error
	Commit() error
	Rollback() error
}

// OrderFilter задаёт условия выборки заказов.
type OrderFilter struct {
	// CustomerEmail фильтрует по email клиента (без учёта регистра).
	CustomerEmail string
}

// OrderReader отдаёт заказы для чтения с проекциями клиента и товаров.
type OrderReader interface {
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы от новых к старым.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// CustomerRepository хранит клиентов.
type CustomerRepository interface {
	// Create возвращает Conflict(ErrEmailTaken), если email уже занят.
	Create(ctx context.Context, customer Customer) error
	Update(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	// List возвращает клиентов, отсортированных по имени.
	List(ctx context.Context) ([]Customer, error)
}

// ProductRepository хранит товары и их остатки.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Update меняет карточку товара, не затрагивая остаток.
	Update(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары от новых к старым.
	List(ctx context.Context) ([]Product, error)
	// Delete возвращает Conflict(ErrProductInUse), если товар есть в заказах.
	Delete(ctx context.Context, id string) error
	// AdjustStock атомарно меняет остаток на delta; результат не может стать отрицательным.
	AdjustStock(ctx context.Context, id string, delta int, at time.Time) (Product, error)
}

// UserRepository хранит учётные записи операторов.
type UserRepository interface {
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет читать и помечать события outbox.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
