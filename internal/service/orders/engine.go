// Package orders реализует транзакционный движок заказов: создание, полная замена
// и удаление заказа с симметричной корректировкой складских остатков.
package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
)

// ItemRequest — позиция заказа в запросе: товар и количество.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Options задаёт зависимости движка.
type Options struct {
	Clock   func() time.Time
	NewID   func() string
	Logger  *log.Entry
	Metrics *metrics.OrderMetrics
}

// Option настраивает Engine.
type Option func(*Options)

// WithClock задаёт источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithIDGenerator задаёт генератор идентификаторов заказов и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(opts *Options) {
		opts.NewID = newID
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики движка.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Engine выполняет мутации заказов, каждая — в одной транзакции хранилища.
type Engine struct {
	store    domain.OrderStore
	products domain.ProductRepository
	now      func() time.Time
	newID    func() string
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewEngine создаёт движок заказов.
func NewEngine(store domain.OrderStore, products domain.ProductRepository, options ...Option) *Engine {
	opts := Options{
		Clock: time.Now,
		NewID: uuid.NewString,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-engine")
	}

	return &Engine{
		store:    store,
		products: products,
		now:      opts.Clock,
		newID:    opts.NewID,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// CreateOrder оформляет заказ: проверяет клиента и товары, списывает остатки,
// фиксирует цены позиций и сохраняет всё одной транзакцией.
func (e *Engine) CreateOrder(ctx context.Context, customerID string, items []ItemRequest) (order domain.Order, err error) {
	done := e.metrics.Track("create")
	defer func() { done(resultLabel(err)) }()

	err = e.inTx(ctx, "create order", func(tx domain.OrderTx) error {
		if len(items) == 0 {
			return domain.Validation(domain.ErrItemsRequired, "order must contain at least one item")
		}

		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}

		products, err := lockRequested(ctx, tx, items, nil)
		if err != nil {
			return err
		}

		lines, err := reserve(items, products)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		order = domain.Order{
			ID:            e.newID(),
			CustomerID:    customer.ID,
			CustomerName:  customer.FullName,
			CustomerEmail: customer.Email,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		order.Items = e.stampItems(lines)
		order.TotalAmount = domain.SumLineTotals(order.Items)

		return e.persist(ctx, tx, domain.OrderEventCreated, order, touched(products, now))
	})
	if err != nil {
		e.logFailure(err, "create", log.Fields{"customer_id": customerID})
		return domain.Order{}, err
	}

	e.metrics.ObserveOrderAmount(order.TotalAmount)
	e.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"total_amount": order.TotalAmount.StringFixed(domain.MoneyPlaces),
	}).Info("order created")
	return order, nil
}

// UpdateOrder полностью заменяет позиции заказа: сначала возвращает на склад
// старые позиции, затем проверяет и списывает новые по восстановленным остаткам.
func (e *Engine) UpdateOrder(ctx context.Context, orderID, customerID string, items []ItemRequest) (order domain.Order, err error) {
	done := e.metrics.Track("update")
	defer func() { done(resultLabel(err)) }()

	err = e.inTx(ctx, "update order", func(tx domain.OrderTx) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.Validation(domain.ErrItemsRequired, "order must contain at least one item")
		}

		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			if domain.IsNotFound(err) {
				return domain.Validation(domain.ErrCustomerNotFound, "customer %s not found", customerID)
			}
			return err
		}

		products, err := lockRequested(ctx, tx, items, current.ProductIDs())
		if err != nil {
			return err
		}
		if err := restore(current, products); err != nil {
			return err
		}

		lines, err := reserve(items, products)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		order = domain.Order{
			ID:            current.ID,
			CustomerID:    customer.ID,
			CustomerName:  customer.FullName,
			CustomerEmail: customer.Email,
			CreatedAt:     current.CreatedAt,
			UpdatedAt:     now,
		}
		order.Items = e.stampItems(lines)
		order.TotalAmount = domain.SumLineTotals(order.Items)

		return e.persist(ctx, tx, domain.OrderEventUpdated, order, touched(products, now))
	})
	if err != nil {
		e.logFailure(err, "update", log.Fields{"order_id": orderID, "customer_id": customerID})
		return domain.Order{}, err
	}

	e.metrics.ObserveOrderAmount(order.TotalAmount)
	e.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.StringFixed(domain.MoneyPlaces),
	}).Info("order updated")
	return order, nil
}

// DeleteOrder удаляет заказ и возвращает количество всех его позиций на склад.
func (e *Engine) DeleteOrder(ctx context.Context, orderID string) (err error) {
	done := e.metrics.Track("delete")
	defer func() { done(resultLabel(err)) }()

	err = e.inTx(ctx, "delete order", func(tx domain.OrderTx) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		locked, err := tx.LockProducts(ctx, current.ProductIDs())
		if err != nil {
			return err
		}
		products := asWorkingSet(locked)
		if err := restore(current, products); err != nil {
			return err
		}

		now := e.now().UTC()
		if err := tx.SaveProducts(ctx, touched(products, now)); err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, current.ID); err != nil {
			return err
		}
		return e.enqueue(ctx, tx, domain.OrderEventDeleted, current, now)
	})
	if err != nil {
		e.logFailure(err, "delete", log.Fields{"order_id": orderID})
		return err
	}

	e.logger.WithField("order_id", orderID).Info("order deleted")
	return nil
}

// AdjustStock вручную меняет остаток товара вне жизненного цикла заказов.
func (e *Engine) AdjustStock(ctx context.Context, productID string, delta int) (product domain.Product, err error) {
	done := e.metrics.Track("adjust_stock")
	defer func() { done(resultLabel(err)) }()

	if delta == 0 {
		return domain.Product{}, domain.Validation(domain.ErrStockAmountZero, "amount must be non-zero")
	}

	product, err = e.products.AdjustStock(ctx, productID, delta, e.now().UTC())
	if err != nil {
		err = domain.Storage("adjust stock", err)
		e.logFailure(err, "adjust_stock", log.Fields{"product_id": productID, "delta": delta})
		return domain.Product{}, err
	}

	e.metrics.RecordStockAdjustment(delta)
	return product, nil
}

// inTx выполняет fn в транзакции: commit при успехе, rollback при ошибке, панике или отмене ctx.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx domain.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Storage(op, err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return domain.Storage("begin transaction", err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.WithError(rbErr).WithField("operation", op).Error("rollback failed")
		}
	}()

	if err := fn(tx); err != nil {
		return domain.Storage(op, err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Storage(op, err)
	}

	finished = true
	if err := tx.Commit(); err != nil {
		return domain.Storage("commit transaction", err)
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, tx domain.OrderTx, event domain.OrderEventType, order domain.Order, products []domain.Product) error {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Storage("validate order", errs[0])
	}
	if err := tx.SaveProducts(ctx, products); err != nil {
		return err
	}
	if err := tx.SaveOrder(ctx, order); err != nil {
		return err
	}
	return e.enqueue(ctx, tx, event, order, order.UpdatedAt)
}

func (e *Engine) enqueue(ctx context.Context, tx domain.OrderTx, event domain.OrderEventType, order domain.Order, at time.Time) error {
	msg, err := domain.NewOrderOutboxMessage(event, order, at)
	if err != nil {
		return err
	}
	msg.ID = e.newID()
	return tx.Enqueue(ctx, msg)
}

func (e *Engine) stampItems(lines []domain.OrderItem) []domain.OrderItem {
	for i := range lines {
		lines[i].ID = e.newID()
	}
	return lines
}

func (e *Engine) logFailure(err error, op string, fields log.Fields) {
	entry := e.logger.WithError(err).WithFields(fields).WithField("operation", op)
	if domain.KindOf(err) == domain.KindStorage {
		entry.Error("order transaction rolled back")
		return
	}
	entry.Warn("order request rejected")
}

// lockRequested блокирует товары из запроса вместе с extra (товары текущих позиций заказа)
// и проверяет, что каждый запрошенный товар существует.
func lockRequested(ctx context.Context, tx domain.OrderTx, items []ItemRequest, extra []string) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(items)+len(extra))
	seen := make(map[string]struct{}, cap(ids))
	for _, id := range extra {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	requested := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
		requested = append(requested, item.ProductID)
	}
	sort.Strings(ids)

	found, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	reported := make(map[string]struct{})
	for _, id := range requested {
		if _, ok := found[id]; ok {
			continue
		}
		if _, dup := reported[id]; dup {
			continue
		}
		reported[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		return nil, domain.Validation(domain.ErrUnknownProduct, "unknown product(s): %s", strings.Join(missing, ", "))
	}

	return asWorkingSet(found), nil
}

func asWorkingSet(found map[string]domain.Product) map[string]*domain.Product {
	set := make(map[string]*domain.Product, len(found))
	for id, product := range found {
		p := product
		set[id] = &p
	}
	return set
}

// restore возвращает на склад количество каждой позиции заказа.
func restore(order domain.Order, products map[string]*domain.Product) error {
	for _, item := range order.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return domain.Conflict(domain.ErrReferencedProductMissing,
				"product %s referenced by order %s no longer exists", item.ProductID, order.ID)
		}
		product.Stock += item.Quantity
	}
	return nil
}

// reserve проверяет позиции в порядке запроса и списывает остатки с рабочей копии.
// Повторяющийся товар проверяется по уже уменьшенному остатку.
func reserve(items []ItemRequest, products map[string]*domain.Product) ([]domain.OrderItem, error) {
	lines := make([]domain.OrderItem, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.Validation(domain.ErrItemQtyInvalid,
				"quantity for product %s must be greater than zero", item.ProductID)
		}

		product := products[item.ProductID]
		if product.Stock < item.Quantity {
			return nil, domain.Validation(domain.ErrInsufficientStock,
				"insufficient stock for %s: requested %d, available %d", product.Name, item.Quantity, product.Stock)
		}
		product.Stock -= item.Quantity

		lines = append(lines, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   domain.LineTotal(product.Price, item.Quantity),
			Position:    i,
		})
	}
	return lines, nil
}

// touched возвращает изменённые товары в детерминированном порядке со штампом времени.
func touched(products map[string]*domain.Product, at time.Time) []domain.Product {
	result := make([]domain.Product, 0, len(products))
	for _, product := range products {
		p := *product
		p.UpdatedAt = at
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.KindOf(err))
}
