package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	engine *orders.Engine
}

func newFixture(t *testing.T, products ...domain.Product) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Customers().Create(ctx, domain.Customer{
		ID: "c-1", FullName: "Demo Customer", Email: "customer@sales.local", CreatedAt: fixedNow,
	}))
	require.NoError(t, store.Customers().Create(ctx, domain.Customer{
		ID: "c-2", FullName: "Second Customer", Email: "second@sales.local", CreatedAt: fixedNow,
	}))
	for _, product := range products {
		require.NoError(t, store.Products().Create(ctx, product))
	}

	return &fixture{
		store:  store,
		engine: newEngine(store, store),
	}
}

func newEngine(store domain.OrderStore, catalog *memory.Store) *orders.Engine {
	var seq atomic.Int64
	return orders.NewEngine(store, catalog.Products(),
		orders.WithClock(func() time.Time { return fixedNow }),
		orders.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
}

func product(id string, price string, stock int) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.Orders().List(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	return len(list)
}

func TestCreateOrder_RoundTripTotals(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 5), product("p-2", "5.005", 5))

	order, err := f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	require.True(t, order.Items[0].LineTotal.Equal(decimal.RequireFromString("20.00")))
	require.True(t, order.Items[1].LineTotal.Equal(decimal.RequireFromString("5.01")))
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("25.01")))
	require.Empty(t, order.ValidateInvariants())
	require.Equal(t, "Demo Customer", order.CustomerName)
	require.Equal(t, fixedNow, order.CreatedAt)

	require.Equal(t, 3, f.stock(t, "p-1"))
	require.Equal(t, 4, f.stock(t, "p-2"))

	stored, err := f.store.Orders().Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalAmount.Equal(order.TotalAmount))
	require.Equal(t, "p-1", stored.Items[0].ProductID)

	pending := f.store.Outbox().AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, string(domain.OrderEventCreated), pending[0].EventType)
	require.Equal(t, order.ID, pending[0].AggregateID)
}

func TestCreateOrder_TotalEqualsSumOfLines(t *testing.T) {
	prices := []string{"0.01", "0.335", "19.99", "1.005", "1234.565", "7.125"}
	for i, price := range prices {
		t.Run(price, func(t *testing.T) {
			f := newFixture(t, product("p-1", price, 100), product("p-2", "3.333", 100))

			order, err := f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{
				{ProductID: "p-1", Quantity: i + 1},
				{ProductID: "p-2", Quantity: 3},
			})
			require.NoError(t, err)

			sum := decimal.Zero
			for _, item := range order.Items {
				sum = sum.Add(item.LineTotal)
			}
			require.True(t, order.TotalAmount.Equal(domain.RoundMoney(sum)), "total %s, sum %s", order.TotalAmount, sum)
		})
	}
}

func TestCreateOrder_SnapshotPriceSurvivesPriceChange(t *testing.T) {
	f := newFixture(t, product("p-1", "100.00", 5))
	ctx := context.Background()

	order, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, f.store.Products().Update(ctx, domain.Product{ID: "p-1", Name: "Product p-1", Price: decimal.NewFromInt(150)}))

	stored, err := f.store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(100)))
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name       string
		customerID string
		items      []orders.ItemRequest
		kind       domain.ErrorKind
		sentinel   error
	}{
		{
			name:       "no items",
			customerID: "c-1",
			items:      nil,
			kind:       domain.KindValidation,
			sentinel:   domain.ErrItemsRequired,
		},
		{
			name:       "missing customer",
			customerID: "c-404",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}},
			kind:       domain.KindNotFound,
			sentinel:   domain.ErrCustomerNotFound,
		},
		{
			name:       "unknown product",
			customerID: "c-1",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}, {ProductID: "p-404", Quantity: 1}},
			kind:       domain.KindValidation,
			sentinel:   domain.ErrUnknownProduct,
		},
		{
			name:       "zero quantity",
			customerID: "c-1",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: 0}},
			kind:       domain.KindValidation,
			sentinel:   domain.ErrItemQtyInvalid,
		},
		{
			name:       "negative quantity",
			customerID: "c-1",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: -2}},
			kind:       domain.KindValidation,
			sentinel:   domain.ErrItemQtyInvalid,
		},
		{
			name:       "insufficient stock",
			customerID: "c-1",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: 4}},
			kind:       domain.KindValidation,
			sentinel:   domain.ErrInsufficientStock,
		},
		{
			name:       "duplicate lines exceed stock together",
			customerID: "c-1",
			items:      []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}, {ProductID: "p-1", Quantity: 2}},
			kind:       domain.KindValidation,
			sentinel:   domain.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, product("p-1", "10.00", 3))

			_, err := f.engine.CreateOrder(context.Background(), tt.customerID, tt.items)
			require.Error(t, err)
			require.Equal(t, tt.kind, domain.KindOf(err))
			require.True(t, errors.Is(err, tt.sentinel), "unexpected error %v", err)

			require.Equal(t, 3, f.stock(t, "p-1"))
			require.Zero(t, f.orderCount(t))
			require.Empty(t, f.store.Outbox().AllPending())
		})
	}
}

func TestCreateOrder_UnknownProductMessageListsIDs(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))

	_, err := f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{
		{ProductID: "p-9", Quantity: 1},
		{ProductID: "p-8", Quantity: 1},
		{ProductID: "p-9", Quantity: 1},
	})
	require.EqualError(t, err, "unknown product(s): p-9, p-8")
}

func TestCreateOrder_InsufficientStockMessageNamesProduct(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))

	_, err := f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 4}})
	require.EqualError(t, err, "insufficient stock for Product p-1: requested 4, available 3")
}

func TestUpdateOrder_SameItemsKeepStock(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 2), product("p-2", "5.00", 1))
	ctx := context.Background()

	items := []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}, {ProductID: "p-2", Quantity: 1}}
	created, err := f.engine.CreateOrder(ctx, "c-1", items)
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, "p-1"))
	require.Equal(t, 0, f.stock(t, "p-2"))

	updated, err := f.engine.UpdateOrder(ctx, created.ID, "c-1", items)
	require.NoError(t, err)

	require.Equal(t, 0, f.stock(t, "p-1"))
	require.Equal(t, 0, f.stock(t, "p-2"))
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.True(t, created.TotalAmount.Equal(updated.TotalAmount))
}

func TestUpdateOrder_ReplacesItems(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 5), product("p-2", "2.50", 5))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 3}})
	require.NoError(t, err)

	updated, err := f.engine.UpdateOrder(ctx, created.ID, "c-2", []orders.ItemRequest{
		{ProductID: "p-2", Quantity: 4},
		{ProductID: "p-1", Quantity: 1},
	})
	require.NoError(t, err)

	require.Equal(t, 4, f.stock(t, "p-1"))
	require.Equal(t, 1, f.stock(t, "p-2"))
	require.Equal(t, "c-2", updated.CustomerID)
	require.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("20.00")))

	stored, err := f.store.Orders().Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.Equal(t, "p-2", stored.Items[0].ProductID)
	require.Equal(t, "second@sales.local", stored.CustomerEmail)
}

func TestUpdateOrder_Failures(t *testing.T) {
	tests := []struct {
		name       string
		orderID    string
		customerID string
		items      []orders.ItemRequest
		kind       domain.ErrorKind
	}{
		{name: "missing order", orderID: "o-404", customerID: "c-1", items: []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}}, kind: domain.KindNotFound},
		{name: "missing customer", customerID: "c-404", items: []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}}, kind: domain.KindValidation},
		{name: "empty items", customerID: "c-1", items: nil, kind: domain.KindValidation},
		{name: "unknown product", customerID: "c-1", items: []orders.ItemRequest{{ProductID: "p-404", Quantity: 1}}, kind: domain.KindValidation},
		{name: "insufficient restored stock", customerID: "c-1", items: []orders.ItemRequest{{ProductID: "p-1", Quantity: 6}}, kind: domain.KindValidation},
		{name: "zero quantity", customerID: "c-1", items: []orders.ItemRequest{{ProductID: "p-1", Quantity: 0}}, kind: domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, product("p-1", "10.00", 5))
			ctx := context.Background()

			created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
			require.NoError(t, err)

			orderID := tt.orderID
			if orderID == "" {
				orderID = created.ID
			}
			_, err = f.engine.UpdateOrder(ctx, orderID, tt.customerID, tt.items)
			require.Error(t, err)
			require.Equal(t, tt.kind, domain.KindOf(err), "unexpected error %v", err)

			require.Equal(t, 3, f.stock(t, "p-1"))
			stored, err := f.store.Orders().Get(ctx, created.ID)
			require.NoError(t, err)
			require.Len(t, stored.Items, 1)
			require.Equal(t, 2, stored.Items[0].Quantity)
		})
	}
}

func TestUpdateOrder_CanUseRestoredStock(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, "p-1"))

	_, err = f.engine.UpdateOrder(ctx, created.ID, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "p-1"))
}

func TestDeleteOrder_RestoresStock(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 7))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 5}})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "p-1"))

	require.NoError(t, f.engine.DeleteOrder(ctx, created.ID))
	require.Equal(t, 7, f.stock(t, "p-1"))

	_, err = f.store.Orders().Get(ctx, created.ID)
	require.True(t, domain.IsNotFound(err))

	err = f.engine.DeleteOrder(ctx, created.ID)
	require.True(t, domain.IsNotFound(err))
	require.True(t, errors.Is(err, domain.ErrOrderNotFound))

	events := f.store.Outbox().AllPending()
	require.Len(t, events, 2)
	require.Equal(t, string(domain.OrderEventDeleted), events[1].EventType)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))
	ctx := context.Background()

	_, err := f.engine.AdjustStock(ctx, "p-1", 0)
	require.True(t, errors.Is(err, domain.ErrStockAmountZero))
	require.True(t, domain.IsValidation(err))

	_, err = f.engine.AdjustStock(ctx, "p-1", -4)
	require.True(t, errors.Is(err, domain.ErrStockNegative))
	require.True(t, domain.IsValidation(err))
	require.Equal(t, 3, f.stock(t, "p-1"))

	updated, err := f.engine.AdjustStock(ctx, "p-1", 5)
	require.NoError(t, err)
	require.Equal(t, 8, updated.Stock)
	require.Equal(t, fixedNow, updated.UpdatedAt)

	updated, err = f.engine.AdjustStock(ctx, "p-1", -8)
	require.NoError(t, err)
	require.Equal(t, 0, updated.Stock)

	_, err = f.engine.AdjustStock(ctx, "p-404", 1)
	require.True(t, domain.IsNotFound(err))
}

// failingStore оборачивает memory.Store и ломает выбранный шаг транзакции.
type failingStore struct {
	inner     *memory.Store
	failOn    string
	cancel    context.CancelFunc
	hidden    string
	rollbacks atomic.Int32
	commits   atomic.Int32
}

func (s *failingStore) Begin(ctx context.Context) (domain.OrderTx, error) {
	if s.failOn == "begin" {
		return nil, errors.New("connection refused")
	}
	tx, err := s.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{OrderTx: tx, store: s}, nil
}

type failingTx struct {
	domain.OrderTx
	store *failingStore
}

var errInjected = errors.New("injected storage failure")

func (tx *failingTx) SaveOrder(ctx context.Context, order domain.Order) error {
	switch tx.store.failOn {
	case "save_order":
		return errInjected
	case "cancel":
		tx.store.cancel()
	}
	return tx.OrderTx.SaveOrder(ctx, order)
}

func (tx *failingTx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	locked, err := tx.OrderTx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	delete(locked, tx.store.hidden)
	return locked, nil
}

func (tx *failingTx) DeleteOrder(ctx context.Context, id string) error {
	if tx.store.failOn == "delete_order" {
		return errInjected
	}
	return tx.OrderTx.DeleteOrder(ctx, id)
}

func (tx *failingTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	if tx.store.failOn == "enqueue" {
		return errInjected
	}
	return tx.OrderTx.Enqueue(ctx, msg)
}

func (tx *failingTx) Commit() error {
	if tx.store.failOn == "commit" {
		_ = tx.OrderTx.Rollback()
		return errInjected
	}
	tx.store.commits.Add(1)
	return tx.OrderTx.Commit()
}

func (tx *failingTx) Rollback() error {
	tx.store.rollbacks.Add(1)
	return tx.OrderTx.Rollback()
}

func TestCreateOrder_StorageFailureRollsBack(t *testing.T) {
	for _, step := range []string{"begin", "save_order", "enqueue", "commit"} {
		t.Run(step, func(t *testing.T) {
			f := newFixture(t, product("p-1", "10.00", 3))
			store := &failingStore{inner: f.store, failOn: step}
			engine := newEngine(store, f.store)

			_, err := engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
			require.Error(t, err)
			require.Equal(t, domain.KindStorage, domain.KindOf(err))

			require.Equal(t, 3, f.stock(t, "p-1"))
			require.Zero(t, f.orderCount(t))
			require.Empty(t, f.store.Outbox().AllPending())
			require.Zero(t, store.commits.Load())

			// Хранилище не должно остаться заблокированным.
			_, err = f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
			require.NoError(t, err)
		})
	}
}

func TestDeleteOrder_StorageFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
	require.NoError(t, err)

	store := &failingStore{inner: f.store, failOn: "delete_order"}
	err = newEngine(store, f.store).DeleteOrder(ctx, created.ID)
	require.True(t, errors.Is(err, errInjected))
	require.Equal(t, int32(1), store.rollbacks.Load())

	require.Equal(t, 1, f.stock(t, "p-1"))
	_, err = f.store.Orders().Get(ctx, created.ID)
	require.NoError(t, err)
}

func TestUpdateOrder_StorageFailureKeepsOriginal(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 5), product("p-2", "1.00", 5))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
	require.NoError(t, err)

	store := &failingStore{inner: f.store, failOn: "save_order"}
	_, err = newEngine(store, f.store).UpdateOrder(ctx, created.ID, "c-1", []orders.ItemRequest{{ProductID: "p-2", Quantity: 5}})
	require.True(t, errors.Is(err, errInjected))

	require.Equal(t, 3, f.stock(t, "p-1"))
	require.Equal(t, 5, f.stock(t, "p-2"))
	stored, err := f.store.Orders().Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "p-1", stored.Items[0].ProductID)
}

func TestOrder_MissingExistingProductIsConflict(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 5), product("p-2", "1.00", 5))
	ctx := context.Background()

	created, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
	require.NoError(t, err)

	store := &failingStore{inner: f.store, hidden: "p-1"}
	engine := newEngine(store, f.store)

	_, err = engine.UpdateOrder(ctx, created.ID, "c-1", []orders.ItemRequest{{ProductID: "p-2", Quantity: 1}})
	require.True(t, domain.IsConflict(err), "update: %v", err)
	require.ErrorIs(t, err, domain.ErrReferencedProductMissing)

	err = engine.DeleteOrder(ctx, created.ID)
	require.True(t, domain.IsConflict(err), "delete: %v", err)
	require.ErrorIs(t, err, domain.ErrReferencedProductMissing)

	require.Zero(t, store.commits.Load())
	require.Equal(t, int32(2), store.rollbacks.Load())
	require.Equal(t, 3, f.stock(t, "p-1"))
	require.Equal(t, 5, f.stock(t, "p-2"))

	stored, err := f.store.Orders().Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, "p-1", stored.Items[0].ProductID)
}

func TestCreateOrder_CancellationBeforeCommitRollsBack(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &failingStore{inner: f.store, failOn: "cancel", cancel: cancel}
	_, err := newEngine(store, f.store).CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Zero(t, store.commits.Load())

	require.Equal(t, 3, f.stock(t, "p-1"))
	require.Zero(t, f.orderCount(t))
}

func TestCreateOrder_CanceledContext(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 3, f.stock(t, "p-1"))
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t, product("p-1", "10.00", 1))

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
			switch {
			case err == nil:
				succeeded.Add(1)
			case domain.IsValidation(err) || domain.IsConflict(err):
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), succeeded.Load())
	require.Equal(t, int32(workers-1), rejected.Load())
	require.Equal(t, 0, f.stock(t, "p-1"))
	require.Equal(t, 1, f.orderCount(t))
}

func TestStockNeverNegativeUnderMixedLoad(t *testing.T) {
	f := newFixture(t, product("p-1", "1.00", 10), product("p-2", "2.00", 10))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := f.engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{
				{ProductID: "p-1", Quantity: 1 + i%3},
				{ProductID: "p-2", Quantity: 1},
			})
			if err != nil {
				return
			}
			if i%2 == 0 {
				_ = f.engine.DeleteOrder(ctx, order.ID)
			}
		}(i)
	}
	wg.Wait()

	list, err := f.store.Orders().List(ctx, domain.OrderFilter{})
	require.NoError(t, err)

	reserved := map[string]int{}
	for _, order := range list {
		for _, item := range order.Items {
			reserved[item.ProductID] += item.Quantity
		}
	}
	for _, id := range []string{"p-1", "p-2"} {
		stock := f.stock(t, id)
		require.GreaterOrEqual(t, stock, 0)
		require.Equal(t, 10, stock+reserved[id], "stock conservation for %s", id)
	}
}
