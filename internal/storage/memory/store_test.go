package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Customers().Create(ctx, domain.Customer{
		ID: "c-1", FullName: "Demo Customer", Email: "customer@sales.local", CreatedAt: now,
	}))
	require.NoError(t, store.Products().Create(ctx, domain.Product{
		ID: "p-1", Name: "Sample Laptop", Price: decimal.NewFromInt(1200), Stock: 5, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Products().Create(ctx, domain.Product{
		ID: "p-2", Name: "Sample Phone", Price: decimal.NewFromInt(650), Stock: 10, CreatedAt: now.Add(time.Minute), UpdatedAt: now,
	}))
	return store
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "o-1",
		CustomerID:  "c-1",
		TotalAmount: decimal.NewFromInt(1200),
		CreatedAt:   time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		Items: []domain.OrderItem{
			{ID: "i-1", ProductID: "p-1", Quantity: 1, UnitPrice: decimal.NewFromInt(1200), LineTotal: decimal.NewFromInt(1200)},
		},
	}
}

func TestStore_CommitPublishesChanges(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	products, err := tx.LockProducts(ctx, []string{"p-1", "missing"})
	require.NoError(t, err)
	require.Len(t, products, 1)

	laptop := products["p-1"]
	laptop.Stock--
	require.NoError(t, tx.SaveProducts(ctx, []domain.Product{laptop}))
	require.NoError(t, tx.SaveOrder(ctx, sampleOrder()))
	require.NoError(t, tx.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "o-1", EventType: "order.created"}))

	// До Commit изменения не видны читателям.
	_, err = store.Orders().Get(ctx, "o-1")
	require.True(t, domain.IsNotFound(err))
	require.Empty(t, store.Outbox().AllPending())

	staged, err := tx.LockProducts(ctx, []string{"p-1"})
	require.NoError(t, err)
	require.Equal(t, 4, staged["p-1"].Stock)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	order, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, "Demo Customer", order.CustomerName)
	require.Equal(t, "customer@sales.local", order.CustomerEmail)
	require.Equal(t, "Sample Laptop", order.Items[0].ProductName)

	product, err := store.Products().Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, 4, product.Stock)
	require.Len(t, store.Outbox().AllPending(), 1)
}

func TestStore_RollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveOrder(ctx, sampleOrder()))
	require.NoError(t, tx.SaveProducts(ctx, []domain.Product{{ID: "p-1", Name: "Sample Laptop", Stock: 0}}))
	require.NoError(t, tx.Rollback())

	_, err = store.Orders().Get(ctx, "o-1")
	require.True(t, domain.IsNotFound(err))

	product, err := store.Products().Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, 5, product.Stock)

	require.Error(t, tx.Commit())
}

func TestStore_BeginWaitsForActiveTransaction(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Begin(waitCtx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = store.Products().AdjustStock(waitCtx, "p-1", 1, time.Now())
	require.Error(t, err)

	require.NoError(t, tx.Rollback())

	next, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, next.Rollback())
}

func TestStore_DeleteOrderInsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveOrder(ctx, sampleOrder()))
	require.NoError(t, tx.Commit())

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteOrder(ctx, "o-1"))
	_, err = tx.GetOrder(ctx, "o-1")
	require.True(t, errors.Is(err, domain.ErrOrderNotFound))
	require.NoError(t, tx.Commit())

	_, err = store.Orders().Get(ctx, "o-1")
	require.True(t, domain.IsNotFound(err))
}

func TestStore_SaveProductsRejectsNegativeStock(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	err = tx.SaveProducts(ctx, []domain.Product{{ID: "p-1", Stock: -1}})
	require.True(t, domain.IsConflict(err))
}

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	repo := store.Customers()

	err := repo.Create(ctx, domain.Customer{ID: "c-2", FullName: "Another", Email: "customer@sales.local"})
	require.True(t, errors.Is(err, domain.ErrEmailTaken))
	require.True(t, domain.IsConflict(err))

	require.NoError(t, repo.Create(ctx, domain.Customer{ID: "c-2", FullName: "Alice", Email: "alice@sales.local"}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Alice", list[0].FullName)

	found, err := repo.GetByEmail(ctx, "  ALICE@sales.local ")
	require.NoError(t, err)
	require.Equal(t, "c-2", found.ID)

	err = repo.Update(ctx, domain.Customer{ID: "c-2", FullName: "Alice", Email: "customer@sales.local"})
	require.True(t, domain.IsConflict(err))

	err = repo.Update(ctx, domain.Customer{ID: "missing", FullName: "Ghost", Email: "ghost@sales.local"})
	require.True(t, domain.IsNotFound(err))
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	repo := store.Products()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"p-2", "p-1"}, []string{list[0].ID, list[1].ID})

	require.NoError(t, repo.Update(ctx, domain.Product{ID: "p-1", Name: "Laptop Pro", Price: decimal.NewFromInt(1300)}))
	updated, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, "Laptop Pro", updated.Name)
	require.Equal(t, 5, updated.Stock)

	_, err = repo.AdjustStock(ctx, "p-1", -6, time.Now())
	require.True(t, errors.Is(err, domain.ErrStockNegative))

	adjusted, err := repo.AdjustStock(ctx, "p-1", -5, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, adjusted.Stock)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveOrder(ctx, sampleOrder()))
	require.NoError(t, tx.Commit())

	require.True(t, errors.Is(repo.Delete(ctx, "p-1"), domain.ErrProductInUse))
	require.NoError(t, repo.Delete(ctx, "p-2"))
	require.True(t, domain.IsNotFound(repo.Delete(ctx, "p-2")))
}

func TestOrderReader_ListFiltersByEmail(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	require.NoError(t, store.Customers().Create(ctx, domain.Customer{ID: "c-2", FullName: "Bob", Email: "bob@sales.local"}))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	first := sampleOrder()
	second := sampleOrder()
	second.ID = "o-2"
	second.CustomerID = "c-2"
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, tx.SaveOrder(ctx, first))
	require.NoError(t, tx.SaveOrder(ctx, second))
	require.NoError(t, tx.Commit())

	all, err := store.Orders().List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "o-2", all[0].ID)

	filtered, err := store.Orders().List(ctx, domain.OrderFilter{CustomerEmail: "BOB@sales.local"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "o-2", filtered[0].ID)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := store.Users()

	require.NoError(t, repo.Create(ctx, domain.User{ID: "u-1", Email: "admin@sales.local", Role: domain.RoleAdmin}))
	require.True(t, domain.IsConflict(repo.Create(ctx, domain.User{ID: "u-2", Email: "admin@sales.local"})))

	user, err := repo.GetByEmail(ctx, "Admin@Sales.Local")
	require.NoError(t, err)
	require.Equal(t, "u-1", user.ID)

	_, err = repo.GetByEmail(ctx, "nobody@sales.local")
	require.True(t, domain.IsNotFound(err))
}
