package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type productRepository struct {
	store *Store
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return domain.Conflict(domain.ErrWriteConflict, "product %s already exists", product.ID)
	}
	r.store.products[product.ID] = product
	return nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[product.ID]
	if !ok {
		return domain.NotFound(domain.ErrProductNotFound, "product %s not found", product.ID)
	}
	current.Name = product.Name
	current.Description = product.Description
	current.Price = product.Price
	current.UpdatedAt = product.UpdatedAt
	r.store.products[product.ID] = current
	return nil
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.NotFound(domain.ErrProductNotFound, "product %s not found", id)
	}
	return product, nil
}

func (r *productRepository) List(_ context.Context) ([]domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return domain.NotFound(domain.ErrProductNotFound, "product %s not found", id)
	}
	for _, order := range r.store.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				return domain.Conflict(domain.ErrProductInUse, "cannot delete a product that has order history")
			}
		}
	}
	delete(r.store.products, id)
	return nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (domain.Product, error) {
	if err := r.store.acquire(ctx); err != nil {
		return domain.Product{}, err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.NotFound(domain.ErrProductNotFound, "product %s not found", id)
	}
	if product.Stock+delta < 0 {
		return domain.Product{}, domain.Validation(domain.ErrStockNegative, "stock cannot drop below zero")
	}
	product.Stock += delta
	product.UpdatedAt = at
	r.store.products[id] = product
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
