package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// orderReader собирает заказы с проекциями клиента и товаров.
type orderReader struct {
	store *Store
}

func (r *orderReader) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
	}
	return r.projectLocked(order), nil
}

func (r *orderReader) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	email := domain.NormalizeEmail(filter.CustomerEmail)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		projected := r.projectLocked(order)
		if email != "" && projected.CustomerEmail != email {
			continue
		}
		result = append(result, projected)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *orderReader) projectLocked(order domain.Order) domain.Order {
	order = order.Clone()
	if customer, ok := r.store.customers[order.CustomerID]; ok {
		order.CustomerName = customer.FullName
		order.CustomerEmail = customer.Email
	}
	for i := range order.Items {
		if product, ok := r.store.products[order.Items[i].ProductID]; ok {
			order.Items[i].ProductName = product.Name
		}
	}
	return order
}

var _ domain.OrderReader = (*orderReader)(nil)
