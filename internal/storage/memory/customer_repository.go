package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type customerRepository struct {
	store *Store
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.emailTakenLocked(customer.Email, "") {
		return domain.Conflict(domain.ErrEmailTaken, "customer with email %s already exists", customer.Email)
	}
	if _, exists := r.store.customers[customer.ID]; exists {
		return domain.Conflict(domain.ErrWriteConflict, "customer %s already exists", customer.ID)
	}
	r.store.customers[customer.ID] = customer
	return nil
}

func (r *customerRepository) Update(ctx context.Context, customer domain.Customer) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.customers[customer.ID]
	if !ok {
		return domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", customer.ID)
	}
	if r.emailTakenLocked(customer.Email, customer.ID) {
		return domain.Conflict(domain.ErrEmailTaken, "customer with email %s already exists", customer.Email)
	}
	customer.CreatedAt = current.CreatedAt
	r.store.customers[customer.ID] = customer
	return nil
}

func (r *customerRepository) Get(_ context.Context, id string) (domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", id)
	}
	return customer, nil
}

func (r *customerRepository) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	email = domain.NormalizeEmail(email)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, customer := range r.store.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return domain.Customer{}, domain.NotFound(domain.ErrCustomerNotFound, "customer with email %s not found", email)
}

func (r *customerRepository) List(_ context.Context) ([]domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Customer, 0, len(r.store.customers))
	for _, customer := range r.store.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FullName != result[j].FullName {
			return result[i].FullName < result[j].FullName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *customerRepository) emailTakenLocked(email, exceptID string) bool {
	for id, existing := range r.store.customers {
		if id != exceptID && existing.Email == email {
			return true
		}
	}
	return false
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
