package memory

import (
	"context"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return domain.Conflict(domain.ErrEmailTaken, "email already registered")
		}
	}
	r.store.users[user.ID] = user
	return nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, user := range r.store.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.NotFound(domain.ErrUserNotFound, "user %s not found", email)
}

var _ domain.UserRepository = (*userRepository)(nil)
