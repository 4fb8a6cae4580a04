package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, customer.ID, customer.FullName, customer.Email, customer.Phone, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.ErrEmailTaken, "customer with email %s already exists", customer.Email)
		}
		return classify("insert customer", err)
	}
	return nil
}

func (r *customerRepository) Update(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET full_name = $2,
		    email = $3,
		    phone = $4
		WHERE id = $1
	`, customer.ID, customer.FullName, customer.Email, customer.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.ErrEmailTaken, "customer with email %s already exists", customer.Email)
		}
		return classify("update customer", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for customer: %w", err)
	}
	if affected == 0 {
		return domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", customer.ID)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return getCustomer(ctx, r.db, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id, func() error {
		return domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", id)
	})
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	email = domain.NormalizeEmail(email)
	return getCustomer(ctx, r.db, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email, func() error {
		return domain.NotFound(domain.ErrCustomerNotFound, "customer with email %s not found", email)
	})
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY full_name, id`)
	if err != nil {
		return nil, classify("list customers", err)
	}
	defer rows.Close()

	var result []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		result = append(result, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return result, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
