package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type orderReader struct {
	db *sql.DB
}

const orderSelect = `
	SELECT o.id, o.customer_id, c.full_name, c.email, o.total_amount, o.created_at, o.updated_at
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
`

func scanOrderHeader(row scanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, err
}

func (r *orderReader) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrderHeader(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
		}
		return domain.Order{}, classify("get order", err)
	}

	items, err := loadItems(ctx, r.db, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[id]
	return order, nil
}

func (r *orderReader) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := orderSelect
	var args []any
	if email := domain.NormalizeEmail(filter.CustomerEmail); email != "" {
		query += ` WHERE c.email = $1`
		args = append(args, email)
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list orders", err)
	}
	defer rows.Close()

	var (
		result []domain.Order
		ids    []string
	)
	for rows.Next() {
		order, err := scanOrderHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	items, err := loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Items = items[result[i].ID]
	}
	return result, nil
}

var _ domain.OrderReader = (*orderReader)(nil)
