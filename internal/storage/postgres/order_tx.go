package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// orderTx — транзакция движка заказов поверх *sql.Tx.
type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return getCustomer(ctx, t.tx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id, func() error {
		return domain.NotFound(domain.ErrCustomerNotFound, "customer %s not found", id)
	})
}

// LockProducts берёт построчные блокировки в порядке id, чтобы параллельные заказы не взаимоблокировались.
func (t *orderTx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, classify("lock products", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate locked products", err)
	}

	return result, nil
}

func (t *orderTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, customer_id, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&order.ID, &order.CustomerID, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
		}
		return domain.Order{}, classify("get order", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	items, err := loadItems(ctx, t.tx, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[id]
	return order, nil
}

func (t *orderTx) SaveOrder(ctx context.Context, order domain.Order) error {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    total_amount = EXCLUDED.total_amount,
		    updated_at = EXCLUDED.updated_at
	`, order.ID, order.CustomerID, order.TotalAmount, order.CreatedAt, order.UpdatedAt); err != nil {
		return classify("save order", err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return classify("delete order items", err)
	}

	for _, item := range order.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, position, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.Position, item.Quantity, item.UnitPrice, item.LineTotal); err != nil {
			return classify("insert order item", err)
		}
	}

	return nil
}

func (t *orderTx) SaveProducts(ctx context.Context, products []domain.Product) error {
	for _, product := range products {
		res, err := t.tx.ExecContext(ctx, `
			UPDATE products
			SET stock = $2,
			    updated_at = $3
			WHERE id = $1
		`, product.ID, product.Stock, product.UpdatedAt)
		if err != nil {
			return classify("update product stock", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for product %s: %w", product.ID, err)
		}
		if affected == 0 {
			return domain.Conflict(domain.ErrReferencedProductMissing, "product %s was removed concurrently", product.ID)
		}
	}
	return nil
}

func (t *orderTx) DeleteOrder(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return classify("delete order items", err)
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return classify("delete order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %s: %w", id, err)
	}
	if affected == 0 {
		return domain.NotFound(domain.ErrOrderNotFound, "order %s not found", id)
	}
	return nil
}

func (t *orderTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	return insertOutbox(ctx, t.tx, msg)
}

func (t *orderTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (t *orderTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, q querier, msg domain.OutboxMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, createdAt); err != nil {
		return classify("enqueue outbox message", err)
	}
	return nil
}
