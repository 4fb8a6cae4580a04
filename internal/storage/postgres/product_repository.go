package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, product.ID, product.Name, product.Description, product.Price, product.Stock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return classify("insert product", err)
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price = $4,
		    updated_at = $5
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Price, product.UpdatedAt)
	if err != nil {
		return classify("update product", err)
	}
	return expectOneRow(res, func() error {
		return domain.NotFound(domain.ErrProductNotFound, "product %s not found", product.ID)
	})
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFound(domain.ErrProductNotFound, "product %s not found", id)
		}
		return domain.Product{}, classify("get product", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if sqlState(err) == sqlStateForeignKeyViolation {
			return domain.Conflict(domain.ErrProductInUse, "cannot delete a product that has order history")
		}
		return classify("delete product", err)
	}
	return expectOneRow(res, func() error {
		return domain.NotFound(domain.ErrProductNotFound, "product %s not found", id)
	})
}

// AdjustStock применяет delta одним UPDATE; условие в WHERE не даёт остатку уйти в минус.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+productColumns,
		id, delta, at,
	))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, classify("adjust stock", err)
	}

	// Строка не обновлена: либо товара нет, либо остаток ушёл бы в минус.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return domain.Product{}, getErr
	}
	return domain.Product{}, domain.Validation(domain.ErrStockNegative, "stock cannot drop below zero")
}

func expectOneRow(res sql.Result, missing func() error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return missing()
	}
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
