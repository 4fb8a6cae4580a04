package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/cache"
	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const productListCacheKey = "products:list"

// StockAdjuster меняет остаток товара вне жизненного цикла заказов.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error)
}

// ProductInput — данные для создания и изменения товара. Stock учитывается только при создании.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// ProductService управляет карточками товаров.
type ProductService struct {
	repo     domain.ProductRepository
	adjuster StockAdjuster
	listing  *cache.Aside[[]domain.Product]
	now      func() time.Time
	newID    func() string
	logger   *log.Entry
}

// NewProductService создаёт сервис товаров. Корректировки остатка выполняет adjuster.
func NewProductService(repo domain.ProductRepository, adjuster StockAdjuster, options ...Option) *ProductService {
	opts := buildOptions("product-service", options)
	return &ProductService{
		repo:     repo,
		adjuster: adjuster,
		listing:  opts.ProductCache,
		now:      opts.Clock,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
}

// List возвращает товары от новых к старым.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	load := func(ctx context.Context) ([]domain.Product, error) {
		products, err := s.repo.List(ctx)
		if err != nil {
			return nil, domain.Storage("list products", err)
		}
		return products, nil
	}
	if s.listing == nil {
		return load(ctx)
	}
	return s.listing.Get(ctx, productListCacheKey, load)
}

func (s *ProductService) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	name, price, err := validateProduct(in)
	if err != nil {
		return domain.Product{}, err
	}
	if in.Stock < 0 {
		return domain.Product{}, domain.Validation(domain.ErrStockNegative, "stock cannot be negative")
	}

	now := s.now().UTC()
	product := domain.Product{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Product{}, domain.Storage("create product", err)
	}

	s.InvalidateListing(ctx)
	s.logger.WithField("product_id", product.ID).Info("product created")
	return product, nil
}

// Update меняет наименование, описание и цену. Цены в существующих заказах не меняются.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	name, price, err := validateProduct(in)
	if err != nil {
		return domain.Product{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	current.Name = name
	current.Description = strings.TrimSpace(in.Description)
	current.Price = price
	current.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, current); err != nil {
		return domain.Product{}, domain.Storage("update product", err)
	}

	s.InvalidateListing(ctx)
	return current, nil
}

// AdjustStock применяет ручную корректировку остатка.
func (s *ProductService) AdjustStock(ctx context.Context, id string, amount int) (domain.Product, error) {
	product, err := s.adjuster.AdjustStock(ctx, id, amount)
	if err != nil {
		return domain.Product{}, err
	}
	s.InvalidateListing(ctx)
	return product, nil
}

// Delete удаляет товар без истории заказов.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return domain.Storage("delete product", err)
	}
	s.InvalidateListing(ctx)
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// InvalidateListing сбрасывает кэш списка товаров. Нужен после любых изменений остатков.
func (s *ProductService) InvalidateListing(ctx context.Context) {
	if s.listing != nil {
		s.listing.Invalidate(ctx, productListCacheKey)
	}
}

func validateProduct(in ProductInput) (string, decimal.Decimal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", decimal.Zero, domain.Validation(domain.ErrNameRequired, "name is required")
	}
	price := domain.RoundMoney(in.Price)
	if !price.IsPositive() {
		return "", decimal.Zero, domain.Validation(domain.ErrPriceInvalid, "price must be greater than zero")
	}
	return name, price, nil
}
