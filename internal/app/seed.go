package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/auth"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
)

const (
	demoAdminEmail    = "admin@sales.local"
	demoAdminPassword = "Admin@12345"
)

// seedDemo заполняет пустое хранилище демонстрационными данными. Повторный запуск ничего не меняет.
func seedDemo(ctx context.Context, authService *auth.Service, customers *catalog.CustomerService, products *catalog.ProductService, logger *log.Entry) error {
	_, err := authService.Register(ctx, auth.RegisterInput{
		FullName: "Administrator",
		Email:    demoAdminEmail,
		Password: demoAdminPassword,
	})
	switch {
	case err == nil:
		logger.WithField("email", demoAdminEmail).Info("demo admin created")
	case domain.IsConflict(err):
	default:
		return fmt.Errorf("seed admin: %w", err)
	}

	existingProducts, err := products.List(ctx)
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if len(existingProducts) == 0 {
		for _, in := range []catalog.ProductInput{
			{Name: "Sample Laptop", Description: "Demo product", Price: decimal.NewFromInt(1200), Stock: 5},
			{Name: "Sample Phone", Description: "Demo product", Price: decimal.NewFromInt(650), Stock: 10},
		} {
			if _, err := products.Create(ctx, in); err != nil {
				return fmt.Errorf("seed product %s: %w", in.Name, err)
			}
		}
		logger.Info("demo products created")
	}

	existingCustomers, err := customers.List(ctx)
	if err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	if len(existingCustomers) == 0 {
		if _, err := customers.Create(ctx, catalog.CustomerInput{
			FullName: "Demo Customer",
			Email:    "customer@sales.local",
		}); err != nil {
			return fmt.Errorf("seed customer: %w", err)
		}
		logger.Info("demo customer created")
	}
	return nil
}
