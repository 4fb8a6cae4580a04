package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        string
	ProductID string
	// ProductName — проекция наименования товара, заполняется при чтении.
	ProductName string
	Quantity    int
	// UnitPrice фиксируется в момент создания/изменения заказа и не зависит от последующих изменений цены.
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// Position сохраняет порядок позиций в запросе.
	Position int
}

// Order агрегирует заказ клиента и его позиции.
type Order struct {
	ID         string
	CustomerID string
	// CustomerName и CustomerEmail — проекции клиента, заполняются при чтении.
	CustomerName  string
	CustomerEmail string
	TotalAmount   decimal.Decimal
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductIDs возвращает уникальные идентификаторы товаров в порядке первого появления.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ValidateInvariants проверяет денежные инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, fmt.Errorf("customer_id is required"))
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if want := LineTotal(item.UnitPrice, item.Quantity); !item.LineTotal.Equal(want) {
			errs = append(errs, fmt.Errorf("item %s line total %s, expected %s", item.ID, item.LineTotal, want))
		}
	}

	if want := SumLineTotals(o.Items); !o.TotalAmount.Equal(want) {
		errs = append(errs, fmt.Errorf("order total %s does not match items sum %s", o.TotalAmount, want))
	}

	return errs
}

// Clone возвращает копию заказа с независимым срезом позиций.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}
