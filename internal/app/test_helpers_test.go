package app

import (
	"net"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
)

func listenLocal() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}

func catalogCustomer(email string) catalog.CustomerInput {
	return catalog.CustomerInput{FullName: "Test Customer", Email: email}
}

func catalogProduct(name, price string, stock int) catalog.ProductInput {
	return catalog.ProductInput{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func orderItem(productID string, qty int) []orders.ItemRequest {
	return []orders.ItemRequest{{ProductID: productID, Quantity: qty}}
}
