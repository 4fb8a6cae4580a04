package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderEventType определяет тип события жизненного цикла заказа.
type OrderEventType string

const (
	OrderEventCreated OrderEventType = "order.created"
	OrderEventUpdated OrderEventType = "order.updated"
	OrderEventDeleted OrderEventType = "order.deleted"
)

// AggregateOrder — тип агрегата для outbox-сообщений заказов.
const AggregateOrder = "order"

// OrderEvent — полезная нагрузка outbox-события заказа.
type OrderEvent struct {
	EventType   OrderEventType   `json:"event_type"`
	OrderID     string           `json:"order_id"`
	CustomerID  string           `json:"customer_id"`
	TotalAmount string           `json:"total_amount"`
	Items       []OrderEventItem `json:"items,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// OrderEventItem описывает позицию заказа в событии.
type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// NewOrderOutboxMessage сериализует событие заказа в outbox-сообщение.
func NewOrderOutboxMessage(eventType OrderEventType, order Order, occurredAt time.Time) (OutboxMessage, error) {
	event := OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount.StringFixed(MoneyPlaces),
		OccurredAt:  occurredAt,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(MoneyPlaces),
			LineTotal: item.LineTotal.StringFixed(MoneyPlaces),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal order event: %w", err)
	}

	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
		CreatedAt:     occurredAt,
	}, nil
}
