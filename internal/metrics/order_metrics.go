package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// OrderMetrics содержит метрики движка заказов.
type OrderMetrics struct {
	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	orderAmount      prometheus.Histogram
	stockAdjustments *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном registerer (изолированные реестры в тестах).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		operations: counterVec(registerer, prometheus.CounterOpts{
			Name: "sales_order_operations_total",
			Help: "Total number of order engine operations grouped by operation and result",
		}, []string{"operation", "result"}),
		duration: histogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sales_order_operation_duration_seconds",
			Help:    "Duration of order engine operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		orderAmount: histogram(registerer, prometheus.HistogramOpts{
			Name:    "sales_order_total_amount",
			Help:    "Total amount of created and updated orders",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
		}),
		stockAdjustments: counterVec(registerer, prometheus.CounterOpts{
			Name: "sales_stock_adjustment_units_total",
			Help: "Units moved by manual stock adjustments grouped by direction",
		}, []string{"direction"}),
		inFlight: gauge(registerer, prometheus.GaugeOpts{
			Name: "sales_order_transactions_in_flight",
			Help: "Number of order transactions currently in progress",
		}),
	}
}

// Track отмечает начало операции и возвращает функцию завершения, принимающую результат.
func (m *OrderMetrics) Track(operation string) func(result string) {
	if m == nil {
		return func(string) {}
	}

	start := time.Now()
	m.inFlight.Inc()
	return func(result string) {
		m.inFlight.Dec()
		m.operations.WithLabelValues(operation, result).Inc()
		m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// ObserveOrderAmount записывает итоговую сумму заказа.
func (m *OrderMetrics) ObserveOrderAmount(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.orderAmount.Observe(amount.InexactFloat64())
}

// RecordStockAdjustment учитывает ручную корректировку остатка.
func (m *OrderMetrics) RecordStockAdjustment(delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta > 0 {
		m.stockAdjustments.WithLabelValues("in").Add(float64(delta))
		return
	}
	m.stockAdjustments.WithLabelValues("out").Add(float64(-delta))
}
