// Package httpapi публикует HTTP API продаж поверх gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/service/auth"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
	"github.com/vladislavdragonenkov/sales/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
)

// OrderService — операции над заказами, выполняемые в одной транзакции.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, items []orders.ItemRequest) (domain.Order, error)
	UpdateOrder(ctx context.Context, orderID, customerID string, items []orders.ItemRequest) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// Dependencies — сервисы, которые обслуживает HTTP API.
type Dependencies struct {
	Auth        *auth.Service
	Customers   *catalog.CustomerService
	Products    *catalog.ProductService
	Orders      OrderService
	OrderReader domain.OrderReader
	// Idempotency включает обработку заголовка Idempotency-Key для создания заказов.
	Idempotency *idempotency.Guard
	Metrics     *metrics.HTTPMetrics
	Logger      *log.Entry
	CORSOrigins []string
}

// Server держит зависимости обработчиков.
type Server struct {
	deps   Dependencies
	logger *log.Entry
}

// NewServer создаёт HTTP API.
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{deps: deps, logger: logger}
}

// Handler возвращает gin-роутер со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	return s.Router()
}

// Router собирает маршруты API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		s.recovery(),
		s.accessLog(),
		observe(s.deps.Metrics),
		cors(s.deps.CORSOrigins),
	)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	adminOnly := []gin.HandlerFunc{s.authenticate(), requireRole(domain.RoleAdmin)}

	customers := api.Group("/customers", adminOnly...)
	customers.GET("", s.listCustomers)
	customers.GET("/:id", s.getCustomer)
	customers.POST("", s.createCustomer)
	customers.PUT("/:id", s.updateCustomer)

	api.GET("/products", s.listProducts)
	products := api.Group("/products", adminOnly...)
	products.POST("", s.createProduct)
	products.PUT("/:id", s.updateProduct)
	products.PUT("/:id/stock", s.adjustStock)
	products.DELETE("/:id", s.deleteProduct)

	ordersGroup := api.Group("/orders", s.authenticate())
	ordersGroup.GET("", s.listOrders)
	ordersGroup.GET("/:id", s.getOrder)
	ordersGroup.POST("", requireRole(domain.RoleAdmin), s.idempotent(), s.createOrder)
	ordersGroup.PUT("/:id", requireRole(domain.RoleAdmin), s.updateOrder)
	ordersGroup.DELETE("/:id", requireRole(domain.RoleAdmin), s.deleteOrder)

	return router
}
