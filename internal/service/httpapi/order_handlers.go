package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
)

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.deps.OrderReader.List(c.Request.Context(), domain.OrderFilter{
		CustomerEmail: domain.NormalizeEmail(c.Query("customerEmail")),
	})
	if err != nil {
		s.abortWithError(c, domain.Storage("list orders", err))
		return
	}
	resp := make([]orderResponse, 0, len(list))
	for _, order := range list {
		resp = append(resp, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.deps.OrderReader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, domain.Storage("get order", err))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) createOrder(c *gin.Context) {
	var req orderRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	created, err := s.deps.Orders.CreateOrder(ctx, req.CustomerID, itemRequests(req.Items))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.deps.Products.InvalidateListing(ctx)

	s.respondWithOrder(c, http.StatusCreated, created.ID)
}

func (s *Server) updateOrder(c *gin.Context) {
	var req orderRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	updated, err := s.deps.Orders.UpdateOrder(ctx, c.Param("id"), req.CustomerID, itemRequests(req.Items))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.deps.Products.InvalidateListing(ctx)

	s.respondWithOrder(c, http.StatusOK, updated.ID)
}

func (s *Server) deleteOrder(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.deps.Orders.DeleteOrder(ctx, c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.deps.Products.InvalidateListing(ctx)
	c.Status(http.StatusNoContent)
}

// respondWithOrder перечитывает заказ, чтобы отдать имена клиента и товаров.
func (s *Server) respondWithOrder(c *gin.Context, status int, id string) {
	order, err := s.deps.OrderReader.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, domain.Storage("load order", err))
		return
	}
	if status == http.StatusCreated {
		c.Header("Location", "/api/orders/"+order.ID)
	}
	c.JSON(status, toOrderResponse(order))
}

func itemRequests(items []orderItemRequest) []orders.ItemRequest {
	out := make([]orders.ItemRequest, 0, len(items))
	for _, item := range items {
		out = append(out, orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}
