package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
)

// listCustomers возвращает всех клиентов или одного клиента по ?email=.
func (s *Server) listCustomers(c *gin.Context) {
	ctx := c.Request.Context()

	if email := strings.TrimSpace(c.Query("email")); email != "" {
		customer, err := s.deps.Customers.GetByEmail(ctx, email)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCustomerResponse(customer))
		return
	}

	customers, err := s.deps.Customers.List(ctx)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	resp := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		resp = append(resp, toCustomerResponse(customer))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getCustomer(c *gin.Context) {
	customer, err := s.deps.Customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

func (s *Server) createCustomer(c *gin.Context) {
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := s.deps.Customers.Create(c.Request.Context(), customerInput(req))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Location", "/api/customers/"+customer.ID)
	c.JSON(http.StatusCreated, toCustomerResponse(customer))
}

func (s *Server) updateCustomer(c *gin.Context) {
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := s.deps.Customers.Update(c.Request.Context(), c.Param("id"), customerInput(req))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

func customerInput(req customerRequest) catalog.CustomerInput {
	return catalog.CustomerInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.PhoneNumber,
	}
}
