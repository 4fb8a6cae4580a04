package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
)

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.deps.Products.List(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	resp := make([]productResponse, 0, len(products))
	for _, product := range products {
		resp = append(resp, toProductResponse(product))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createProduct(c *gin.Context) {
	var req createProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := s.deps.Products.Create(c.Request.Context(), catalog.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Location", "/api/products/"+product.ID)
	c.JSON(http.StatusCreated, toProductResponse(product))
}

func (s *Server) updateProduct(c *gin.Context) {
	var req updateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := s.deps.Products.Update(c.Request.Context(), c.Param("id"), catalog.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) adjustStock(c *gin.Context) {
	var req stockRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := s.deps.Products.AdjustStock(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.deps.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
