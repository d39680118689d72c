package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/application/catalog"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// CatalogHandler handles public catalog HTTP requests
type CatalogHandler struct {
	BaseHandler
	catalogService *catalog.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// ListProducts lists or searches products with cursor pagination.
// GET /api/v1/products?query=&first=&after=&sort=&reverse=
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var query ListProductsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.catalogService.ListProducts(c.Request.Context(), catalog.ListProductsInput{
		Query: query.Query,
		First: query.First,
		After: query.After,
		// Sort keys are uppercase on the Shopify side; accept either case.
		Sort:    strings.ToUpper(query.Sort),
		Reverse: query.Reverse,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	loc := requestLocale(c)
	h.SuccessWithPage(c,
		newProductResponses(page.Products, loc),
		len(page.Products),
		page.PageInfo.HasNextPage,
		page.PageInfo.EndCursor,
	)
}

// GetProduct returns one product by its handle.
// GET /api/v1/products/:handle
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newProductResponse(product, requestLocale(c)))
}

// GetRecommendations returns products related to the given product.
// GET /api/v1/products/:handle/recommendations
func (h *CatalogHandler) GetRecommendations(c *gin.Context) {
	related, err := h.catalogService.Recommendations(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newProductResponses(related, requestLocale(c)))
}

// ListCollections lists collections without expanding their products.
// GET /api/v1/collections?first=&after=
func (h *CatalogHandler) ListCollections(c *gin.Context) {
	var query ListCollectionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.catalogService.ListCollections(c.Request.Context(), catalog.ListCollectionsInput{
		First: query.First,
		After: query.After,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	loc := requestLocale(c)
	h.SuccessWithPage(c,
		newCollectionResponses(page.Collections, loc),
		len(page.Collections),
		page.PageInfo.HasNextPage,
		page.PageInfo.EndCursor,
	)
}

// GetCollection returns one collection together with a page of its products.
// GET /api/v1/collections/:handle?first=&after=
func (h *CatalogHandler) GetCollection(c *gin.Context) {
	var query GetCollectionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	collection, err := h.catalogService.GetCollection(c.Request.Context(), catalog.GetCollectionInput{
		Handle: c.Param("handle"),
		First:  query.First,
		After:  query.After,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCollectionResponse(collection, requestLocale(c), true))
}
