package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/application/cart"
	"github.com/storefront/gateway/internal/application/identity"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// CartHandler handles cart HTTP requests. The cart GID arrives URL-encoded
// in the :id path parameter; the router runs with UseRawPath so the encoded
// slashes survive route matching.
type CartHandler struct {
	BaseHandler
	cartService *cart.Service
	tokens      identity.TokenSource
}

// NewCartHandler creates a new cart handler. tokens freshens the Shopify
// customer token on the optional-auth routes; nil disables that and every
// request behaves anonymously.
func NewCartHandler(cartService *cart.Service, tokens identity.TokenSource) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		tokens:      tokens,
	}
}

// customerToken returns a fresh Shopify customer token for the session on
// this request, or "" for anonymous callers.
func (h *CartHandler) customerToken(c *gin.Context) (string, error) {
	session := currentSession(c)
	if session == nil || h.tokens == nil {
		return "", nil
	}
	return h.tokens.EnsureFreshToken(c.Request.Context(), session)
}

// CreateCart creates a cart, optionally with initial lines and a buyer email.
// POST /api/v1/carts
func (h *CartHandler) CreateCart(c *gin.Context) {
	var req CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := cart.CreateCartInput{
		Note:        req.Note,
		Email:       req.Email,
		CountryCode: req.CountryCode,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, cart.LineInput{
			MerchandiseID: line.MerchandiseID,
			Quantity:      line.Quantity,
		})
	}

	created, err := h.cartService.CreateCart(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newCartResponse(created, requestLocale(c)))
}

// GetCart returns the cart by its GID.
// GET /api/v1/carts/:id
func (h *CartHandler) GetCart(c *gin.Context) {
	found, err := h.cartService.GetCart(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(found, requestLocale(c)))
}

// AddLines adds variants to the cart.
// POST /api/v1/carts/:id/lines
func (h *CartHandler) AddLines(c *gin.Context) {
	var req AddLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := cart.AddLinesInput{CartID: c.Param("id")}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, storefront.CartLineInput{
			MerchandiseID: line.MerchandiseID,
			Quantity:      line.Quantity,
		})
	}

	updated, err := h.cartService.AddLines(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(updated, requestLocale(c)))
}

// UpdateLines changes line quantities; a quantity of zero removes the line.
// PUT /api/v1/carts/:id/lines
func (h *CartHandler) UpdateLines(c *gin.Context) {
	var req UpdateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := cart.UpdateLinesInput{CartID: c.Param("id")}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, storefront.CartLineUpdate{
			LineID:   line.LineID,
			Quantity: *line.Quantity,
		})
	}

	updated, err := h.cartService.UpdateLines(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(updated, requestLocale(c)))
}

// RemoveLines removes lines from the cart.
// DELETE /api/v1/carts/:id/lines
func (h *CartHandler) RemoveLines(c *gin.Context) {
	var req RemoveLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	updated, err := h.cartService.RemoveLines(c.Request.Context(), cart.RemoveLinesInput{
		CartID:  c.Param("id"),
		LineIDs: req.LineIDs,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(updated, requestLocale(c)))
}

// UpdateDiscountCodes replaces the cart's discount codes.
// PUT /api/v1/carts/:id/discount-codes
func (h *CartHandler) UpdateDiscountCodes(c *gin.Context) {
	var req UpdateDiscountCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	updated, err := h.cartService.UpdateDiscountCodes(c.Request.Context(), cart.UpdateDiscountCodesInput{
		CartID: c.Param("id"),
		Codes:  req.DiscountCodes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(updated, requestLocale(c)))
}

// UpdateBuyerIdentity updates the cart's buyer identity. Authenticated
// callers get the cart bound to their customer account so checkout starts
// logged in.
// PUT /api/v1/carts/:id/buyer-identity
func (h *CartHandler) UpdateBuyerIdentity(c *gin.Context) {
	var req UpdateBuyerIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	token, err := h.customerToken(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	updated, err := h.cartService.UpdateBuyerIdentity(c.Request.Context(), cart.UpdateBuyerIdentityInput{
		CartID:              c.Param("id"),
		Email:               req.Email,
		CountryCode:         req.CountryCode,
		CustomerAccessToken: token,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCartResponse(updated, requestLocale(c)))
}

// GetCheckoutURL returns the cart's web checkout URL. Authenticated callers
// get the buyer identity attached first so the checkout opens logged in.
// GET /api/v1/carts/:id/checkout-url
func (h *CartHandler) GetCheckoutURL(c *gin.Context) {
	token, err := h.customerToken(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	checkoutURL, err := h.cartService.CheckoutURL(c.Request.Context(), cart.CheckoutURLInput{
		CartID:              c.Param("id"),
		CustomerAccessToken: token,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CheckoutURLResponse{CheckoutURL: checkoutURL})
}
