package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/application/identity"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// AccountHandler handles the authenticated customer's account requests
type AccountHandler struct {
	BaseHandler
	accountService *identity.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *identity.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// GetProfile returns the customer's profile.
// GET /api/v1/account/profile
func (h *AccountHandler) GetProfile(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	profile, err := h.accountService.Profile(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCustomerResponse(profile))
}

// ListOrders returns one page of the customer's order history, newest first.
// GET /api/v1/account/orders?first=&after=
func (h *AccountHandler) ListOrders(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	var query OrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.accountService.Orders(c.Request.Context(), session, identity.OrdersInput{
		First: query.First,
		After: query.After,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithPage(c,
		newOrderResponses(page.Orders, requestLocale(c)),
		len(page.Orders),
		page.PageInfo.HasNextPage,
		page.PageInfo.EndCursor,
	)
}

// GetOrder returns one of the customer's orders by its GID. The GID arrives
// URL-encoded in the :id parameter.
// GET /api/v1/account/orders/:id
func (h *AccountHandler) GetOrder(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	order, err := h.accountService.Order(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newOrderResponse(order, requestLocale(c)))
}
