package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/application/identity"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/interfaces/http/dto"
)

const testOrderGID = "gid://shopify/Order/1001"

func testOrder() storefront.Order {
	return storefront.Order{
		ID:                testOrderGID,
		Name:              "#1001",
		Number:            1001,
		ProcessedAt:       time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC),
		FinancialStatus:   storefront.FinancialPaid,
		FulfillmentStatus: storefront.FulfillmentFulfilled,
		Subtotal:          money("159.80"),
		TotalShipping:     money("4.95"),
		TotalTax:          money("26.30"),
		Total:             money("191.05"),
		LineItems: []storefront.OrderLineItem{{
			Title:        "Alpine Jacket",
			VariantTitle: "M",
			Quantity:     2,
			Price:        money("79.90"),
			Total:        money("159.80"),
		}},
		StatusPageURL: "https://shop.example.com/account/orders/1001",
	}
}

// freshTokens returns a token source that always hands out the same token.
func freshTokens(sess *storefront.Session) *mockTokenSource {
	tokens := new(mockTokenSource)
	tokens.On("EnsureFreshToken", mock.Anything, sess).Return("shpat_fresh", nil)
	return tokens
}

func setupAccountRouter(customers storefront.CustomerAccountAPI, tokens identity.TokenSource, sess *storefront.Session) *gin.Engine {
	service := identity.NewAccountService(customers, tokens, zap.NewNop())
	h := NewAccountHandler(service)

	router := gin.New()
	// Order GIDs contain slashes; matching must happen on the raw path.
	router.UseRawPath = true
	v1 := router.Group("/api/v1", withSession(sess))
	v1.GET("/account/profile", h.GetProfile)
	v1.GET("/account/orders", h.ListOrders)
	v1.GET("/account/orders/:id", h.GetOrder)
	return router
}

func TestGetProfile(t *testing.T) {
	t.Run("returns the customer profile", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		customers.On("Profile", mock.Anything, "shpat_fresh").Return(&storefront.Customer{
			ID:          "gid://shopify/Customer/1",
			FirstName:   "Jamie",
			LastName:    "Buyer",
			DisplayName: "Jamie Buyer",
			Email:       "buyer@example.com",
			DefaultAddress: &storefront.Address{
				Address1:    "Musterstr. 1",
				City:        "Berlin",
				Zip:         "10115",
				CountryCode: "DE",
			},
		}, nil)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/profile", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := dataMap(t, decodeResponse(t, w))
		assert.Equal(t, "Jamie Buyer", data["display_name"])
		assert.Equal(t, "buyer@example.com", data["email"])
		address := data["default_address"].(map[string]any)
		assert.Equal(t, "Berlin", address["city"])
		customers.AssertExpectations(t)
	})

	t.Run("requires a session", func(t *testing.T) {
		customers := new(MockCustomerAccountAPI)
		router := setupAccountRouter(customers, new(mockTokenSource), nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/profile", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("a rejected Shopify token reads as an expired session", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		customers.On("Profile", mock.Anything, "shpat_fresh").Return(nil, storefront.ErrTokenExpired)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/profile", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeSessionExpired, resp.Error.Code)
	})
}

func TestListOrders(t *testing.T) {
	t.Run("returns the order history with pagination meta", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		customers.On("Orders", mock.Anything, "shpat_fresh", 10, "").Return(&storefront.OrderPage{
			Orders:   []storefront.Order{testOrder()},
			PageInfo: storefront.PageInfo{HasNextPage: true, EndCursor: "ord-cur"},
		}, nil)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Count)
		assert.True(t, resp.Meta.HasNextPage)
		assert.Equal(t, "ord-cur", resp.Meta.EndCursor)

		orders := dataSlice(t, resp)
		require.Len(t, orders, 1)
		order := orders[0].(map[string]any)
		assert.Equal(t, "#1001", order["name"])
		assert.Equal(t, "PAID", order["financial_status"])
		assert.Equal(t, "FULFILLED", order["fulfillment_status"])
		total := order["total"].(map[string]any)
		assert.Equal(t, "191.05", total["amount"])
		customers.AssertExpectations(t)
	})

	t.Run("rejects a page size beyond the cap", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders?first=100", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		customers.AssertNotCalled(t, "Orders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("requires a session", func(t *testing.T) {
		customers := new(MockCustomerAccountAPI)
		router := setupAccountRouter(customers, new(mockTokenSource), nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetOrder(t *testing.T) {
	t.Run("resolves an url-encoded order gid", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		order := testOrder()
		customers.On("Order", mock.Anything, "shpat_fresh", testOrderGID).Return(&order, nil)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders/"+url.PathEscape(testOrderGID), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := dataMap(t, decodeResponse(t, w))
		assert.Equal(t, testOrderGID, data["id"])
		lineItems := data["line_items"].([]any)
		require.Len(t, lineItems, 1)
		assert.Equal(t, "Alpine Jacket", lineItems[0].(map[string]any)["title"])
		customers.AssertExpectations(t)
	})

	t.Run("rejects an id that is not an order gid", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders/1001", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		customers.AssertNotCalled(t, "Order", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a foreign order reads as not found", func(t *testing.T) {
		sess := testSession()
		customers := new(MockCustomerAccountAPI)
		customers.On("Order", mock.Anything, "shpat_fresh", testOrderGID).Return(nil, storefront.ErrNotFound)
		router := setupAccountRouter(customers, freshTokens(sess), sess)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/account/orders/"+url.PathEscape(testOrderGID), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}
