package shopify

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestCustomerAccountConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		config := &CustomerAccountConfig{ShopID: "12345678"}
		require.NoError(t, config.Validate())
		assert.NotEmpty(t, config.APIVersion)
		assert.True(t, config.Timeout > 0)
	})

	t.Run("missing shop id", func(t *testing.T) {
		config := &CustomerAccountConfig{}
		assert.ErrorIs(t, config.Validate(), ErrCustomerAccountMissingShopID)
	})
}

func TestCustomerAccountConfig_Endpoint(t *testing.T) {
	config := &CustomerAccountConfig{ShopID: "12345678", APIVersion: "2025-01"}
	assert.Equal(t, "https://shopify.com/12345678/account/customer/api/2025-01/graphql", config.Endpoint())
}

// ---------------------------------------------------------------------------
// Profile Tests
// ---------------------------------------------------------------------------

func TestCustomerAccountClient_Profile(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		var gotAuth string
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			node := testCustomerNode()
			writeGraphQL(t, w, profileResponse{Customer: &node})
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		customer, err := client.Profile(context.Background(), "shcat_test_token")
		require.NoError(t, err)

		// Token goes through verbatim, no Bearer prefix
		assert.Equal(t, "shcat_test_token", gotAuth)

		assert.Equal(t, "gid://shopify/Customer/42", customer.ID)
		assert.Equal(t, "Ada", customer.FirstName)
		assert.Equal(t, "Lovelace", customer.LastName)
		assert.Equal(t, "ada@example.com", customer.Email)
		assert.Equal(t, "+4915112345678", customer.Phone)
		require.NotNil(t, customer.DefaultAddress)
		assert.Equal(t, "Berlin", customer.DefaultAddress.City)
		assert.Equal(t, "DE", customer.DefaultAddress.CountryCode)
		assert.Equal(t, []string{"Unter den Linden 1", "10117 Berlin", "Germany"}, customer.DefaultAddress.Formatted)
	})

	t.Run("missing token short-circuits", func(t *testing.T) {
		called := false
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		customer, err := client.Profile(context.Background(), "")
		assert.ErrorIs(t, err, storefront.ErrAuthFailed)
		assert.Nil(t, customer)
		assert.False(t, called)
	})

	t.Run("null customer", func(t *testing.T) {
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeGraphQL(t, w, profileResponse{Customer: nil})
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		customer, err := client.Profile(context.Background(), "shcat_test_token")
		assert.ErrorIs(t, err, storefront.ErrInvalidResponse)
		assert.Nil(t, customer)
	})

	t.Run("expired token", func(t *testing.T) {
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		customer, err := client.Profile(context.Background(), "shcat_expired")
		assert.ErrorIs(t, err, storefront.ErrAuthFailed)
		assert.Nil(t, customer)
	})
}

// ---------------------------------------------------------------------------
// Order Tests
// ---------------------------------------------------------------------------

func TestCustomerAccountClient_Orders(t *testing.T) {
	server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := ordersResponse{}
		resp.Customer = &struct {
			Orders connection[orderNode] `json:"orders"`
		}{}
		resp.Customer.Orders.Edges = []edge[orderNode]{
			{Node: testOrderNode()},
			{Node: func() orderNode {
				// Older order missing the partial amounts
				node := testOrderNode()
				node.ID = "gid://shopify/Order/5002"
				node.Name = "#1002"
				node.Number = 1002
				node.Subtotal = nil
				node.TotalShipping = nil
				node.TotalTax = nil
				node.FulfillmentStatus = ""
				return node
			}()},
		}
		resp.Customer.Orders.PageInfo = pageInfoNode{HasNextPage: true, EndCursor: "o-cursor"}
		writeGraphQL(t, w, resp)
	})
	defer server.Close()

	client := newTestCustomerAccountClient(server.URL)
	page, err := client.Orders(context.Background(), "shcat_test_token", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.True(t, page.PageInfo.HasNextPage)

	first := page.Orders[0]
	assert.Equal(t, "#1001", first.Name)
	assert.Equal(t, 1001, first.Number)
	assert.Equal(t, storefront.FinancialPaid, first.FinancialStatus)
	assert.Equal(t, storefront.FulfillmentFulfilled, first.FulfillmentStatus)
	assert.True(t, first.Total.Amount.Equal(decimal.RequireFromString("95.18")))
	require.Len(t, first.LineItems, 1)
	assert.Equal(t, "Alpine Jacket", first.LineItems[0].Title)
	assert.Equal(t, 1, first.LineItems[0].Quantity)

	// Null partial amounts default to zero in the order currency
	second := page.Orders[1]
	assert.True(t, second.Subtotal.Amount.IsZero())
	assert.Equal(t, "EUR", second.Subtotal.CurrencyCode)
	assert.Equal(t, storefront.FulfillmentUnfulfilled, second.FulfillmentStatus)
}

func TestCustomerAccountClient_Order(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			node := testOrderNode()
			writeGraphQL(t, w, orderResponse{Order: &node})
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		order, err := client.Order(context.Background(), "shcat_test_token", "gid://shopify/Order/5001")
		require.NoError(t, err)
		assert.Equal(t, "gid://shopify/Order/5001", order.ID)
		assert.Equal(t, "https://demo.myshopify.com/account/orders/5001", order.StatusPageURL)
	})

	t.Run("not found", func(t *testing.T) {
		server := newMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeGraphQL(t, w, orderResponse{Order: nil})
		})
		defer server.Close()

		client := newTestCustomerAccountClient(server.URL)
		order, err := client.Order(context.Background(), "shcat_test_token", "gid://shopify/Order/9999")
		assert.ErrorIs(t, err, storefront.ErrNotFound)
		assert.Nil(t, order)
	})
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

func newTestCustomerAccountClient(serverURL string) *CustomerAccountClient {
	return &CustomerAccountClient{gql: newGraphQLClient(apiCustomerAccount, serverURL, 5*time.Second, nil)}
}

func testCustomerNode() customerNode {
	node := customerNode{
		ID:           "gid://shopify/Customer/42",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DisplayName:  "Ada Lovelace",
		CreationDate: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		DefaultAddress: &addressNode{
			Address1:      "Unter den Linden 1",
			City:          "Berlin",
			Zip:           "10117",
			TerritoryCode: "DE",
			Formatted:     []string{"Unter den Linden 1", "10117 Berlin", "Germany"},
		},
	}
	node.EmailAddress = &struct {
		EmailAddress string `json:"emailAddress"`
	}{EmailAddress: "ada@example.com"}
	node.PhoneNumber = &struct {
		PhoneNumber string `json:"phoneNumber"`
	}{PhoneNumber: "+4915112345678"}
	return node
}

func testOrderNode() orderNode {
	node := orderNode{
		ID:                "gid://shopify/Order/5001",
		Name:              "#1001",
		Number:            1001,
		ProcessedAt:       time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC),
		FinancialStatus:   "PAID",
		FulfillmentStatus: "FULFILLED",
		Subtotal:          &moneyV2{Amount: "79.99", CurrencyCode: "EUR"},
		TotalShipping:     &moneyV2{Amount: "4.99", CurrencyCode: "EUR"},
		TotalTax:          &moneyV2{Amount: "10.20", CurrencyCode: "EUR"},
		TotalPrice:        moneyV2{Amount: "95.18", CurrencyCode: "EUR"},
		StatusPageURL:     "https://demo.myshopify.com/account/orders/5001",
	}
	node.LineItems.Edges = []edge[orderLineItemNode]{
		{Node: orderLineItemNode{
			Title:        "Alpine Jacket",
			VariantTitle: "M",
			Quantity:     1,
			Price:        &moneyV2{Amount: "79.99", CurrencyCode: "EUR"},
			TotalPrice:   &moneyV2{Amount: "79.99", CurrencyCode: "EUR"},
		}},
	}
	return node
}
