package handler

import (
	"time"

	"golang.org/x/text/language"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// =====================
// Account Request DTOs
// =====================

// OrdersQuery represents the query parameters for the order history
type OrdersQuery struct {
	First int    `form:"first" binding:"omitempty,min=1,max=50"`
	After string `form:"after"`
}

// =====================
// Account Response DTOs
// =====================

// AddressResponse represents a customer address
type AddressResponse struct {
	Address1    string   `json:"address1,omitempty"`
	Address2    string   `json:"address2,omitempty"`
	City        string   `json:"city,omitempty"`
	Province    string   `json:"province,omitempty"`
	Zip         string   `json:"zip,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	Formatted   []string `json:"formatted,omitempty"`
}

// CustomerResponse represents the authenticated customer's profile
type CustomerResponse struct {
	ID             string           `json:"id"`
	FirstName      string           `json:"first_name,omitempty"`
	LastName       string           `json:"last_name,omitempty"`
	DisplayName    string           `json:"display_name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone,omitempty"`
	DefaultAddress *AddressResponse `json:"default_address,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newCustomerResponse(customer *storefront.Customer) CustomerResponse {
	resp := CustomerResponse{
		ID:          customer.ID,
		FirstName:   customer.FirstName,
		LastName:    customer.LastName,
		DisplayName: customer.DisplayName,
		Email:       customer.Email,
		Phone:       customer.Phone,
		CreatedAt:   customer.CreatedAt,
	}
	if addr := customer.DefaultAddress; addr != nil {
		resp.DefaultAddress = &AddressResponse{
			Address1:    addr.Address1,
			Address2:    addr.Address2,
			City:        addr.City,
			Province:    addr.Province,
			Zip:         addr.Zip,
			CountryCode: addr.CountryCode,
			Formatted:   addr.Formatted,
		}
	}
	return resp
}

// OrderLineItemResponse is one line of a placed order
type OrderLineItemResponse struct {
	Title        string         `json:"title"`
	VariantTitle string         `json:"variant_title,omitempty"`
	Quantity     int            `json:"quantity"`
	Price        MoneyResponse  `json:"price"`
	Total        MoneyResponse  `json:"total"`
	Image        *ImageResponse `json:"image,omitempty"`
}

// OrderResponse represents a placed order as the customer sees it
type OrderResponse struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	Number            int                     `json:"number"`
	ProcessedAt       time.Time               `json:"processed_at"`
	FinancialStatus   string                  `json:"financial_status"`
	FulfillmentStatus string                  `json:"fulfillment_status"`
	Subtotal          MoneyResponse           `json:"subtotal"`
	TotalShipping     MoneyResponse           `json:"total_shipping"`
	TotalTax          MoneyResponse           `json:"total_tax"`
	Total             MoneyResponse           `json:"total"`
	LineItems         []OrderLineItemResponse `json:"line_items,omitempty"`
	StatusPageURL     string                  `json:"status_page_url,omitempty"`
}

func newOrderResponse(order *storefront.Order, loc language.Tag) OrderResponse {
	resp := OrderResponse{
		ID:                order.ID,
		Name:              order.Name,
		Number:            order.Number,
		ProcessedAt:       order.ProcessedAt,
		FinancialStatus:   order.FinancialStatus.String(),
		FulfillmentStatus: order.FulfillmentStatus.String(),
		Subtotal:          newMoneyResponse(order.Subtotal, loc),
		TotalShipping:     newMoneyResponse(order.TotalShipping, loc),
		TotalTax:          newMoneyResponse(order.TotalTax, loc),
		Total:             newMoneyResponse(order.Total, loc),
		StatusPageURL:     order.StatusPageURL,
	}
	for _, item := range order.LineItems {
		resp.LineItems = append(resp.LineItems, OrderLineItemResponse{
			Title:        item.Title,
			VariantTitle: item.VariantTitle,
			Quantity:     item.Quantity,
			Price:        newMoneyResponse(item.Price, loc),
			Total:        newMoneyResponse(item.Total, loc),
			Image:        newImageResponsePtr(item.Image),
		})
	}
	return resp
}

func newOrderResponses(orders []storefront.Order, loc language.Tag) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = newOrderResponse(&orders[i], loc)
	}
	return out
}
