package handler

import (
	"time"

	"golang.org/x/text/language"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// =====================
// Cart Request DTOs
// =====================

// CartLineRequest is one variant-quantity pair entering a cart
type CartLineRequest struct {
	MerchandiseID string `json:"merchandise_id" binding:"required,shopify_gid"`
	Quantity      int    `json:"quantity" binding:"required,gte=1"`
}

// CreateCartRequest represents the request body for cart creation. All
// fields are optional; an empty body creates an empty cart.
type CreateCartRequest struct {
	Lines       []CartLineRequest `json:"lines" binding:"omitempty,dive"`
	Note        string            `json:"note" binding:"omitempty,max=1000"`
	Email       string            `json:"email" binding:"omitempty,email"`
	CountryCode string            `json:"country_code" binding:"omitempty,country_code"`
}

// AddLinesRequest represents the request body for adding cart lines
type AddLinesRequest struct {
	Lines []CartLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// LineUpdateRequest changes the quantity of one cart line. Quantity is a
// pointer because zero is meaningful: it removes the line.
type LineUpdateRequest struct {
	LineID   string `json:"line_id" binding:"required,shopify_gid"`
	Quantity *int   `json:"quantity" binding:"required,gte=0"`
}

// UpdateLinesRequest represents the request body for line quantity updates
type UpdateLinesRequest struct {
	Lines []LineUpdateRequest `json:"lines" binding:"required,min=1,dive"`
}

// RemoveLinesRequest represents the request body for removing cart lines
type RemoveLinesRequest struct {
	LineIDs []string `json:"line_ids" binding:"required,min=1,dive,shopify_gid"`
}

// UpdateDiscountCodesRequest replaces the cart's discount codes. An empty
// or absent list clears all codes.
type UpdateDiscountCodesRequest struct {
	DiscountCodes []string `json:"discount_codes" binding:"omitempty,max=10,dive,min=1,max=64"`
}

// UpdateBuyerIdentityRequest represents the request body for a buyer
// identity update. The customer token is never part of the body; it comes
// from the session when the caller is authenticated.
type UpdateBuyerIdentityRequest struct {
	Email       string `json:"email" binding:"omitempty,email"`
	CountryCode string `json:"country_code" binding:"omitempty,country_code"`
}

// =====================
// Cart Response DTOs
// =====================

// MerchandiseResponse is the variant a cart line points at
type MerchandiseResponse struct {
	VariantID     string         `json:"variant_id"`
	Title         string         `json:"title"`
	SKU           string         `json:"sku,omitempty"`
	Price         MoneyResponse  `json:"price"`
	ProductID     string         `json:"product_id"`
	ProductHandle string         `json:"product_handle"`
	ProductTitle  string         `json:"product_title"`
	Image         *ImageResponse `json:"image,omitempty"`
}

// CartLineResponse is one line of a cart
type CartLineResponse struct {
	ID          string              `json:"id"`
	Quantity    int                 `json:"quantity"`
	Total       MoneyResponse       `json:"total"`
	Merchandise MerchandiseResponse `json:"merchandise"`
}

// CartCostResponse aggregates the cart's money totals
type CartCostResponse struct {
	Subtotal  MoneyResponse `json:"subtotal"`
	Total     MoneyResponse `json:"total"`
	TotalTax  MoneyResponse `json:"total_tax"`
	TotalDuty MoneyResponse `json:"total_duty"`
}

// DiscountCodeResponse is a discount code attached to a cart
type DiscountCodeResponse struct {
	Code       string `json:"code"`
	Applicable bool   `json:"applicable"`
}

// BuyerIdentityResponse is the identity Shopify associates with a cart
type BuyerIdentityResponse struct {
	Email       string `json:"email,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
}

// CartResponse represents a cart
type CartResponse struct {
	ID            string                 `json:"id"`
	CheckoutURL   string                 `json:"checkout_url"`
	TotalQuantity int                    `json:"total_quantity"`
	Note          string                 `json:"note,omitempty"`
	Cost          CartCostResponse       `json:"cost"`
	Lines         []CartLineResponse     `json:"lines"`
	DiscountCodes []DiscountCodeResponse `json:"discount_codes,omitempty"`
	BuyerIdentity *BuyerIdentityResponse `json:"buyer_identity,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// CheckoutURLResponse carries the web checkout URL for a cart
type CheckoutURLResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func newCartResponse(cart *storefront.Cart, loc language.Tag) CartResponse {
	resp := CartResponse{
		ID:            cart.ID,
		CheckoutURL:   cart.CheckoutURL,
		TotalQuantity: cart.TotalQuantity,
		Note:          cart.Note,
		Cost: CartCostResponse{
			Subtotal:  newMoneyResponse(cart.Cost.Subtotal, loc),
			Total:     newMoneyResponse(cart.Cost.Total, loc),
			TotalTax:  newMoneyResponse(cart.Cost.TotalTax, loc),
			TotalDuty: newMoneyResponse(cart.Cost.TotalDuty, loc),
		},
		Lines:     make([]CartLineResponse, 0, len(cart.Lines)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, line := range cart.Lines {
		resp.Lines = append(resp.Lines, CartLineResponse{
			ID:       line.ID,
			Quantity: line.Quantity,
			Total:    newMoneyResponse(line.Total, loc),
			Merchandise: MerchandiseResponse{
				VariantID:     line.Merchandise.VariantID,
				Title:         line.Merchandise.Title,
				SKU:           line.Merchandise.SKU,
				Price:         newMoneyResponse(line.Merchandise.Price, loc),
				ProductID:     line.Merchandise.ProductID,
				ProductHandle: line.Merchandise.ProductHandle,
				ProductTitle:  line.Merchandise.ProductTitle,
				Image:         newImageResponsePtr(line.Merchandise.Image),
			},
		})
	}
	for _, code := range cart.DiscountCodes {
		resp.DiscountCodes = append(resp.DiscountCodes, DiscountCodeResponse{
			Code:       code.Code,
			Applicable: code.Applicable,
		})
	}
	if cart.BuyerIdentity != (storefront.BuyerIdentity{}) {
		resp.BuyerIdentity = &BuyerIdentityResponse{
			Email:       cart.BuyerIdentity.Email,
			CountryCode: cart.BuyerIdentity.CountryCode,
			CustomerID:  cart.BuyerIdentity.CustomerID,
		}
	}
	return resp
}
