package cart

import "github.com/storefront/gateway/internal/domain/storefront"

// LineInput is one variant-quantity pair entering the cart
type LineInput struct {
	MerchandiseID string
	Quantity      int
}

// CreateCartInput contains the input for cart creation. Buyer fields are
// optional; CustomerAccessToken binds the cart to a customer and is only
// set by authenticated flows, never from a request body.
type CreateCartInput struct {
	Lines               []LineInput
	Note                string
	Email               string
	CountryCode         string
	CustomerAccessToken string
}

// toDomain converts the input to the domain cart input
func (i CreateCartInput) toDomain() storefront.CartInput {
	input := storefront.CartInput{Note: i.Note}
	for _, line := range i.Lines {
		input.Lines = append(input.Lines, storefront.CartLineInput{
			MerchandiseID: line.MerchandiseID,
			Quantity:      line.Quantity,
		})
	}
	if i.Email != "" || i.CountryCode != "" || i.CustomerAccessToken != "" {
		input.BuyerIdentity = &storefront.BuyerIdentityInput{
			Email:               i.Email,
			CountryCode:         i.CountryCode,
			CustomerAccessToken: i.CustomerAccessToken,
		}
	}
	return input
}

// AddLinesInput contains the input for adding cart lines
type AddLinesInput struct {
	CartID string
	Lines  []storefront.CartLineInput
}

// UpdateLinesInput contains the input for changing line quantities
type UpdateLinesInput struct {
	CartID string
	Lines  []storefront.CartLineUpdate
}

// RemoveLinesInput contains the input for removing cart lines
type RemoveLinesInput struct {
	CartID  string
	LineIDs []string
}

// UpdateDiscountCodesInput replaces the cart's discount codes
type UpdateDiscountCodesInput struct {
	CartID string
	Codes  []string
}

// UpdateBuyerIdentityInput contains the input for a buyer identity update.
// CustomerAccessToken comes from the session, never from the request body.
type UpdateBuyerIdentityInput struct {
	CartID              string
	Email               string
	CountryCode         string
	CustomerAccessToken string
}

// toDomain converts the input to the domain buyer identity input
func (i UpdateBuyerIdentityInput) toDomain() storefront.BuyerIdentityInput {
	return storefront.BuyerIdentityInput{
		Email:               i.Email,
		CountryCode:         i.CountryCode,
		CustomerAccessToken: i.CustomerAccessToken,
	}
}

// CheckoutURLInput contains the input for the checkout URL lookup
type CheckoutURLInput struct {
	CartID              string
	CustomerAccessToken string
}
