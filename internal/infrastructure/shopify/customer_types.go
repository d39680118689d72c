package shopify

import (
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Customer Account Wire Types
// ---------------------------------------------------------------------------

// customerNode matches the profile query. Email and phone arrive wrapped in
// their own objects in the Customer Account API.
type customerNode struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	DisplayName  string    `json:"displayName"`
	CreationDate time.Time `json:"creationDate"`
	EmailAddress *struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"emailAddress"`
	PhoneNumber *struct {
		PhoneNumber string `json:"phoneNumber"`
	} `json:"phoneNumber"`
	DefaultAddress *addressNode `json:"defaultAddress"`
}

type addressNode struct {
	Address1      string   `json:"address1"`
	Address2      string   `json:"address2"`
	City          string   `json:"city"`
	ZoneCode      string   `json:"zoneCode"`
	Zip           string   `json:"zip"`
	TerritoryCode string   `json:"territoryCode"`
	Formatted     []string `json:"formatted"`
}

// orderNode matches the OrderFields fragment. Subtotal, shipping and tax are
// null on older orders, so they default to zero in the order's currency.
type orderNode struct {
	ID                string                        `json:"id"`
	Name              string                        `json:"name"`
	Number            int                           `json:"number"`
	ProcessedAt       time.Time                     `json:"processedAt"`
	FinancialStatus   string                        `json:"financialStatus"`
	FulfillmentStatus string                        `json:"fulfillmentStatus"`
	Subtotal          *moneyV2                      `json:"subtotal"`
	TotalShipping     *moneyV2                      `json:"totalShipping"`
	TotalTax          *moneyV2                      `json:"totalTax"`
	TotalPrice        moneyV2                       `json:"totalPrice"`
	StatusPageURL     string                        `json:"statusPageUrl"`
	LineItems         connection[orderLineItemNode] `json:"lineItems"`
}

type orderLineItemNode struct {
	Title        string     `json:"title"`
	VariantTitle string     `json:"variantTitle"`
	Quantity     int        `json:"quantity"`
	Price        *moneyV2   `json:"price"`
	TotalPrice   *moneyV2   `json:"totalPrice"`
	Image        *imageNode `json:"image"`
}

// ---------------------------------------------------------------------------
// Response Wrappers
// ---------------------------------------------------------------------------

type profileResponse struct {
	Customer *customerNode `json:"customer"`
}

type ordersResponse struct {
	Customer *struct {
		Orders connection[orderNode] `json:"orders"`
	} `json:"customer"`
}

type orderResponse struct {
	Order *orderNode `json:"order"`
}

// ---------------------------------------------------------------------------
// Converters
// ---------------------------------------------------------------------------

func (n *customerNode) toDomain() *storefront.Customer {
	customer := &storefront.Customer{
		ID:          n.ID,
		FirstName:   n.FirstName,
		LastName:    n.LastName,
		DisplayName: n.DisplayName,
		CreatedAt:   n.CreationDate,
	}
	if n.EmailAddress != nil {
		customer.Email = n.EmailAddress.EmailAddress
	}
	if n.PhoneNumber != nil {
		customer.Phone = n.PhoneNumber.PhoneNumber
	}
	if n.DefaultAddress != nil {
		address := n.DefaultAddress.toDomain()
		customer.DefaultAddress = &address
	}
	return customer
}

func (n *addressNode) toDomain() storefront.Address {
	return storefront.Address{
		Address1:    n.Address1,
		Address2:    n.Address2,
		City:        n.City,
		Province:    n.ZoneCode,
		Zip:         n.Zip,
		CountryCode: n.TerritoryCode,
		Formatted:   n.Formatted,
	}
}

func (n *orderNode) toDomain() (*storefront.Order, error) {
	total, err := n.TotalPrice.toDomain()
	if err != nil {
		return nil, err
	}

	order := &storefront.Order{
		ID:              n.ID,
		Name:            n.Name,
		Number:          n.Number,
		ProcessedAt:     n.ProcessedAt,
		FinancialStatus: storefront.FinancialStatus(n.FinancialStatus),
		Total:           total,
		StatusPageURL:   n.StatusPageURL,
		// Absent partial amounts stay zero in the order's currency
		Subtotal:      storefront.Money{CurrencyCode: total.CurrencyCode},
		TotalShipping: storefront.Money{CurrencyCode: total.CurrencyCode},
		TotalTax:      storefront.Money{CurrencyCode: total.CurrencyCode},
		LineItems:     make([]storefront.OrderLineItem, 0, len(n.LineItems.Edges)),
	}

	order.FulfillmentStatus = storefront.FulfillmentStatus(n.FulfillmentStatus)
	if n.FulfillmentStatus == "" {
		order.FulfillmentStatus = storefront.FulfillmentUnfulfilled
	}

	if subtotal, err := convertOptionalMoney(n.Subtotal); err != nil {
		return nil, err
	} else if subtotal != nil {
		order.Subtotal = *subtotal
	}
	if shipping, err := convertOptionalMoney(n.TotalShipping); err != nil {
		return nil, err
	} else if shipping != nil {
		order.TotalShipping = *shipping
	}
	if tax, err := convertOptionalMoney(n.TotalTax); err != nil {
		return nil, err
	} else if tax != nil {
		order.TotalTax = *tax
	}

	for _, item := range n.LineItems.nodes() {
		converted, err := item.toDomain(total.CurrencyCode)
		if err != nil {
			return nil, err
		}
		order.LineItems = append(order.LineItems, converted)
	}

	return order, nil
}

func (n orderLineItemNode) toDomain(currencyCode string) (storefront.OrderLineItem, error) {
	item := storefront.OrderLineItem{
		Title:        n.Title,
		VariantTitle: n.VariantTitle,
		Quantity:     n.Quantity,
		Image:        convertOptionalImage(n.Image),
		Price:        storefront.Money{CurrencyCode: currencyCode},
		Total:        storefront.Money{CurrencyCode: currencyCode},
	}
	if price, err := convertOptionalMoney(n.Price); err != nil {
		return storefront.OrderLineItem{}, err
	} else if price != nil {
		item.Price = *price
	}
	if total, err := convertOptionalMoney(n.TotalPrice); err != nil {
		return storefront.OrderLineItem{}, err
	} else if total != nil {
		item.Total = *total
	}
	return item, nil
}
