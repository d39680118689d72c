package shopify

import (
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Catalog Wire Types
// ---------------------------------------------------------------------------

// productNode matches the ProductFields fragment
type productNode struct {
	ID               string                  `json:"id"`
	Handle           string                  `json:"handle"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	DescriptionHTML  string                  `json:"descriptionHtml"`
	Vendor           string                  `json:"vendor"`
	ProductType      string                  `json:"productType"`
	Tags             []string                `json:"tags"`
	AvailableForSale bool                    `json:"availableForSale"`
	FeaturedImage    *imageNode              `json:"featuredImage"`
	Images           connection[imageNode]   `json:"images"`
	Options          []productOptionNode     `json:"options"`
	PriceRange       priceRangeNode          `json:"priceRange"`
	Variants         connection[variantNode] `json:"variants"`
}

type productOptionNode struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type priceRangeNode struct {
	MinVariantPrice moneyV2 `json:"minVariantPrice"`
	MaxVariantPrice moneyV2 `json:"maxVariantPrice"`
}

type variantNode struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	SKU               string               `json:"sku"`
	AvailableForSale  bool                 `json:"availableForSale"`
	QuantityAvailable int                  `json:"quantityAvailable"`
	Price             moneyV2              `json:"price"`
	CompareAtPrice    *moneyV2             `json:"compareAtPrice"`
	SelectedOptions   []selectedOptionNode `json:"selectedOptions"`
	Image             *imageNode           `json:"image"`
}

type selectedOptionNode struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// collectionNode matches collection queries. Products is only populated by
// the by-handle query; the listing query leaves it empty.
type collectionNode struct {
	ID          string                  `json:"id"`
	Handle      string                  `json:"handle"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Image       *imageNode              `json:"image"`
	Products    connection[productNode] `json:"products"`
}

// ---------------------------------------------------------------------------
// Cart Wire Types
// ---------------------------------------------------------------------------

// cartNode matches the CartFields fragment
type cartNode struct {
	ID            string                   `json:"id"`
	CheckoutURL   string                   `json:"checkoutUrl"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
	TotalQuantity int                      `json:"totalQuantity"`
	Note          string                   `json:"note"`
	Cost          cartCostNode             `json:"cost"`
	Lines         connection[cartLineNode] `json:"lines"`
	DiscountCodes []discountCodeNode       `json:"discountCodes"`
	BuyerIdentity buyerIdentityNode        `json:"buyerIdentity"`
}

// cartCostNode carries the cart totals. Tax and duty are null until Shopify
// has enough buyer context to estimate them.
type cartCostNode struct {
	SubtotalAmount  moneyV2  `json:"subtotalAmount"`
	TotalAmount     moneyV2  `json:"totalAmount"`
	TotalTaxAmount  *moneyV2 `json:"totalTaxAmount"`
	TotalDutyAmount *moneyV2 `json:"totalDutyAmount"`
}

type cartLineNode struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Cost     struct {
		TotalAmount moneyV2 `json:"totalAmount"`
	} `json:"cost"`
	Merchandise merchandiseNode `json:"merchandise"`
}

// merchandiseNode is the ProductVariant behind a cart line, inlined via the
// "... on ProductVariant" spread
type merchandiseNode struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	SKU     string     `json:"sku"`
	Price   moneyV2    `json:"price"`
	Image   *imageNode `json:"image"`
	Product struct {
		ID            string     `json:"id"`
		Handle        string     `json:"handle"`
		Title         string     `json:"title"`
		FeaturedImage *imageNode `json:"featuredImage"`
	} `json:"product"`
}

type discountCodeNode struct {
	Code       string `json:"code"`
	Applicable bool   `json:"applicable"`
}

type buyerIdentityNode struct {
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
	Customer    *struct {
		ID string `json:"id"`
	} `json:"customer"`
}

// ---------------------------------------------------------------------------
// Response Wrappers
// ---------------------------------------------------------------------------

type productsResponse struct {
	Products connection[productNode] `json:"products"`
}

type productByHandleResponse struct {
	Product *productNode `json:"product"`
}

type productRecommendationsResponse struct {
	ProductRecommendations []productNode `json:"productRecommendations"`
}

type collectionsResponse struct {
	Collections connection[collectionNode] `json:"collections"`
}

type collectionByHandleResponse struct {
	Collection *collectionNode `json:"collection"`
}

type cartQueryResponse struct {
	Cart *cartNode `json:"cart"`
}

// cartMutationPayload is the shared payload shape of every cart mutation
type cartMutationPayload struct {
	Cart       *cartNode   `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

type cartCreateResponse struct {
	CartCreate cartMutationPayload `json:"cartCreate"`
}

type cartLinesAddResponse struct {
	CartLinesAdd cartMutationPayload `json:"cartLinesAdd"`
}

type cartLinesUpdateResponse struct {
	CartLinesUpdate cartMutationPayload `json:"cartLinesUpdate"`
}

type cartLinesRemoveResponse struct {
	CartLinesRemove cartMutationPayload `json:"cartLinesRemove"`
}

type cartDiscountCodesUpdateResponse struct {
	CartDiscountCodesUpdate cartMutationPayload `json:"cartDiscountCodesUpdate"`
}

type cartBuyerIdentityUpdateResponse struct {
	CartBuyerIdentityUpdate cartMutationPayload `json:"cartBuyerIdentityUpdate"`
}

// ---------------------------------------------------------------------------
// Converters
// ---------------------------------------------------------------------------

func (n *productNode) toDomain() (*storefront.Product, error) {
	minPrice, err := n.PriceRange.MinVariantPrice.toDomain()
	if err != nil {
		return nil, err
	}
	maxPrice, err := n.PriceRange.MaxVariantPrice.toDomain()
	if err != nil {
		return nil, err
	}

	product := &storefront.Product{
		ID:              n.ID,
		Handle:          n.Handle,
		Title:           n.Title,
		Description:     n.Description,
		DescriptionHTML: n.DescriptionHTML,
		Vendor:          n.Vendor,
		ProductType:     n.ProductType,
		Tags:            n.Tags,
		Available:       n.AvailableForSale,
		FeaturedImage:   convertOptionalImage(n.FeaturedImage),
		PriceRange:      storefront.PriceRange{Min: minPrice, Max: maxPrice},
		Images:          make([]storefront.Image, 0, len(n.Images.Edges)),
		Options:         make([]storefront.ProductOption, 0, len(n.Options)),
		Variants:        make([]storefront.Variant, 0, len(n.Variants.Edges)),
	}

	for _, img := range n.Images.nodes() {
		product.Images = append(product.Images, img.toDomain())
	}
	for _, opt := range n.Options {
		product.Options = append(product.Options, storefront.ProductOption{
			Name:   opt.Name,
			Values: opt.Values,
		})
	}
	for _, v := range n.Variants.nodes() {
		variant, err := v.toDomain()
		if err != nil {
			return nil, err
		}
		product.Variants = append(product.Variants, variant)
	}

	return product, nil
}

func (n variantNode) toDomain() (storefront.Variant, error) {
	price, err := n.Price.toDomain()
	if err != nil {
		return storefront.Variant{}, err
	}
	compareAt, err := convertOptionalMoney(n.CompareAtPrice)
	if err != nil {
		return storefront.Variant{}, err
	}

	variant := storefront.Variant{
		ID:                n.ID,
		Title:             n.Title,
		SKU:               n.SKU,
		Available:         n.AvailableForSale,
		QuantityAvailable: n.QuantityAvailable,
		Price:             price,
		CompareAtPrice:    compareAt,
		Image:             convertOptionalImage(n.Image),
		SelectedOptions:   make([]storefront.SelectedOption, 0, len(n.SelectedOptions)),
	}
	for _, opt := range n.SelectedOptions {
		variant.SelectedOptions = append(variant.SelectedOptions, storefront.SelectedOption{
			Name:  opt.Name,
			Value: opt.Value,
		})
	}
	return variant, nil
}

func convertProductPage(conn connection[productNode]) (*storefront.ProductPage, error) {
	page := &storefront.ProductPage{
		Products: make([]storefront.Product, 0, len(conn.Edges)),
		PageInfo: conn.PageInfo.toDomain(),
	}
	for _, node := range conn.nodes() {
		product, err := node.toDomain()
		if err != nil {
			return nil, err
		}
		page.Products = append(page.Products, *product)
	}
	return page, nil
}

func (n *collectionNode) toDomain() (*storefront.Collection, error) {
	products, err := convertProductPage(n.Products)
	if err != nil {
		return nil, err
	}
	return &storefront.Collection{
		ID:          n.ID,
		Handle:      n.Handle,
		Title:       n.Title,
		Description: n.Description,
		Image:       convertOptionalImage(n.Image),
		Products:    *products,
	}, nil
}

func (n *cartNode) toDomain() (*storefront.Cart, error) {
	cost, err := n.Cost.toDomain()
	if err != nil {
		return nil, err
	}

	cart := &storefront.Cart{
		ID:            n.ID,
		CheckoutURL:   n.CheckoutURL,
		TotalQuantity: n.TotalQuantity,
		Note:          n.Note,
		Cost:          cost,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		Lines:         make([]storefront.CartLine, 0, len(n.Lines.Edges)),
		DiscountCodes: make([]storefront.DiscountCode, 0, len(n.DiscountCodes)),
	}

	for _, line := range n.Lines.nodes() {
		converted, err := line.toDomain()
		if err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, converted)
	}
	for _, code := range n.DiscountCodes {
		cart.DiscountCodes = append(cart.DiscountCodes, storefront.DiscountCode{
			Code:       code.Code,
			Applicable: code.Applicable,
		})
	}

	cart.BuyerIdentity = storefront.BuyerIdentity{
		Email:       n.BuyerIdentity.Email,
		CountryCode: n.BuyerIdentity.CountryCode,
	}
	if n.BuyerIdentity.Customer != nil {
		cart.BuyerIdentity.CustomerID = n.BuyerIdentity.Customer.ID
	}

	return cart, nil
}

func (n cartCostNode) toDomain() (storefront.CartCost, error) {
	subtotal, err := n.SubtotalAmount.toDomain()
	if err != nil {
		return storefront.CartCost{}, err
	}
	total, err := n.TotalAmount.toDomain()
	if err != nil {
		return storefront.CartCost{}, err
	}
	cost := storefront.CartCost{
		Subtotal: subtotal,
		Total:    total,
		// Absent tax and duty stay zero in the cart's currency
		TotalTax:  storefront.Money{CurrencyCode: total.CurrencyCode},
		TotalDuty: storefront.Money{CurrencyCode: total.CurrencyCode},
	}
	if tax, err := convertOptionalMoney(n.TotalTaxAmount); err != nil {
		return storefront.CartCost{}, err
	} else if tax != nil {
		cost.TotalTax = *tax
	}
	if duty, err := convertOptionalMoney(n.TotalDutyAmount); err != nil {
		return storefront.CartCost{}, err
	} else if duty != nil {
		cost.TotalDuty = *duty
	}
	return cost, nil
}

func (n cartLineNode) toDomain() (storefront.CartLine, error) {
	total, err := n.Cost.TotalAmount.toDomain()
	if err != nil {
		return storefront.CartLine{}, err
	}
	price, err := n.Merchandise.Price.toDomain()
	if err != nil {
		return storefront.CartLine{}, err
	}

	// Fall back to the product image when the variant has none
	image := convertOptionalImage(n.Merchandise.Image)
	if image == nil {
		image = convertOptionalImage(n.Merchandise.Product.FeaturedImage)
	}

	return storefront.CartLine{
		ID:       n.ID,
		Quantity: n.Quantity,
		Total:    total,
		Merchandise: storefront.Merchandise{
			VariantID:     n.Merchandise.ID,
			Title:         n.Merchandise.Title,
			SKU:           n.Merchandise.SKU,
			Price:         price,
			ProductID:     n.Merchandise.Product.ID,
			ProductHandle: n.Merchandise.Product.Handle,
			ProductTitle:  n.Merchandise.Product.Title,
			Image:         image,
		},
	}, nil
}

// ---------------------------------------------------------------------------
// Input Converters
// ---------------------------------------------------------------------------

// cartInputToWire builds the CartInput variable for cartCreate
func cartInputToWire(input storefront.CartInput) map[string]any {
	wire := map[string]any{}
	if len(input.Lines) > 0 {
		wire["lines"] = cartLinesToWire(input.Lines)
	}
	if input.BuyerIdentity != nil {
		wire["buyerIdentity"] = buyerIdentityToWire(*input.BuyerIdentity)
	}
	if input.Note != "" {
		wire["note"] = input.Note
	}
	return wire
}

func cartLinesToWire(lines []storefront.CartLineInput) []map[string]any {
	wire := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		wire = append(wire, map[string]any{
			"merchandiseId": line.MerchandiseID,
			"quantity":      line.Quantity,
		})
	}
	return wire
}

func cartLineUpdatesToWire(lines []storefront.CartLineUpdate) []map[string]any {
	wire := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		wire = append(wire, map[string]any{
			"id":       line.LineID,
			"quantity": line.Quantity,
		})
	}
	return wire
}

func buyerIdentityToWire(buyer storefront.BuyerIdentityInput) map[string]any {
	wire := map[string]any{}
	if buyer.Email != "" {
		wire["email"] = buyer.Email
	}
	if buyer.CountryCode != "" {
		wire["countryCode"] = buyer.CountryCode
	}
	if buyer.CustomerAccessToken != "" {
		wire["customerAccessToken"] = buyer.CustomerAccessToken
	}
	return wire
}
