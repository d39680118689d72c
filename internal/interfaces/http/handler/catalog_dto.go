package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// defaultLocale formats money when the client names no usable language
var defaultLocale = language.English

// requestLocale picks the money formatting locale from Accept-Language.
// The header's best entry wins; anything unparseable falls back to English.
func requestLocale(c *gin.Context) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return defaultLocale
	}
	return tags[0]
}

// =====================
// Catalog Request DTOs
// =====================

// ListProductsQuery represents the query parameters for product listings
type ListProductsQuery struct {
	Query   string `form:"query" binding:"omitempty,max=256"`
	First   int    `form:"first" binding:"omitempty,min=1,max=250"`
	After   string `form:"after"`
	Sort    string `form:"sort" binding:"omitempty,max=32"`
	Reverse bool   `form:"reverse"`
}

// ListCollectionsQuery represents the query parameters for collection listings
type ListCollectionsQuery struct {
	First int    `form:"first" binding:"omitempty,min=1,max=250"`
	After string `form:"after"`
}

// GetCollectionQuery pages through the collection's products
type GetCollectionQuery struct {
	First int    `form:"first" binding:"omitempty,min=1,max=250"`
	After string `form:"after"`
}

// =====================
// Catalog Response DTOs
// =====================

// MoneyResponse represents a money value with a locale-aware rendering
type MoneyResponse struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Formatted    string          `json:"formatted"`
}

func newMoneyResponse(m storefront.Money, loc language.Tag) MoneyResponse {
	return MoneyResponse{
		Amount:       m.Amount,
		CurrencyCode: m.CurrencyCode,
		Formatted:    m.Format(loc),
	}
}

func newMoneyResponsePtr(m *storefront.Money, loc language.Tag) *MoneyResponse {
	if m == nil {
		return nil
	}
	r := newMoneyResponse(*m, loc)
	return &r
}

// ImageResponse represents a Shopify-hosted image
type ImageResponse struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

func newImageResponsePtr(img *storefront.Image) *ImageResponse {
	if img == nil {
		return nil
	}
	return &ImageResponse{
		URL:     img.URL,
		AltText: img.AltText,
		Width:   img.Width,
		Height:  img.Height,
	}
}

func newImageResponses(images []storefront.Image) []ImageResponse {
	if len(images) == 0 {
		return nil
	}
	out := make([]ImageResponse, len(images))
	for i, img := range images {
		out[i] = *newImageResponsePtr(&img)
	}
	return out
}

// SelectedOptionResponse is one chosen option of a variant
type SelectedOptionResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductOptionResponse is one configurable axis of a product
type ProductOptionResponse struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// VariantResponse represents a purchasable variant
type VariantResponse struct {
	ID                string                   `json:"id"`
	Title             string                   `json:"title"`
	SKU               string                   `json:"sku,omitempty"`
	Available         bool                     `json:"available"`
	QuantityAvailable int                      `json:"quantity_available"`
	Price             MoneyResponse            `json:"price"`
	CompareAtPrice    *MoneyResponse           `json:"compare_at_price,omitempty"`
	SelectedOptions   []SelectedOptionResponse `json:"selected_options,omitempty"`
	Image             *ImageResponse           `json:"image,omitempty"`
}

// PriceRangeResponse spans the variant prices of a product
type PriceRangeResponse struct {
	Min MoneyResponse `json:"min"`
	Max MoneyResponse `json:"max"`
}

// ProductResponse represents a product with its variants
type ProductResponse struct {
	ID              string                  `json:"id"`
	Handle          string                  `json:"handle"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	DescriptionHTML string                  `json:"description_html,omitempty"`
	Vendor          string                  `json:"vendor,omitempty"`
	ProductType     string                  `json:"product_type,omitempty"`
	Tags            []string                `json:"tags,omitempty"`
	Available       bool                    `json:"available"`
	FeaturedImage   *ImageResponse          `json:"featured_image,omitempty"`
	Images          []ImageResponse         `json:"images,omitempty"`
	PriceRange      PriceRangeResponse      `json:"price_range"`
	Options         []ProductOptionResponse `json:"options,omitempty"`
	Variants        []VariantResponse       `json:"variants,omitempty"`
}

func newProductResponse(p *storefront.Product, loc language.Tag) ProductResponse {
	resp := ProductResponse{
		ID:              p.ID,
		Handle:          p.Handle,
		Title:           p.Title,
		Description:     p.Description,
		DescriptionHTML: p.DescriptionHTML,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Tags:            p.Tags,
		Available:       p.Available,
		FeaturedImage:   newImageResponsePtr(p.FeaturedImage),
		Images:          newImageResponses(p.Images),
		PriceRange: PriceRangeResponse{
			Min: newMoneyResponse(p.PriceRange.Min, loc),
			Max: newMoneyResponse(p.PriceRange.Max, loc),
		},
	}
	for _, opt := range p.Options {
		resp.Options = append(resp.Options, ProductOptionResponse{Name: opt.Name, Values: opt.Values})
	}
	for _, v := range p.Variants {
		variant := VariantResponse{
			ID:                v.ID,
			Title:             v.Title,
			SKU:               v.SKU,
			Available:         v.Available,
			QuantityAvailable: v.QuantityAvailable,
			Price:             newMoneyResponse(v.Price, loc),
			CompareAtPrice:    newMoneyResponsePtr(v.CompareAtPrice, loc),
			Image:             newImageResponsePtr(v.Image),
		}
		for _, opt := range v.SelectedOptions {
			variant.SelectedOptions = append(variant.SelectedOptions, SelectedOptionResponse{Name: opt.Name, Value: opt.Value})
		}
		resp.Variants = append(resp.Variants, variant)
	}
	return resp
}

func newProductResponses(products []storefront.Product, loc language.Tag) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = newProductResponse(&products[i], loc)
	}
	return out
}

// PageInfoResponse carries cursor pagination state for nested listings
type PageInfoResponse struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor,omitempty"`
}

// CollectionResponse represents a collection, optionally with a page of its
// products
type CollectionResponse struct {
	ID          string            `json:"id"`
	Handle      string            `json:"handle"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Image       *ImageResponse    `json:"image,omitempty"`
	Products    []ProductResponse `json:"products,omitempty"`
	// ProductsPageInfo pages the nested product listing; nil for collection
	// listings that do not expand products.
	ProductsPageInfo *PageInfoResponse `json:"products_page_info,omitempty"`
}

func newCollectionResponse(col *storefront.Collection, loc language.Tag, withProducts bool) CollectionResponse {
	resp := CollectionResponse{
		ID:          col.ID,
		Handle:      col.Handle,
		Title:       col.Title,
		Description: col.Description,
		Image:       newImageResponsePtr(col.Image),
	}
	if withProducts {
		resp.Products = newProductResponses(col.Products.Products, loc)
		resp.ProductsPageInfo = &PageInfoResponse{
			HasNextPage: col.Products.PageInfo.HasNextPage,
			EndCursor:   col.Products.PageInfo.EndCursor,
		}
	}
	return resp
}

func newCollectionResponses(collections []storefront.Collection, loc language.Tag) []CollectionResponse {
	out := make([]CollectionResponse, len(collections))
	for i := range collections {
		out[i] = newCollectionResponse(&collections[i], loc, false)
	}
	return out
}
