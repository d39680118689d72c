package handler

import (
	"strings"
	"time"

	"github.com/storefront/gateway/internal/application/vat"
	"github.com/storefront/gateway/internal/domain/storefront"
)

// =====================
// VAT Request DTOs
// =====================

// CustomerSearchRequest represents the request body for the customer lookup
type CustomerSearchRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SubmitExemptionRequest represents the request body for a VAT-exemption
// submission. The VAT number is validated per-country before any Admin call.
type SubmitExemptionRequest struct {
	Email       string `json:"email" binding:"required,email"`
	VATNumber   string `json:"vat_number" binding:"required,max=32"`
	CountryCode string `json:"country_code" binding:"required,country_code"`
	CompanyName string `json:"company_name" binding:"omitempty,max=255"`
}

// ListExemptionsQuery represents the query parameters for the audit listing
type ListExemptionsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// =====================
// VAT Response DTOs
// =====================

// CustomerSearchResponse reports whether the email belongs to a known
// customer and whether that customer is already VAT exempt
type CustomerSearchResponse struct {
	Found      bool     `json:"found"`
	CustomerID string   `json:"customer_id,omitempty"`
	Email      string   `json:"email,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	VATExempt  bool     `json:"vat_exempt"`
	VATNumber  string   `json:"vat_number,omitempty"`
}

func newCustomerSearchResponse(result *vat.CustomerSearchResult) CustomerSearchResponse {
	return CustomerSearchResponse{
		Found:      result.Found,
		CustomerID: result.CustomerID,
		Email:      result.Email,
		Tags:       result.Tags,
		VATExempt:  result.VATExempt,
		VATNumber:  result.VATNumber,
	}
}

// MetafieldResponse is the VAT metafield as Shopify stored it
type MetafieldResponse struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// SubmitExemptionResponse reports what the submission wrote to Shopify
type SubmitExemptionResponse struct {
	RequestID  string             `json:"request_id"`
	CustomerID string             `json:"customer_id"`
	Status     string             `json:"status"`
	TagsAdded  []string           `json:"tags_added"`
	Metafield  *MetafieldResponse `json:"metafield"`
}

func newSubmitExemptionResponse(result *vat.SubmitExemptionResult) SubmitExemptionResponse {
	resp := SubmitExemptionResponse{
		RequestID:  result.RequestID.String(),
		CustomerID: result.CustomerID,
		Status:     strings.ToLower(result.Status.String()),
		TagsAdded:  result.TagsAdded,
	}
	if result.Metafield != nil {
		resp.Metafield = &MetafieldResponse{
			Namespace: result.Metafield.Namespace,
			Key:       result.Metafield.Key,
			Value:     result.Metafield.Value,
		}
	}
	return resp
}

// ExemptionRequestResponse is one audit row of the customer's submissions
type ExemptionRequestResponse struct {
	ID          string    `json:"id"`
	VATNumber   string    `json:"vat_number"`
	CountryCode string    `json:"country_code"`
	CompanyName string    `json:"company_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newExemptionRequestResponses(requests []storefront.ExemptionRequest) []ExemptionRequestResponse {
	out := make([]ExemptionRequestResponse, len(requests))
	for i, req := range requests {
		out[i] = ExemptionRequestResponse{
			ID:          req.ID.String(),
			VATNumber:   req.VATNumber,
			CountryCode: req.CountryCode,
			CompanyName: req.CompanyName,
			Status:      strings.ToLower(req.Status.String()),
			CreatedAt:   req.CreatedAt,
			UpdatedAt:   req.UpdatedAt,
		}
	}
	return out
}
