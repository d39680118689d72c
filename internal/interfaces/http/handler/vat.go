package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/application/vat"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// VatHandler handles the VAT-exemption Admin proxy requests. Every route
// requires a session, and the submitted email must match the session's
// customer; the Admin token itself never leaves the server.
type VatHandler struct {
	BaseHandler
	vatService *vat.Service
}

// NewVatHandler creates a new VAT handler
func NewVatHandler(vatService *vat.Service) *VatHandler {
	return &VatHandler{
		vatService: vatService,
	}
}

// CustomerSearch looks the customer up by exact email and reports whether
// the exemption tag is present.
// POST /api/v1/vat/customer-search
func (h *VatHandler) CustomerSearch(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req CustomerSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.vatService.CustomerSearch(c.Request.Context(), vat.CustomerSearchInput{
		Email:        req.Email,
		SessionEmail: session.Email,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newCustomerSearchResponse(result))
}

// SubmitExemption validates the VAT number, writes it to the customer's
// metafield, tags the customer for merchant review, and records the audit
// row.
// POST /api/v1/vat/exemptions
func (h *VatHandler) SubmitExemption(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req SubmitExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.vatService.SubmitExemption(c.Request.Context(), vat.SubmitExemptionInput{
		Email:        req.Email,
		VATNumber:    req.VATNumber,
		CountryCode:  req.CountryCode,
		CompanyName:  req.CompanyName,
		SessionEmail: session.Email,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newSubmitExemptionResponse(result))
}

// ListExemptions returns the customer's own audit rows, newest first.
// GET /api/v1/vat/exemptions?limit=
func (h *VatHandler) ListExemptions(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	var query ListExemptionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	requests, err := h.vatService.ListExemptions(c.Request.Context(), vat.ListExemptionsInput{
		CustomerID: session.CustomerID,
		Limit:      query.Limit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newExemptionRequestResponses(requests))
}
