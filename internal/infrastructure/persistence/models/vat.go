package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// VatExemptionRequestModel is the persistence model for the ExemptionRequest
// domain entity. Shopify holds the authoritative exemption state; this table
// is the merchant-facing audit trail of submissions.
type VatExemptionRequestModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	CustomerID  string    `gorm:"type:varchar(64);not null;index:idx_vat_exemption_customer"`
	Email       string    `gorm:"type:varchar(255);not null"`
	VatNumber   string    `gorm:"type:varchar(32);not null;column:vat_number"`
	CountryCode string    `gorm:"type:varchar(2);not null"`
	CompanyName string    `gorm:"type:varchar(255)"`
	Status      string    `gorm:"type:varchar(20);not null;default:'SUBMITTED';index:idx_vat_exemption_status"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName pins the table so a model rename cannot move the audit data.
func (VatExemptionRequestModel) TableName() string {
	return "vat_exemption_requests"
}

// ToDomain converts the persistence model to a domain ExemptionRequest
func (m *VatExemptionRequestModel) ToDomain() *storefront.ExemptionRequest {
	return &storefront.ExemptionRequest{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Email:       m.Email,
		VATNumber:   m.VatNumber,
		CountryCode: m.CountryCode,
		CompanyName: m.CompanyName,
		Status:      storefront.ExemptionStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ExemptionRequest
func (m *VatExemptionRequestModel) FromDomain(req *storefront.ExemptionRequest) {
	m.ID = req.ID
	m.CustomerID = req.CustomerID
	m.Email = req.Email
	m.VatNumber = req.VATNumber
	m.CountryCode = req.CountryCode
	m.CompanyName = req.CompanyName
	m.Status = req.Status.String()
	m.CreatedAt = req.CreatedAt
	m.UpdatedAt = req.UpdatedAt
}
