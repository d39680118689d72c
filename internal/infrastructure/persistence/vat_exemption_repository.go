package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/persistence/models"
)

// defaultExemptionListLimit bounds FindByCustomer when the caller passes
// no usable limit.
const defaultExemptionListLimit = 20

// GormVatExemptionRepository implements ExemptionRepository using GORM
type GormVatExemptionRepository struct {
	db *gorm.DB
}

// NewGormVatExemptionRepository creates a new GormVatExemptionRepository
func NewGormVatExemptionRepository(db *gorm.DB) *GormVatExemptionRepository {
	return &GormVatExemptionRepository{db: db}
}

// Create inserts a new exemption request
func (r *GormVatExemptionRepository) Create(ctx context.Context, req *storefront.ExemptionRequest) error {
	var model models.VatExemptionRequestModel
	model.FromDomain(req)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds an exemption request by its ID
func (r *GormVatExemptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*storefront.ExemptionRequest, error) {
	var model models.VatExemptionRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storefront.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer returns the customer's exemption requests, newest first
func (r *GormVatExemptionRepository) FindByCustomer(ctx context.Context, customerID string, limit int) ([]storefront.ExemptionRequest, error) {
	if limit <= 0 {
		limit = defaultExemptionListLimit
	}

	var found []models.VatExemptionRequestModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&found).Error; err != nil {
		return nil, err
	}

	requests := make([]storefront.ExemptionRequest, 0, len(found))
	for i := range found {
		requests = append(requests, *found[i].ToDomain())
	}
	return requests, nil
}

// HasPending reports whether the customer already has a SUBMITTED request
// for the same VAT number
func (r *GormVatExemptionRepository) HasPending(ctx context.Context, customerID, vatNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.VatExemptionRequestModel{}).
		Where("customer_id = ? AND vat_number = ? AND status = ?",
			customerID, vatNumber, storefront.ExemptionSubmitted.String()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormVatExemptionRepository implements ExemptionRepository
var _ storefront.ExemptionRepository = (*GormVatExemptionRepository)(nil)
