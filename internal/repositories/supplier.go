package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// SupplierRepository reads the supplier directory. Matching and recompute reads go to the
// primary since their results are written back as access records.
type SupplierRepository interface {
	FindApprovedActive(ctx context.Context) ([]uuid.UUID, error)
	FindActiveCapabilities(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierCapability, error)
	FindContacts(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierProfile, error)
}

type supplierRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db, readOnlyDB *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db, readOnlyDB: readOnlyDB}
}

// FindApprovedActive returns the ids of suppliers with an approved onboarding and an
// active account
func (r *supplierRepository) FindApprovedActive(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.SupplierOnboarding{}).
		Joins("JOIN supplier_profiles ON supplier_profiles.id = supplier_onboardings.supplier_id AND supplier_profiles.deleted_at IS NULL").
		Where("supplier_onboardings.status = ?", models.OnboardingApproved).
		Where("supplier_profiles.account_status = ?", models.SupplierAccountActive).
		Order("supplier_onboardings.supplier_id").
		Pluck("supplier_onboardings.supplier_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find approved active suppliers")
	}
	return ids, nil
}

// FindActiveCapabilities returns the active capability declarations of the given suppliers
func (r *supplierRepository) FindActiveCapabilities(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierCapability, error) {
	if len(supplierIDs) == 0 {
		return nil, nil
	}
	var caps []models.SupplierCapability
	err := r.db.WithContext(ctx).
		Where("supplier_profile_id IN ? AND is_active = ?", supplierIDs, true).
		Find(&caps).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find supplier capabilities")
	}
	return caps, nil
}

// FindContacts loads the given supplier profiles with their login and company
func (r *supplierRepository) FindContacts(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierProfile, error) {
	if len(supplierIDs) == 0 {
		return nil, nil
	}
	var profiles []models.SupplierProfile
	err := r.readOnlyDB.WithContext(ctx).
		Preload("User").
		Preload("Company").
		Where("id IN ?", supplierIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find supplier contacts")
	}
	return profiles, nil
}
