package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// BoqRepository provides access to BOQs and their RFQ line items
type BoqRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Boq, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListLineItems(ctx context.Context, rfqID uuid.UUID) ([]models.RfqLineItem, error)
}

type boqRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewBoqRepository creates a new BOQ repository
func NewBoqRepository(db *gorm.DB, readOnlyDB *gorm.DB) BoqRepository {
	return &boqRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a BOQ by ID from the write database, since callers go on to mutate it
func (r *boqRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Boq, error) {
	var boq models.Boq
	err := r.db.WithContext(ctx).First(&boq, "id = ?", id).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get BOQ by ID")
	}
	return &boq, nil
}

// UpdateStatus sets the status of a BOQ
func (r *boqRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Boq{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update BOQ status")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLineItems returns the line items of an RFQ ordered by line number
func (r *boqRepository) ListLineItems(ctx context.Context, rfqID uuid.UUID) ([]models.RfqLineItem, error) {
	var items []models.RfqLineItem
	err := r.readOnlyDB.WithContext(ctx).
		Where("rfq_id = ?", rfqID).
		Order("line_number ASC").
		Find(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list RFQ line items")
	}
	return items, nil
}
