package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// AccessRepository persists supplier access records
type AccessRepository interface {
	DeleteForBoq(ctx context.Context, boqID uuid.UUID) error
	Create(ctx context.Context, records []models.BoqSupplierAccess) error
	ReplaceForBoq(ctx context.Context, boqID uuid.UUID, records []models.BoqSupplierAccess) error
	Find(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error)
	FindByBoq(ctx context.Context, boqID uuid.UUID) ([]models.BoqSupplierAccess, error)
	FindBySupplier(ctx context.Context, supplierID uuid.UUID, statuses ...string) ([]models.BoqSupplierAccess, error)
	ListForSupplier(ctx context.Context, supplierID uuid.UUID, status string) ([]models.BoqSupplierAccess, error)
	Update(ctx context.Context, record *models.BoqSupplierAccess) error
	UpdateBatch(ctx context.Context, records []*models.BoqSupplierAccess) error
	Remove(ctx context.Context, records []*models.BoqSupplierAccess) error
	FindDueReminders(ctx context.Context, now time.Time) ([]models.BoqSupplierAccess, error)
}

type accessRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAccessRepository creates a new supplier access repository
func NewAccessRepository(db *gorm.DB, readOnlyDB *gorm.DB) AccessRepository {
	return &accessRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// DeleteForBoq removes every access record of a BOQ
func (r *accessRepository) DeleteForBoq(ctx context.Context, boqID uuid.UUID) error {
	return deleteAccess(r.db.WithContext(ctx), boqID)
}

// Create inserts access records
func (r *accessRepository) Create(ctx context.Context, records []models.BoqSupplierAccess) error {
	return createAccess(r.db.WithContext(ctx), records)
}

// ReplaceForBoq deletes the access records of a BOQ and creates the given ones in one
// transaction, so readers never see both generations
func (r *accessRepository) ReplaceForBoq(ctx context.Context, boqID uuid.UUID, records []models.BoqSupplierAccess) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAccess(tx, boqID); err != nil {
			return err
		}
		return createAccess(tx, records)
	})
}

// Find gets the access record of one supplier on one BOQ
func (r *accessRepository) Find(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	var record models.BoqSupplierAccess
	err := r.db.WithContext(ctx).
		Preload("Boq").
		Where("boq_id = ? AND supplier_profile_id = ?", boqID, supplierID).
		First(&record).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find supplier access")
	}
	return &record, nil
}

// FindByBoq returns every access record of a BOQ
func (r *accessRepository) FindByBoq(ctx context.Context, boqID uuid.UUID) ([]models.BoqSupplierAccess, error) {
	var records []models.BoqSupplierAccess
	err := r.db.WithContext(ctx).
		Where("boq_id = ?", boqID).
		Order("supplier_profile_id").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find access records for BOQ")
	}
	return records, nil
}

// FindBySupplier returns the access records of a supplier, optionally filtered by status.
// It reads from the write database because callers update what they find.
func (r *accessRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID, statuses ...string) ([]models.BoqSupplierAccess, error) {
	var records []models.BoqSupplierAccess
	q := r.db.WithContext(ctx).Where("supplier_profile_id = ?", supplierID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find access records for supplier")
	}
	return records, nil
}

// ListForSupplier returns the supplier's portal listing, newest first, with BOQs attached
func (r *accessRepository) ListForSupplier(ctx context.Context, supplierID uuid.UUID, status string) ([]models.BoqSupplierAccess, error) {
	var records []models.BoqSupplierAccess
	q := r.readOnlyDB.WithContext(ctx).
		Preload("Boq").
		Where("supplier_profile_id = ?", supplierID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list supplier BOQs")
	}
	return records, nil
}

// Update saves one access record
func (r *accessRepository) Update(ctx context.Context, record *models.BoqSupplierAccess) error {
	result := r.db.WithContext(ctx).Omit("Boq").Save(record)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update supplier access")
	}
	if result.RowsAffected == 0 {
		return ErrUpdateFailed
	}
	return nil
}

// UpdateBatch saves several access records in one transaction
func (r *accessRepository) UpdateBatch(ctx context.Context, records []*models.BoqSupplierAccess) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Omit("Boq").Save(record).Error; err != nil {
				return errors.Wrapf(err, "failed to update supplier access %s", record.ID)
			}
		}
		return nil
	})
}

// Remove deletes the given access records
func (r *accessRepository) Remove(ctx context.Context, records []*models.BoqSupplierAccess) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.BoqSupplierAccess{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to remove supplier access")
	}
	return nil
}

// FindDueReminders returns open access records whose reminder interval has elapsed since
// the last notice or reminder
func (r *accessRepository) FindDueReminders(ctx context.Context, now time.Time) ([]models.BoqSupplierAccess, error) {
	var records []models.BoqSupplierAccess
	err := r.db.WithContext(ctx).
		Preload("Boq").
		Where("reminder_days IS NOT NULL").
		Where("status IN ?", []string{models.AccessStatusPending, models.AccessStatusViewed}).
		Where("COALESCE(reminder_sent_at, notification_sent_at, created_at) + make_interval(days => reminder_days) <= ?", now).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find due reminders")
	}
	return records, nil
}

func deleteAccess(tx *gorm.DB, boqID uuid.UUID) error {
	if err := tx.Where("boq_id = ?", boqID).Delete(&models.BoqSupplierAccess{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete supplier access for BOQ")
	}
	return nil
}

func createAccess(tx *gorm.DB, records []models.BoqSupplierAccess) error {
	if len(records) == 0 {
		return nil
	}
	if err := tx.Omit("Boq").Create(&records).Error; err != nil {
		return errors.Wrap(err, "failed to create supplier access")
	}
	return nil
}
