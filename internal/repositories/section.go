package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// SectionRepository persists BOQ sections
type SectionRepository interface {
	DeleteForBoq(ctx context.Context, boqID uuid.UUID) error
	Create(ctx context.Context, sections []models.BoqSection) error
	ReplaceForBoq(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection) error
	Find(ctx context.Context, boqID uuid.UUID, sectionTypes ...string) ([]models.BoqSection, error)
	FindForBoqs(ctx context.Context, boqIDs []uuid.UUID) ([]models.BoqSection, error)
}

type sectionRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(db *gorm.DB, readOnlyDB *gorm.DB) SectionRepository {
	return &sectionRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// DeleteForBoq removes every section of a BOQ
func (r *sectionRepository) DeleteForBoq(ctx context.Context, boqID uuid.UUID) error {
	return deleteSections(r.db.WithContext(ctx), boqID)
}

// Create inserts sections
func (r *sectionRepository) Create(ctx context.Context, sections []models.BoqSection) error {
	return createSections(r.db.WithContext(ctx), sections)
}

// ReplaceForBoq deletes the existing sections of a BOQ and inserts the new ones in a
// single transaction
func (r *sectionRepository) ReplaceForBoq(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSections(tx, boqID); err != nil {
			return err
		}
		return createSections(tx, sections)
	})
}

// Find returns the sections of a BOQ, optionally restricted to some section types
func (r *sectionRepository) Find(ctx context.Context, boqID uuid.UUID, sectionTypes ...string) ([]models.BoqSection, error) {
	var sections []models.BoqSection
	q := r.readOnlyDB.WithContext(ctx).Where("boq_id = ?", boqID)
	if len(sectionTypes) > 0 {
		q = q.Where("section_type IN ?", sectionTypes)
	}
	if err := q.Order("position ASC").Find(&sections).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find BOQ sections")
	}
	return sections, nil
}

// FindForBoqs returns the sections of several BOQs in one query. It reads the primary so
// that a recompute sees sections written moments earlier.
func (r *sectionRepository) FindForBoqs(ctx context.Context, boqIDs []uuid.UUID) ([]models.BoqSection, error) {
	if len(boqIDs) == 0 {
		return nil, nil
	}
	var sections []models.BoqSection
	err := r.db.WithContext(ctx).
		Where("boq_id IN ?", boqIDs).
		Order("boq_id, position ASC").
		Find(&sections).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find sections for BOQs")
	}
	return sections, nil
}

func deleteSections(tx *gorm.DB, boqID uuid.UUID) error {
	if err := tx.Where("boq_id = ?", boqID).Delete(&models.BoqSection{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete BOQ sections")
	}
	return nil
}

func createSections(tx *gorm.DB, sections []models.BoqSection) error {
	if len(sections) == 0 {
		return nil
	}
	if err := tx.Create(&sections).Error; err != nil {
		return errors.Wrap(err, "failed to create BOQ sections")
	}
	return nil
}
