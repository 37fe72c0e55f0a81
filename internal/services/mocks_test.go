package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/notification"
	"github.com/AnnixInvestments/annix-sub017/internal/search"
)

type MockBoqRepository struct {
	mock.Mock
}

func (m *MockBoqRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Boq, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Boq), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBoqRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockBoqRepository) ListLineItems(ctx context.Context, rfqID uuid.UUID) ([]models.RfqLineItem, error) {
	args := m.Called(ctx, rfqID)
	return args.Get(0).([]models.RfqLineItem), args.Error(1)
}

type MockSectionRepository struct {
	mock.Mock
}

func (m *MockSectionRepository) DeleteForBoq(ctx context.Context, boqID uuid.UUID) error {
	args := m.Called(ctx, boqID)
	return args.Error(0)
}

func (m *MockSectionRepository) Create(ctx context.Context, sections []models.BoqSection) error {
	args := m.Called(ctx, sections)
	return args.Error(0)
}

func (m *MockSectionRepository) ReplaceForBoq(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection) error {
	args := m.Called(ctx, boqID, sections)
	return args.Error(0)
}

func (m *MockSectionRepository) Find(ctx context.Context, boqID uuid.UUID, sectionTypes ...string) ([]models.BoqSection, error) {
	args := m.Called(ctx, boqID, sectionTypes)
	return args.Get(0).([]models.BoqSection), args.Error(1)
}

func (m *MockSectionRepository) FindForBoqs(ctx context.Context, boqIDs []uuid.UUID) ([]models.BoqSection, error) {
	args := m.Called(ctx, boqIDs)
	return args.Get(0).([]models.BoqSection), args.Error(1)
}

type MockAccessRepository struct {
	mock.Mock
}

func (m *MockAccessRepository) DeleteForBoq(ctx context.Context, boqID uuid.UUID) error {
	args := m.Called(ctx, boqID)
	return args.Error(0)
}

func (m *MockAccessRepository) Create(ctx context.Context, records []models.BoqSupplierAccess) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAccessRepository) ReplaceForBoq(ctx context.Context, boqID uuid.UUID, records []models.BoqSupplierAccess) error {
	args := m.Called(ctx, boqID, records)
	return args.Error(0)
}

func (m *MockAccessRepository) Find(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	args := m.Called(ctx, boqID, supplierID)
	if v := args.Get(0); v != nil {
		return v.(*models.BoqSupplierAccess), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccessRepository) FindByBoq(ctx context.Context, boqID uuid.UUID) ([]models.BoqSupplierAccess, error) {
	args := m.Called(ctx, boqID)
	return args.Get(0).([]models.BoqSupplierAccess), args.Error(1)
}

func (m *MockAccessRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID, statuses ...string) ([]models.BoqSupplierAccess, error) {
	args := m.Called(ctx, supplierID, statuses)
	return args.Get(0).([]models.BoqSupplierAccess), args.Error(1)
}

func (m *MockAccessRepository) ListForSupplier(ctx context.Context, supplierID uuid.UUID, status string) ([]models.BoqSupplierAccess, error) {
	args := m.Called(ctx, supplierID, status)
	return args.Get(0).([]models.BoqSupplierAccess), args.Error(1)
}

func (m *MockAccessRepository) Update(ctx context.Context, record *models.BoqSupplierAccess) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAccessRepository) UpdateBatch(ctx context.Context, records []*models.BoqSupplierAccess) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAccessRepository) Remove(ctx context.Context, records []*models.BoqSupplierAccess) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAccessRepository) FindDueReminders(ctx context.Context, now time.Time) ([]models.BoqSupplierAccess, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.BoqSupplierAccess), args.Error(1)
}

type MockSupplierRepository struct {
	mock.Mock
}

func (m *MockSupplierRepository) FindApprovedActive(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSupplierRepository) FindActiveCapabilities(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierCapability, error) {
	args := m.Called(ctx, supplierIDs)
	return args.Get(0).([]models.SupplierCapability), args.Error(1)
}

func (m *MockSupplierRepository) FindContacts(ctx context.Context, supplierIDs []uuid.UUID) ([]models.SupplierProfile, error) {
	args := m.Called(ctx, supplierIDs)
	return args.Get(0).([]models.SupplierProfile), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendDistributionNotice(ctx context.Context, n notification.Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockSender) SendUpdateNotice(ctx context.Context, n notification.Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockSender) SendReminderNotice(ctx context.Context, n notification.Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, body interface{}) error {
	args := m.Called(ctx, eventType, body)
	return args.Error(0)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) IndexSections(ctx context.Context, boq *models.Boq, sections []models.BoqSection) error {
	args := m.Called(ctx, boq, sections)
	return args.Error(0)
}

func (m *MockIndex) SearchSections(ctx context.Context, text string, limit int) ([]search.SectionDocument, error) {
	args := m.Called(ctx, text, limit)
	return args.Get(0).([]search.SectionDocument), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}
