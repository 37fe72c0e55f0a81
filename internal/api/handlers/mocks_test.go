package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/search"
	"github.com/AnnixInvestments/annix-sub017/internal/services"
)

// MockService is a mock of the distribution service
type MockService struct {
	mock.Mock
}

func (m *MockService) SubmitForQuotation(ctx context.Context, boqID uuid.UUID, req services.SubmissionRequest) (*services.SubmissionResult, error) {
	args := m.Called(ctx, boqID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmissionResult), args.Error(1)
}

func (m *MockService) HandleBoqUpdate(ctx context.Context, boqID uuid.UUID, req services.SubmissionRequest) (*services.SubmissionResult, error) {
	args := m.Called(ctx, boqID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmissionResult), args.Error(1)
}

func (m *MockService) SearchSections(ctx context.Context, text string, limit int) ([]search.SectionDocument, error) {
	args := m.Called(ctx, text, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]search.SectionDocument), args.Error(1)
}

func (m *MockService) GetSupplierBoqs(ctx context.Context, supplierID uuid.UUID, status string) ([]services.SupplierBoqListing, error) {
	args := m.Called(ctx, supplierID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.SupplierBoqListing), args.Error(1)
}

func (m *MockService) GetFilteredBoqForSupplier(ctx context.Context, boqID, supplierID uuid.UUID) (*services.SupplierBoqView, error) {
	args := m.Called(ctx, boqID, supplierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SupplierBoqView), args.Error(1)
}

func (m *MockService) accessResult(args mock.Arguments) (*models.BoqSupplierAccess, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BoqSupplierAccess), args.Error(1)
}

func (m *MockService) MarkViewed(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	return m.accessResult(m.Called(ctx, boqID, supplierID))
}

func (m *MockService) Decline(ctx context.Context, boqID, supplierID uuid.UUID, reason string) (*models.BoqSupplierAccess, error) {
	return m.accessResult(m.Called(ctx, boqID, supplierID, reason))
}

func (m *MockService) SaveQuoteProgress(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	return m.accessResult(m.Called(ctx, boqID, supplierID, payload))
}

func (m *MockService) SubmitQuote(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	return m.accessResult(m.Called(ctx, boqID, supplierID, payload))
}

func (m *MockService) SetReminder(ctx context.Context, boqID, supplierID uuid.UUID, days *int) (*models.BoqSupplierAccess, error) {
	return m.accessResult(m.Called(ctx, boqID, supplierID, days))
}

func (m *MockService) ExportSupplierBoq(ctx context.Context, boqID, supplierID uuid.UUID) ([]byte, string, error) {
	args := m.Called(ctx, boqID, supplierID)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockService) RecomputeSupplierAccess(ctx context.Context, supplierID uuid.UUID) (*services.RecomputeResult, error) {
	args := m.Called(ctx, supplierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecomputeResult), args.Error(1)
}
