package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type lifecycleFixture struct {
	access    *MockAccessRepository
	sections  *MockSectionRepository
	suppliers *MockSupplierRepository
	clock     *clockwork.FakeClock
	lifecycle *AccessLifecycle
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		access:    new(MockAccessRepository),
		sections:  new(MockSectionRepository),
		suppliers: new(MockSupplierRepository),
		clock:     clockwork.NewFakeClockAt(testNow),
	}
	f.lifecycle = NewAccessLifecycle(f.access, f.sections, f.suppliers, capability.Default(), f.clock, metrics.NewMetrics())
	return f
}

func pendingAccess(boqID, supplierID uuid.UUID, sections ...string) *models.BoqSupplierAccess {
	return &models.BoqSupplierAccess{
		ID:                uuid.New(),
		BoqID:             boqID,
		SupplierProfileID: supplierID,
		AllowedSections:   pq.StringArray(sections),
		Status:            models.AccessStatusPending,
	}
}

func validQuote() *models.QuotePayload {
	return &models.QuotePayload{
		UnitPrices: map[string]map[int]decimal.Decimal{
			capability.SectionFlanges: {0: decimal.RequireFromString("310.00")},
		},
	}
}

func TestMarkViewedOnlyOnce(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)
	f.access.On("Update", mock.Anything, record).Return(nil).Once()

	got, err := f.lifecycle.MarkViewed(context.Background(), boqID, supplierID)
	require.NoError(t, err)
	require.Equal(t, models.AccessStatusViewed, got.Status)
	require.Equal(t, testNow, *got.ViewedAt)

	f.clock.Advance(time.Hour)
	got, err = f.lifecycle.MarkViewed(context.Background(), boqID, supplierID)
	require.NoError(t, err)
	require.Equal(t, testNow, *got.ViewedAt)

	f.access.AssertExpectations(t)
	f.access.AssertNumberOfCalls(t, "Update", 1)
}

func TestMarkViewedKeepsResponseStatus(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
	record.Status = models.AccessStatusQuoted

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)
	f.access.On("Update", mock.Anything, record).Return(nil)

	got, err := f.lifecycle.MarkViewed(context.Background(), boqID, supplierID)
	require.NoError(t, err)
	require.Equal(t, models.AccessStatusQuoted, got.Status)
	require.NotNil(t, got.ViewedAt)
}

func TestLifecycleAccessNotFound(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	f.access.On("Find", mock.Anything, boqID, supplierID).Return(nil, repositories.ErrNotFound)

	_, err := f.lifecycle.MarkViewed(context.Background(), boqID, supplierID)
	require.ErrorIs(t, err, ErrAccessNotFound)

	_, err = f.lifecycle.Decline(context.Background(), boqID, supplierID, "busy")
	require.ErrorIs(t, err, ErrAccessNotFound)

	_, err = f.lifecycle.SubmitQuote(context.Background(), boqID, supplierID, validQuote())
	require.ErrorIs(t, err, ErrAccessNotFound)
}

func TestDecline(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

	_, err := f.lifecycle.Decline(context.Background(), boqID, supplierID, "   ")
	require.ErrorIs(t, err, ErrDeclineReasonRequired)
	f.access.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)

	f.access.On("Update", mock.Anything, record).Return(nil)
	got, err := f.lifecycle.Decline(context.Background(), boqID, supplierID, "  No capacity this month ")
	require.NoError(t, err)
	require.Equal(t, models.AccessStatusDeclined, got.Status)
	require.Equal(t, "No capacity this month", *got.DeclineReason)
	require.Equal(t, testNow, *got.RespondedAt)
}

func TestDeclineRejectsQuoted(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	submitted := testNow.Add(-time.Hour)
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
	record.Status = models.AccessStatusQuoted
	record.QuoteSubmittedAt = &submitted

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

	_, err := f.lifecycle.Decline(context.Background(), boqID, supplierID, "changed mind")
	require.ErrorIs(t, err, ErrAccessTerminal)
	require.Equal(t, models.AccessStatusQuoted, record.Status)
	require.Nil(t, record.DeclineReason)
	f.access.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeclineTwiceKeepsFirstReason(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	first := "No capacity"
	responded := testNow.Add(-24 * time.Hour)
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
	record.Status = models.AccessStatusDeclined
	record.DeclineReason = &first
	record.RespondedAt = &responded

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

	_, err := f.lifecycle.Decline(context.Background(), boqID, supplierID, "Still busy")
	require.ErrorIs(t, err, ErrAccessTerminal)
	require.Equal(t, "No capacity", *record.DeclineReason)
	require.Equal(t, responded, *record.RespondedAt)
	f.access.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSaveQuoteProgressRejectsTerminalStates(t *testing.T) {
	for _, status := range []string{models.AccessStatusQuoted, models.AccessStatusDeclined} {
		t.Run(status, func(t *testing.T) {
			f := newLifecycleFixture()
			boqID, supplierID := uuid.New(), uuid.New()
			record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
			record.Status = status

			f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

			_, err := f.lifecycle.SaveQuoteProgress(context.Background(), boqID, supplierID, validQuote())
			require.ErrorIs(t, err, ErrAccessTerminal)
			require.Nil(t, record.QuoteSavedAt)
			f.access.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestSaveQuoteProgressKeepsStatus(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
	record.Status = models.AccessStatusViewed
	draft := &models.QuotePayload{Notes: "prices pending from mill"}

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)
	f.access.On("Update", mock.Anything, record).Return(nil)

	got, err := f.lifecycle.SaveQuoteProgress(context.Background(), boqID, supplierID, draft)
	require.NoError(t, err)
	require.Equal(t, models.AccessStatusViewed, got.Status)
	require.Equal(t, draft, got.QuoteData.Data())
	require.Equal(t, testNow, *got.QuoteSavedAt)
	require.Nil(t, got.QuoteSubmittedAt)
}

func TestSubmitQuote(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)
	record.Status = models.AccessStatusDeclined

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

	_, err := f.lifecycle.SubmitQuote(context.Background(), boqID, supplierID, &models.QuotePayload{})
	require.ErrorIs(t, err, ErrInvalidQuote)
	require.Contains(t, err.Error(), "unitPrices")

	_, err = f.lifecycle.SubmitQuote(context.Background(), boqID, supplierID, nil)
	require.ErrorIs(t, err, ErrInvalidQuote)

	f.access.On("Update", mock.Anything, record).Return(nil)
	got, err := f.lifecycle.SubmitQuote(context.Background(), boqID, supplierID, validQuote())
	require.NoError(t, err)
	require.Equal(t, models.AccessStatusQuoted, got.Status)
	require.Equal(t, testNow, *got.QuoteSubmittedAt)
	require.Equal(t, testNow, *got.QuoteSavedAt)
	require.Equal(t, testNow, *got.RespondedAt)
}

func TestSetReminder(t *testing.T) {
	f := newLifecycleFixture()
	boqID, supplierID := uuid.New(), uuid.New()
	record := pendingAccess(boqID, supplierID, capability.SectionFlanges)

	f.access.On("Find", mock.Anything, boqID, supplierID).Return(record, nil)

	for _, days := range []int{0, 31, -2} {
		d := days
		_, err := f.lifecycle.SetReminder(context.Background(), boqID, supplierID, &d)
		require.ErrorIs(t, err, ErrInvalidReminder)
	}

	f.access.On("Update", mock.Anything, record).Return(nil)
	seven := 7
	got, err := f.lifecycle.SetReminder(context.Background(), boqID, supplierID, &seven)
	require.NoError(t, err)
	require.Equal(t, 7, *got.ReminderDays)
	require.Equal(t, models.AccessStatusPending, got.Status)

	got, err = f.lifecycle.SetReminder(context.Background(), boqID, supplierID, nil)
	require.NoError(t, err)
	require.Nil(t, got.ReminderDays)
}

func section(boqID uuid.UUID, sectionType string, position int) models.BoqSection {
	key, _ := capability.Default().CapabilityForSection(sectionType)
	return models.BoqSection{
		ID:            uuid.New(),
		BoqID:         boqID,
		SectionType:   sectionType,
		CapabilityKey: key,
		SectionTitle:  capability.Default().SectionTitle(sectionType),
		Position:      position,
	}
}

func TestRecomputeForSupplier(t *testing.T) {
	f := newLifecycleFixture()
	supplierID := uuid.New()
	boqA, boqB, boqC := uuid.New(), uuid.New(), uuid.New()

	narrowed := *pendingAccess(boqA, supplierID, capability.SectionGaskets, capability.SectionFlanges)
	pruned := *pendingAccess(boqB, supplierID, capability.SectionBnwSets)
	pruned.Status = models.AccessStatusDeclined
	same := *pendingAccess(boqC, supplierID, capability.SectionFlanges)
	same.Status = models.AccessStatusViewed

	f.access.On("FindBySupplier", mock.Anything, supplierID,
		[]string{models.AccessStatusPending, models.AccessStatusViewed, models.AccessStatusDeclined}).
		Return([]models.BoqSupplierAccess{narrowed, pruned, same}, nil)
	f.suppliers.On("FindActiveCapabilities", mock.Anything, []uuid.UUID{supplierID}).
		Return([]models.SupplierCapability{
			{SupplierProfileID: supplierID, ProductCategory: "FLANGES", IsActive: true},
			{SupplierProfileID: supplierID, ProductCategory: "FITTINGS", IsActive: true},
		}, nil)
	f.sections.On("FindForBoqs", mock.Anything, []uuid.UUID{boqA, boqB, boqC}).
		Return([]models.BoqSection{
			section(boqA, capability.SectionBends, 0),
			section(boqA, capability.SectionFlanges, 1),
			section(boqA, capability.SectionGaskets, 2),
			section(boqB, capability.SectionBnwSets, 0),
			section(boqC, capability.SectionFlanges, 0),
		}, nil)
	f.access.On("Remove", mock.Anything, mock.MatchedBy(func(rs []*models.BoqSupplierAccess) bool {
		return len(rs) == 1 && rs[0].ID == pruned.ID
	})).Return(nil)

	var updated []*models.BoqSupplierAccess
	f.access.On("UpdateBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).([]*models.BoqSupplierAccess)
		}).
		Return(nil)

	result, err := f.lifecycle.RecomputeForSupplier(context.Background(), supplierID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 1, result.Removed)
	require.Equal(t, 1, result.Unchanged)
	require.ElementsMatch(t, []uuid.UUID{boqA, boqB}, result.AffectedBoqs)

	require.Len(t, updated, 1)
	require.Equal(t, narrowed.ID, updated[0].ID)
	// Only sections present on the BOQ, in BOQ order
	require.Equal(t, []string{capability.SectionBends, capability.SectionFlanges}, []string(updated[0].AllowedSections))

	f.access.AssertExpectations(t)
	f.suppliers.AssertExpectations(t)
	f.sections.AssertExpectations(t)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newLifecycleFixture()
	supplierID, boqID := uuid.New(), uuid.New()
	record := *pendingAccess(boqID, supplierID, capability.SectionFlanges, capability.SectionBends)

	f.access.On("FindBySupplier", mock.Anything, supplierID, mock.Anything).
		Return([]models.BoqSupplierAccess{record}, nil)
	f.suppliers.On("FindActiveCapabilities", mock.Anything, []uuid.UUID{supplierID}).
		Return([]models.SupplierCapability{{SupplierProfileID: supplierID, ProductCategory: "BENDS"}}, nil)
	f.sections.On("FindForBoqs", mock.Anything, []uuid.UUID{boqID}).
		Return([]models.BoqSection{
			section(boqID, capability.SectionBends, 0),
			section(boqID, capability.SectionFlanges, 1),
		}, nil)
	f.access.On("Remove", mock.Anything, mock.Anything).Return(nil)
	f.access.On("UpdateBatch", mock.Anything, mock.Anything).Return(nil)

	result, err := f.lifecycle.RecomputeForSupplier(context.Background(), supplierID)
	require.NoError(t, err)
	require.Equal(t, 0, result.Updated)
	require.Equal(t, 0, result.Removed)
	require.Equal(t, 1, result.Unchanged)
	require.Empty(t, result.AffectedBoqs)
}

func TestRecomputeWithoutOpenRecords(t *testing.T) {
	f := newLifecycleFixture()
	supplierID := uuid.New()
	f.access.On("FindBySupplier", mock.Anything, supplierID, mock.Anything).
		Return([]models.BoqSupplierAccess{}, nil)

	result, err := f.lifecycle.RecomputeForSupplier(context.Background(), supplierID)
	require.NoError(t, err)
	require.Equal(t, RecomputeResult{AffectedBoqs: []uuid.UUID{}}, *result)
	f.suppliers.AssertNotCalled(t, "FindActiveCapabilities", mock.Anything, mock.Anything)
}

func TestSameSections(t *testing.T) {
	require.True(t, sameSections([]string{"a", "b"}, []string{"b", "a"}))
	require.False(t, sameSections([]string{"a"}, []string{"a", "b"}))
	require.False(t, sameSections([]string{"a", "c"}, []string{"a", "b"}))
}
