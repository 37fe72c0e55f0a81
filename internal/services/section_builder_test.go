package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/consolidation"
	"github.com/AnnixInvestments/annix-sub017/internal/derivation"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

func scenarioLineItems() []models.RfqLineItem {
	return []models.RfqLineItem{
		{
			LineNumber: 1,
			ItemType:   derivation.ItemTypeBend,
			Quantity:   4,
			Details: datatypes.NewJSONType(models.RfqItemDetails{
				NominalBoreMm:    100,
				EndConfiguration: "FOE",
			}),
		},
		{
			LineNumber: 2,
			ItemType:   derivation.ItemTypeFitting,
			Quantity:   2,
			Details: datatypes.NewJSONType(models.RfqItemDetails{
				NominalBoreMm:       100,
				BranchNominalBoreMm: 50,
				EndConfiguration:    "FAE",
				AddBlankFlange:      true,
				BlankFlangeCount:    1,
			}),
		},
	}
}

func TestBuildFromConsolidation(t *testing.T) {
	sections := new(MockSectionRepository)
	builder := NewSectionBuilder(sections, capability.Default(), metrics.NewMetrics())
	boqID := uuid.New()

	sections.On("ReplaceForBoq", mock.Anything, boqID, mock.Anything).Return(nil)

	result := consolidation.NewEngine(consolidation.Options{}).Consolidate(scenarioLineItems())
	got, err := builder.BuildFromConsolidation(context.Background(), boqID, result)
	require.NoError(t, err)

	require.Equal(t, []string{
		capability.SectionFlanges,
		capability.SectionBlankFlanges,
		capability.SectionBnwSets,
		capability.SectionGaskets,
	}, sectionTypes(got))

	flanges := got[0]
	require.Equal(t, boqID, flanges.BoqID)
	require.Equal(t, 0, flanges.Position)
	require.Equal(t, capability.FabricatedSteel, flanges.CapabilityKey)
	require.Equal(t, "Flanges", flanges.SectionTitle)
	require.Equal(t, 2, flanges.ItemCount)

	first := flanges.Items.Data()[0]
	require.Equal(t, 1, first.LineNumber)
	require.Equal(t, "100NB Slip On Flange PN16", first.Description)
	require.True(t, decimal.NewFromInt(8).Equal(first.Quantity))
	require.True(t, decimal.NewFromInt(6).Equal(first.UnitWeightKg))
	require.True(t, decimal.NewFromInt(48).Equal(first.TotalWeightKg))
	require.Equal(t, []int{1, 2}, first.Entries)

	require.Equal(t, capability.FastenersGaskets, got[2].CapabilityKey)
	require.Equal(t, 3, got[3].Position)
	sections.AssertExpectations(t)
}

func TestBuildFromSupplied(t *testing.T) {
	sections := new(MockSectionRepository)
	m := metrics.NewMetrics()
	builder := NewSectionBuilder(sections, capability.Default(), m)
	boqID := uuid.New()

	data := &ConsolidatedBoqData{
		HdpePipes: []SuppliedItem{
			{Description: "HDPE PE100 SDR11 110mm", Qty: decimal.NewFromInt(12), Unit: "m", WeightKg: decimal.RequireFromString("40")},
		},
		Flanges: []SuppliedItem{
			{Description: "200NB Weld Neck PN16", Qty: decimal.NewFromInt(3), Unit: "Each", WeightKg: decimal.NewFromInt(10)},
			{Description: "Zero qty line", Qty: decimal.Zero, Unit: "Each", WeightKg: decimal.Zero},
		},
	}

	var stored []models.BoqSection
	sections.On("ReplaceForBoq", mock.Anything, boqID, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(2).([]models.BoqSection)
		}).
		Return(nil)

	got, err := builder.BuildFromSupplied(context.Background(), boqID, data)
	require.NoError(t, err)
	require.Equal(t, got, stored)

	// Canonical order regardless of payload field order
	require.Equal(t, []string{capability.SectionFlanges, capability.SectionHdpePipes}, sectionTypes(got))
	require.Equal(t, capability.Hdpe, got[1].CapabilityKey)

	items := got[0].Items.Data()
	require.Equal(t, "3.333", items[0].UnitWeightKg.String())
	require.True(t, items[1].UnitWeightKg.IsZero())
	require.True(t, decimal.NewFromInt(10).Equal(got[0].TotalWeightKg))
	require.Equal(t, int64(2), m.GetCounters()[metrics.SectionsCreated])
}

func TestBuildSectionsPropagatesStoreErrors(t *testing.T) {
	sections := new(MockSectionRepository)
	builder := NewSectionBuilder(sections, capability.Default(), metrics.NewMetrics())
	boqID := uuid.New()
	sections.On("ReplaceForBoq", mock.Anything, boqID, mock.Anything).Return(errors.New("deadlock detected"))

	_, err := builder.BuildFromSupplied(context.Background(), boqID, &ConsolidatedBoqData{
		Gaskets: []SuppliedItem{{Description: "CAF 100NB", Qty: decimal.NewFromInt(1), Unit: "Each"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "deadlock detected")
}

func TestConsolidatedBoqDataIsEmpty(t *testing.T) {
	require.True(t, (&ConsolidatedBoqData{}).IsEmpty())
	require.False(t, (&ConsolidatedBoqData{Tees: []SuppliedItem{{Description: "Equal tee"}}}).IsEmpty())
}
