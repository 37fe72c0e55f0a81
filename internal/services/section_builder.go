package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/consolidation"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
)

const weightPlaces = 3

// SuppliedItem is one consolidated line computed by the caller
type SuppliedItem struct {
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        string          `json:"unit"`
	WeightKg    decimal.Decimal `json:"weightKg"`
	Entries     []int           `json:"entries,omitempty"`
}

// ConsolidatedBoqData is a caller-computed BOQ, one list per section
type ConsolidatedBoqData struct {
	StraightPipes     []SuppliedItem `json:"straightPipes,omitempty"`
	Bends             []SuppliedItem `json:"bends,omitempty"`
	Tees              []SuppliedItem `json:"tees,omitempty"`
	Reducers          []SuppliedItem `json:"reducers,omitempty"`
	Flanges           []SuppliedItem `json:"flanges,omitempty"`
	BlankFlanges      []SuppliedItem `json:"blankFlanges,omitempty"`
	BnwSets           []SuppliedItem `json:"bnwSets,omitempty"`
	Gaskets           []SuppliedItem `json:"gaskets,omitempty"`
	SurfaceProtection []SuppliedItem `json:"surfaceProtection,omitempty"`
	HdpePipes         []SuppliedItem `json:"hdpePipes,omitempty"`
	PvcPipes          []SuppliedItem `json:"pvcPipes,omitempty"`
	StructuralSteel   []SuppliedItem `json:"structuralSteel,omitempty"`
}

type suppliedFamily struct {
	sectionType string
	items       []SuppliedItem
}

// families lists the supplied sections in canonical order
func (d *ConsolidatedBoqData) families() []suppliedFamily {
	return []suppliedFamily{
		{capability.SectionStraightPipes, d.StraightPipes},
		{capability.SectionBends, d.Bends},
		{capability.SectionTees, d.Tees},
		{capability.SectionReducers, d.Reducers},
		{capability.SectionFlanges, d.Flanges},
		{capability.SectionBlankFlanges, d.BlankFlanges},
		{capability.SectionBnwSets, d.BnwSets},
		{capability.SectionGaskets, d.Gaskets},
		{capability.SectionSurfaceProtection, d.SurfaceProtection},
		{capability.SectionHdpePipes, d.HdpePipes},
		{capability.SectionPvcPipes, d.PvcPipes},
		{capability.SectionStructuralSteel, d.StructuralSteel},
	}
}

// IsEmpty reports whether no section has items
func (d *ConsolidatedBoqData) IsEmpty() bool {
	for _, f := range d.families() {
		if len(f.items) > 0 {
			return false
		}
	}
	return true
}

// SectionBuilder turns consolidated families into persisted BOQ sections
type SectionBuilder struct {
	sections repositories.SectionRepository
	mapping  *capability.Mapping
	metrics  *metrics.Metrics
}

// NewSectionBuilder creates a section builder
func NewSectionBuilder(sections repositories.SectionRepository, mapping *capability.Mapping, m *metrics.Metrics) *SectionBuilder {
	return &SectionBuilder{
		sections: sections,
		mapping:  mapping,
		metrics:  m,
	}
}

// BuildFromConsolidation replaces the sections of a BOQ with the engine's families
func (b *SectionBuilder) BuildFromConsolidation(ctx context.Context, boqID uuid.UUID, result *consolidation.Result) ([]models.BoqSection, error) {
	var sections []models.BoqSection
	for _, family := range result.Families() {
		if family.Len() == 0 {
			continue
		}
		items := make([]models.SectionItem, 0, family.Len())
		for i, item := range family.Items() {
			items = append(items, newSectionItem(i, item.Description, decimal.NewFromInt(int64(item.Quantity)), item.Unit, item.WeightKg, item.Entries))
		}
		sections = append(sections, b.newSection(boqID, family.SectionType(), len(sections), items))
	}
	return b.replace(ctx, boqID, sections)
}

// BuildFromSupplied replaces the sections of a BOQ with caller-computed families
func (b *SectionBuilder) BuildFromSupplied(ctx context.Context, boqID uuid.UUID, data *ConsolidatedBoqData) ([]models.BoqSection, error) {
	var sections []models.BoqSection
	for _, family := range data.families() {
		if len(family.items) == 0 {
			continue
		}
		items := make([]models.SectionItem, 0, len(family.items))
		for i, item := range family.items {
			items = append(items, newSectionItem(i, item.Description, item.Qty, item.Unit, item.WeightKg, item.Entries))
		}
		sections = append(sections, b.newSection(boqID, family.sectionType, len(sections), items))
	}
	return b.replace(ctx, boqID, sections)
}

func (b *SectionBuilder) replace(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection) ([]models.BoqSection, error) {
	if err := b.sections.ReplaceForBoq(ctx, boqID, sections); err != nil {
		return nil, errors.Wrap(err, "failed to replace BOQ sections")
	}
	b.metrics.IncrementCounterBy(metrics.SectionsCreated, int64(len(sections)))
	return sections, nil
}

func (b *SectionBuilder) newSection(boqID uuid.UUID, sectionType string, position int, items []models.SectionItem) models.BoqSection {
	capabilityKey, ok := b.mapping.CapabilityForSection(sectionType)
	if !ok {
		log.Warn().
			Str("boq_id", boqID.String()).
			Str("section_type", sectionType).
			Msg("No capability mapping for section type, suppliers will not be matched to it")
		b.metrics.IncrementCounter(metrics.UnmappedSections)
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalWeightKg)
	}

	return models.BoqSection{
		ID:            uuid.New(),
		BoqID:         boqID,
		SectionType:   sectionType,
		CapabilityKey: capabilityKey,
		SectionTitle:  b.mapping.SectionTitle(sectionType),
		Items:         datatypes.NewJSONType(items),
		ItemCount:     len(items),
		TotalWeightKg: total.Round(weightPlaces),
		Position:      position,
	}
}

func newSectionItem(index int, description string, qty decimal.Decimal, unit string, totalWeight decimal.Decimal, entries []int) models.SectionItem {
	unitWeight := decimal.Zero
	if !qty.IsZero() {
		unitWeight = totalWeight.Div(qty).Round(weightPlaces)
	}
	return models.SectionItem{
		LineNumber:    index + 1,
		Description:   description,
		Quantity:      qty,
		Unit:          unit,
		UnitWeightKg:  unitWeight,
		TotalWeightKg: totalWeight.Round(weightPlaces),
		Entries:       append([]int(nil), entries...),
	}
}
