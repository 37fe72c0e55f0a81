package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
)

// AccessSnapshot is the customer and project context copied onto new access records
type AccessSnapshot struct {
	Customer *models.CustomerInfo `json:"customerInfo,omitempty"`
	Project  *models.ProjectInfo  `json:"projectInfo,omitempty"`
}

// SupplierMatcher grants approved suppliers access to the BOQ sections they are capable of
// quoting on
type SupplierMatcher struct {
	suppliers repositories.SupplierRepository
	access    repositories.AccessRepository
	mapping   *capability.Mapping
	metrics   *metrics.Metrics
}

// NewSupplierMatcher creates a supplier matcher
func NewSupplierMatcher(
	suppliers repositories.SupplierRepository,
	access repositories.AccessRepository,
	mapping *capability.Mapping,
	m *metrics.Metrics,
) *SupplierMatcher {
	return &SupplierMatcher{
		suppliers: suppliers,
		access:    access,
		mapping:   mapping,
		metrics:   m,
	}
}

// Match replaces every access record of the BOQ with fresh PENDING records, one per
// approved active supplier holding at least one capability the sections require
func (m *SupplierMatcher) Match(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection, snapshot AccessSnapshot) ([]models.BoqSupplierAccess, error) {
	records, err := m.plan(ctx, boqID, sections, snapshot)
	if err != nil {
		return nil, err
	}

	if err := m.access.ReplaceForBoq(ctx, boqID, records); err != nil {
		return nil, errors.Wrap(err, "failed to replace supplier access")
	}
	m.metrics.IncrementCounterBy(metrics.AccessRecordsCreated, int64(len(records)))
	return records, nil
}

func (m *SupplierMatcher) plan(ctx context.Context, boqID uuid.UUID, sections []models.BoqSection, snapshot AccessSnapshot) ([]models.BoqSupplierAccess, error) {
	required := m.requiredCapabilities(boqID, sections)
	if len(required) == 0 {
		log.Warn().Str("boq_id", boqID.String()).Msg("BOQ has no routable sections, no suppliers matched")
		return nil, nil
	}

	supplierIDs, err := m.suppliers.FindApprovedActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load approved suppliers")
	}
	if len(supplierIDs) == 0 {
		log.Warn().Str("boq_id", boqID.String()).Msg("No approved suppliers found")
		return nil, nil
	}

	caps, err := m.suppliers.FindActiveCapabilities(ctx, supplierIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load supplier capabilities")
	}
	bySupplier := m.capabilitySets(caps)

	// Sorted so record creation order is stable across runs
	sort.Slice(supplierIDs, func(i, j int) bool {
		return supplierIDs[i].String() < supplierIDs[j].String()
	})

	var records []models.BoqSupplierAccess
	for _, supplierID := range supplierIDs {
		allowed := m.allowedSections(sections, bySupplier[supplierID])
		if len(allowed) == 0 {
			continue
		}
		records = append(records, models.BoqSupplierAccess{
			ID:                uuid.New(),
			BoqID:             boqID,
			SupplierProfileID: supplierID,
			AllowedSections:   pq.StringArray(allowed),
			Status:            models.AccessStatusPending,
			CustomerInfo:      datatypes.NewJSONType(snapshot.Customer),
			ProjectInfo:       datatypes.NewJSONType(snapshot.Project),
			QuoteData:         datatypes.NewJSONType[*models.QuotePayload](nil),
		})
	}

	log.Info().
		Str("boq_id", boqID.String()).
		Strs("required_capabilities", required).
		Int("approved_suppliers", len(supplierIDs)).
		Int("matched_suppliers", len(records)).
		Msg("Suppliers matched to BOQ sections")
	return records, nil
}

func (m *SupplierMatcher) requiredCapabilities(boqID uuid.UUID, sections []models.BoqSection) []string {
	seen := make(map[string]struct{})
	var required []string
	for _, s := range sections {
		key, ok := sectionCapability(m.mapping, s)
		if !ok {
			log.Warn().
				Str("boq_id", boqID.String()).
				Str("section_type", s.SectionType).
				Msg("Skipping section without capability mapping")
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		required = append(required, key)
	}
	return required
}

// capabilitySets groups declared product categories into capability keys per supplier.
// Unmapped categories are ignored.
func (m *SupplierMatcher) capabilitySets(caps []models.SupplierCapability) map[uuid.UUID]map[string]struct{} {
	out := make(map[uuid.UUID]map[string]struct{})
	for _, c := range caps {
		key, ok := m.mapping.CapabilityForCategory(c.ProductCategory)
		if !ok {
			continue
		}
		set, exists := out[c.SupplierProfileID]
		if !exists {
			set = make(map[string]struct{})
			out[c.SupplierProfileID] = set
		}
		set[key] = struct{}{}
	}
	return out
}

func (m *SupplierMatcher) allowedSections(sections []models.BoqSection, keys map[string]struct{}) []string {
	if len(keys) == 0 {
		return nil
	}
	var allowed []string
	for _, s := range sections {
		key, ok := sectionCapability(m.mapping, s)
		if !ok {
			continue
		}
		if _, has := keys[key]; has {
			allowed = append(allowed, s.SectionType)
		}
	}
	return allowed
}
