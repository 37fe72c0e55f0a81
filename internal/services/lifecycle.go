package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
	"github.com/AnnixInvestments/annix-sub017/internal/validation"
)

// RecomputeResult counts what a capability change did to a supplier's access records
type RecomputeResult struct {
	Updated      int         `json:"updated"`
	Removed      int         `json:"removed"`
	Unchanged    int         `json:"unchanged"`
	AffectedBoqs []uuid.UUID `json:"affectedBoqs"`
}

// recomputableStatuses are the states a capability change may revise
var recomputableStatuses = []string{
	models.AccessStatusPending,
	models.AccessStatusViewed,
	models.AccessStatusDeclined,
}

// AccessLifecycle drives the per-supplier state machine of BOQ access records
type AccessLifecycle struct {
	access    repositories.AccessRepository
	sections  repositories.SectionRepository
	suppliers repositories.SupplierRepository
	mapping   *capability.Mapping
	clock     clockwork.Clock
	metrics   *metrics.Metrics
}

// NewAccessLifecycle creates an access lifecycle manager
func NewAccessLifecycle(
	access repositories.AccessRepository,
	sections repositories.SectionRepository,
	suppliers repositories.SupplierRepository,
	mapping *capability.Mapping,
	clock clockwork.Clock,
	m *metrics.Metrics,
) *AccessLifecycle {
	return &AccessLifecycle{
		access:    access,
		sections:  sections,
		suppliers: suppliers,
		mapping:   mapping,
		clock:     clock,
		metrics:   m,
	}
}

func (l *AccessLifecycle) find(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	record, err := l.access.Find(ctx, boqID, supplierID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccessNotFound
		}
		return nil, errors.Wrap(err, "failed to load supplier access")
	}
	return record, nil
}

// MarkViewed records the supplier's first view. Later views change nothing.
func (l *AccessLifecycle) MarkViewed(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	record, err := l.find(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	if record.ViewedAt != nil {
		return record, nil
	}

	now := l.clock.Now().UTC()
	record.ViewedAt = &now
	if record.Status == models.AccessStatusPending {
		record.Status = models.AccessStatusViewed
	}
	if err := l.access.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to mark BOQ as viewed")
	}
	return record, nil
}

// Decline records that the supplier will not quote. Quoted and already declined
// records are final.
func (l *AccessLifecycle) Decline(ctx context.Context, boqID, supplierID uuid.UUID, reason string) (*models.BoqSupplierAccess, error) {
	record, err := l.find(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	if record.IsTerminal() {
		return nil, ErrAccessTerminal
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrDeclineReasonRequired
	}

	now := l.clock.Now().UTC()
	record.Status = models.AccessStatusDeclined
	record.DeclineReason = &reason
	record.RespondedAt = &now
	if err := l.access.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to decline BOQ")
	}
	return record, nil
}

// SaveQuoteProgress stores a draft quote without changing status
func (l *AccessLifecycle) SaveQuoteProgress(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	record, err := l.find(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	if record.IsTerminal() {
		return nil, ErrAccessTerminal
	}
	if payload == nil {
		return nil, errors.Wrap(ErrInvalidQuote, "quote payload is required")
	}

	now := l.clock.Now().UTC()
	record.QuoteData = datatypes.NewJSONType(payload)
	record.QuoteSavedAt = &now
	if err := l.access.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to save quote progress")
	}
	return record, nil
}

// SubmitQuote stores the final quote and moves the record to QUOTED from any state
func (l *AccessLifecycle) SubmitQuote(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	record, err := l.find(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.Wrap(ErrInvalidQuote, "quote payload is required")
	}
	if err := validation.ValidateStruct(payload); err != nil {
		return nil, errors.Wrap(ErrInvalidQuote, err.Error())
	}

	now := l.clock.Now().UTC()
	record.Status = models.AccessStatusQuoted
	record.QuoteData = datatypes.NewJSONType(payload)
	record.QuoteSavedAt = &now
	record.QuoteSubmittedAt = &now
	record.RespondedAt = &now
	if err := l.access.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to submit quote")
	}
	return record, nil
}

// SetReminder sets or clears (nil) the reminder interval in days
func (l *AccessLifecycle) SetReminder(ctx context.Context, boqID, supplierID uuid.UUID, days *int) (*models.BoqSupplierAccess, error) {
	record, err := l.find(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	if days != nil && !validation.ValidReminderDays(*days) {
		return nil, ErrInvalidReminder
	}

	if days == nil {
		record.ReminderDays = nil
	} else {
		d := *days
		record.ReminderDays = &d
	}
	if err := l.access.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to set reminder")
	}
	return record, nil
}

// RecomputeForSupplier revises the open access records of a supplier after its
// capabilities changed. QUOTED records are never touched.
func (l *AccessLifecycle) RecomputeForSupplier(ctx context.Context, supplierID uuid.UUID) (*RecomputeResult, error) {
	result := &RecomputeResult{AffectedBoqs: []uuid.UUID{}}

	records, err := l.access.FindBySupplier(ctx, supplierID, recomputableStatuses...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load supplier access")
	}
	if len(records) == 0 {
		return result, nil
	}

	caps, err := l.suppliers.FindActiveCapabilities(ctx, []uuid.UUID{supplierID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load supplier capabilities")
	}
	keys := make(map[string]struct{})
	for _, c := range caps {
		if key, ok := l.mapping.CapabilityForCategory(c.ProductCategory); ok {
			keys[key] = struct{}{}
		}
	}

	boqIDs := make([]uuid.UUID, 0, len(records))
	seen := make(map[uuid.UUID]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.BoqID]; !ok {
			seen[r.BoqID] = struct{}{}
			boqIDs = append(boqIDs, r.BoqID)
		}
	}
	sections, err := l.sections.FindForBoqs(ctx, boqIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load BOQ sections")
	}
	byBoq := make(map[uuid.UUID][]models.BoqSection, len(boqIDs))
	for _, s := range sections {
		byBoq[s.BoqID] = append(byBoq[s.BoqID], s)
	}

	var toUpdate, toRemove []*models.BoqSupplierAccess
	for i := range records {
		record := &records[i]
		allowed := l.allowedFor(byBoq[record.BoqID], keys)
		switch {
		case len(allowed) == 0:
			toRemove = append(toRemove, record)
		case !sameSections(allowed, record.AllowedSections):
			record.AllowedSections = pq.StringArray(allowed)
			toUpdate = append(toUpdate, record)
		default:
			result.Unchanged++
		}
	}

	if err := l.access.Remove(ctx, toRemove); err != nil {
		return nil, errors.Wrap(err, "failed to remove supplier access")
	}
	if err := l.access.UpdateBatch(ctx, toUpdate); err != nil {
		return nil, errors.Wrap(err, "failed to update supplier access")
	}

	result.Removed = len(toRemove)
	result.Updated = len(toUpdate)
	for _, r := range append(toRemove, toUpdate...) {
		result.AffectedBoqs = append(result.AffectedBoqs, r.BoqID)
	}
	l.metrics.IncrementCounterBy(metrics.AccessRecomputed, int64(result.Updated))
	l.metrics.IncrementCounterBy(metrics.AccessRemoved, int64(result.Removed))

	log.Info().
		Str("supplier_id", supplierID.String()).
		Int("updated", result.Updated).
		Int("removed", result.Removed).
		Int("unchanged", result.Unchanged).
		Msg("Supplier access recomputed")
	return result, nil
}

// allowedFor lists, in section order, the sections whose capability is in keys
func (l *AccessLifecycle) allowedFor(sections []models.BoqSection, keys map[string]struct{}) []string {
	var allowed []string
	for _, s := range sections {
		key, ok := sectionCapability(l.mapping, s)
		if !ok {
			continue
		}
		if _, has := keys[key]; has {
			allowed = append(allowed, s.SectionType)
		}
	}
	return allowed
}

// sectionCapability returns the capability a section requires, preferring the key
// stored on the section
func sectionCapability(mapping *capability.Mapping, section models.BoqSection) (string, bool) {
	if section.CapabilityKey != "" {
		return section.CapabilityKey, true
	}
	return mapping.CapabilityForSection(section.SectionType)
}

// sameSections compares two section lists ignoring order
func sameSections(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
