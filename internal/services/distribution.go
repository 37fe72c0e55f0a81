package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/AnnixInvestments/annix-sub017/internal/cache"
	"github.com/AnnixInvestments/annix-sub017/internal/consolidation"
	"github.com/AnnixInvestments/annix-sub017/internal/export"
	"github.com/AnnixInvestments/annix-sub017/internal/messaging"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
	"github.com/AnnixInvestments/annix-sub017/internal/search"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
)

const (
	defaultViewTTL     = 10 * time.Minute
	defaultSearchLimit = 20
)

// EventPublisher emits domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, body interface{}) error
}

// SectionIndex keeps BOQ sections searchable
type SectionIndex interface {
	IndexSections(ctx context.Context, boq *models.Boq, sections []models.BoqSection) error
	SearchSections(ctx context.Context, text string, limit int) ([]search.SectionDocument, error)
}

// ViewCache holds rendered supplier views
type ViewCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// SubmissionRequest is the optional input of a submission or update
type SubmissionRequest struct {
	ConsolidatedData *ConsolidatedBoqData `json:"consolidatedData,omitempty"`
	CustomerInfo     *models.CustomerInfo `json:"customerInfo,omitempty" validate:"omitempty"`
	ProjectInfo      *models.ProjectInfo  `json:"projectInfo,omitempty" validate:"omitempty"`
}

// SectionSummary is the short form of a section
type SectionSummary struct {
	SectionType   string          `json:"sectionType"`
	SectionTitle  string          `json:"sectionTitle"`
	ItemCount     int             `json:"itemCount"`
	TotalWeightKg decimal.Decimal `json:"totalWeightKg"`
}

// SubmissionResult reports what a submission or update did
type SubmissionResult struct {
	Boq               *models.Boq      `json:"boq"`
	SectionsCreated   int              `json:"sectionsCreated"`
	SuppliersMatched  int              `json:"suppliersMatched"`
	SuppliersNotified int              `json:"suppliersNotified"`
	SectionsSummary   []SectionSummary `json:"sectionsSummary"`
}

// SupplierBoqView is what a supplier may see of one BOQ
type SupplierBoqView struct {
	Boq      *models.Boq               `json:"boq"`
	Sections []models.BoqSection       `json:"sections"`
	Access   *models.BoqSupplierAccess `json:"access"`
}

// SupplierBoqListing is one row of a supplier's BOQ list
type SupplierBoqListing struct {
	BoqID              uuid.UUID           `json:"boqId"`
	BoqNumber          string              `json:"boqNumber"`
	Title              string              `json:"title"`
	BoqStatus          string              `json:"boqStatus"`
	Status             string              `json:"status"`
	AllowedSections    []string            `json:"allowedSections"`
	ProjectInfo        *models.ProjectInfo `json:"projectInfo,omitempty"`
	NotificationSentAt *time.Time          `json:"notificationSentAt"`
	ViewedAt           *time.Time          `json:"viewedAt"`
	RespondedAt        *time.Time          `json:"respondedAt"`
	ReminderDays       *int                `json:"reminderDays"`
	Sections           []SectionSummary    `json:"sections"`
}

// DistributionDeps are the collaborators of a DistributionService
type DistributionDeps struct {
	Boqs      repositories.BoqRepository
	Sections  repositories.SectionRepository
	Access    repositories.AccessRepository
	Builder   *SectionBuilder
	Matcher   *SupplierMatcher
	Notifier  *Notifier
	Lifecycle *AccessLifecycle
	Engine    *consolidation.Engine
	Publisher EventPublisher
	Index     SectionIndex
	Cache     ViewCache
	Tracer    tracing.Tracer
	Metrics   *metrics.Metrics
	Clock     clockwork.Clock
	ViewTTL   time.Duration
}

// DistributionService runs BOQ submissions and serves the supplier portal
type DistributionService struct {
	DistributionDeps
	locks *keyedMutex
}

// NewDistributionService creates a distribution service
func NewDistributionService(deps DistributionDeps) *DistributionService {
	if deps.ViewTTL <= 0 {
		deps.ViewTTL = defaultViewTTL
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NoopPublisher{}
	}
	if deps.Tracer == nil {
		deps.Tracer = &tracing.NewRelicTracer{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &DistributionService{
		DistributionDeps: deps,
		locks:            newKeyedMutex(),
	}
}

// SubmitForQuotation builds the BOQ sections, grants matching suppliers access, marks the
// BOQ SUBMITTED and notifies the suppliers
func (s *DistributionService) SubmitForQuotation(ctx context.Context, boqID uuid.UUID, req SubmissionRequest) (*SubmissionResult, error) {
	return s.distribute(ctx, boqID, req, true)
}

// HandleBoqUpdate rebuilds sections and access after a BOQ change and sends update notices.
// The BOQ status is kept.
func (s *DistributionService) HandleBoqUpdate(ctx context.Context, boqID uuid.UUID, req SubmissionRequest) (*SubmissionResult, error) {
	return s.distribute(ctx, boqID, req, false)
}

func (s *DistributionService) distribute(ctx context.Context, boqID uuid.UUID, req SubmissionRequest, submit bool) (result *SubmissionResult, err error) {
	unlock := s.locks.Lock(boqID.String())
	defer unlock()

	name, counter, event := "boq-update", metrics.UpdatesTotal, messaging.EventBoqUpdated
	if submit {
		name, counter, event = "boq-submit", metrics.SubmissionsTotal, messaging.EventBoqSubmitted
	}

	txn := s.Tracer.StartTransaction(name)
	defer s.Tracer.EndTransaction(txn)
	s.Tracer.AddAttribute(txn, "boq_id", boqID.String())

	start := s.Clock.Now()
	defer func() {
		s.Metrics.RecordTimer(metrics.SubmissionDuration, s.Clock.Since(start))
		s.Metrics.RecordOutcome(name, err)
		if err != nil {
			s.Tracer.RecordError(txn, err)
		}
	}()

	boq, err := s.Boqs.GetByID(ctx, boqID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBoqNotFound
		}
		return nil, errors.Wrap(err, "failed to load BOQ")
	}

	span := s.Tracer.StartSpan("build-sections", txn)
	sections, err := s.buildSections(ctx, boq, req.ConsolidatedData)
	span.End()
	if err != nil {
		return nil, err
	}

	span = s.Tracer.StartSpan("match-suppliers", txn)
	records, err := s.Matcher.Match(ctx, boq.ID, sections, AccessSnapshot{
		Customer: req.CustomerInfo,
		Project:  req.ProjectInfo,
	})
	span.End()
	if err != nil {
		return nil, err
	}

	if submit {
		if err := s.Boqs.UpdateStatus(ctx, boq.ID, models.BoqStatusSubmitted); err != nil {
			return nil, errors.Wrap(err, "failed to mark BOQ submitted")
		}
		boq.Status = models.BoqStatusSubmitted
	}

	span = s.Tracer.StartSpan("notify-suppliers", txn)
	var notified int
	var notifyErr error
	if submit {
		notified, notifyErr = s.Notifier.NotifyDistribution(ctx, boq, records)
	} else {
		notified, notifyErr = s.Notifier.NotifyUpdate(ctx, boq, records)
	}
	span.End()
	if notifyErr != nil {
		log.Warn().
			Err(notifyErr).
			Str("boq_id", boq.ID.String()).
			Msg("Supplier notification incomplete")
		s.Tracer.RecordError(txn, notifyErr)
	}

	s.reindex(ctx, boq, sections)
	s.invalidateBoq(ctx, boq.ID)
	s.publish(ctx, event, messaging.BoqDistributed{
		BoqID:             boq.ID,
		BoqNumber:         boq.BoqNumber,
		Status:            boq.Status,
		SectionTypes:      sectionTypes(sections),
		SuppliersMatched:  len(records),
		SuppliersNotified: notified,
		OccurredAt:        s.Clock.Now().UTC(),
	})
	s.Metrics.IncrementCounter(counter)

	log.Info().
		Str("boq_id", boq.ID.String()).
		Str("boq_number", boq.BoqNumber).
		Bool("submit", submit).
		Int("sections", len(sections)).
		Int("suppliers_matched", len(records)).
		Int("suppliers_notified", notified).
		Msg("BOQ distributed to suppliers")

	return &SubmissionResult{
		Boq:               boq,
		SectionsCreated:   len(sections),
		SuppliersMatched:  len(records),
		SuppliersNotified: notified,
		SectionsSummary:   summarize(sections),
	}, nil
}

// buildSections uses the caller's consolidated data when present and consolidates the
// BOQ's RFQ otherwise
func (s *DistributionService) buildSections(ctx context.Context, boq *models.Boq, data *ConsolidatedBoqData) ([]models.BoqSection, error) {
	if data != nil && !data.IsEmpty() {
		return s.Builder.BuildFromSupplied(ctx, boq.ID, data)
	}
	if boq.RfqID == nil {
		return nil, ErrNoLineItems
	}
	items, err := s.Boqs.ListLineItems(ctx, *boq.RfqID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load RFQ line items")
	}
	return s.Builder.BuildFromConsolidation(ctx, boq.ID, s.Engine.Consolidate(items))
}

// GetFilteredBoqForSupplier returns the BOQ with only the sections the supplier may see
func (s *DistributionService) GetFilteredBoqForSupplier(ctx context.Context, boqID, supplierID uuid.UUID) (*SupplierBoqView, error) {
	key := cache.SupplierBoqKey(boqID, supplierID)
	var cached SupplierBoqView
	err := s.Cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read supplier view from cache")
	}

	record, err := s.Access.Find(ctx, boqID, supplierID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccessNotFound
		}
		return nil, errors.Wrap(err, "failed to load supplier access")
	}

	boq := record.Boq
	if boq == nil {
		if boq, err = s.Boqs.GetByID(ctx, boqID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrBoqNotFound
			}
			return nil, errors.Wrap(err, "failed to load BOQ")
		}
	}

	sections := []models.BoqSection{}
	if len(record.AllowedSections) > 0 {
		if sections, err = s.Sections.Find(ctx, boqID, record.AllowedSections...); err != nil {
			return nil, errors.Wrap(err, "failed to load BOQ sections")
		}
	}

	view := &SupplierBoqView{Boq: boq, Sections: sections, Access: record}
	if err := s.Cache.Set(ctx, key, view, s.ViewTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache supplier view")
	}
	return view, nil
}

// GetSupplierBoqs lists the BOQs shared with a supplier, newest first
func (s *DistributionService) GetSupplierBoqs(ctx context.Context, supplierID uuid.UUID, status string) ([]SupplierBoqListing, error) {
	records, err := s.Access.ListForSupplier(ctx, supplierID, status)
	if err != nil {
		return nil, err
	}
	listings := make([]SupplierBoqListing, 0, len(records))
	if len(records) == 0 {
		return listings, nil
	}

	boqIDs := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		boqIDs = append(boqIDs, r.BoqID)
	}
	sections, err := s.Sections.FindForBoqs(ctx, boqIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load BOQ sections")
	}
	byBoq := make(map[uuid.UUID][]models.BoqSection)
	for _, section := range sections {
		byBoq[section.BoqID] = append(byBoq[section.BoqID], section)
	}

	for _, r := range records {
		allowed := make(map[string]struct{}, len(r.AllowedSections))
		for _, t := range r.AllowedSections {
			allowed[t] = struct{}{}
		}
		var visible []models.BoqSection
		for _, section := range byBoq[r.BoqID] {
			if _, ok := allowed[section.SectionType]; ok {
				visible = append(visible, section)
			}
		}

		listing := SupplierBoqListing{
			BoqID:              r.BoqID,
			Status:             r.Status,
			AllowedSections:    r.AllowedSections,
			ProjectInfo:        r.ProjectInfo.Data(),
			NotificationSentAt: r.NotificationSentAt,
			ViewedAt:           r.ViewedAt,
			RespondedAt:        r.RespondedAt,
			ReminderDays:       r.ReminderDays,
			Sections:           summarize(visible),
		}
		if r.Boq != nil {
			listing.BoqNumber = r.Boq.BoqNumber
			listing.Title = r.Boq.Title
			listing.BoqStatus = r.Boq.Status
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// ExportSupplierBoq renders the supplier's view of a BOQ as an xlsx workbook
func (s *DistributionService) ExportSupplierBoq(ctx context.Context, boqID, supplierID uuid.UUID) ([]byte, string, error) {
	view, err := s.GetFilteredBoqForSupplier(ctx, boqID, supplierID)
	if err != nil {
		return nil, "", err
	}
	data, err := export.Workbook(view.Boq, view.Sections, view.Access.QuoteData.Data())
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to export BOQ")
	}
	return data, export.FileName(view.Boq), nil
}

// SearchSections runs a full-text search over indexed sections
func (s *DistributionService) SearchSections(ctx context.Context, text string, limit int) ([]search.SectionDocument, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.Index.SearchSections(ctx, text, limit)
}

// MarkViewed records the supplier's first view of a BOQ
func (s *DistributionService) MarkViewed(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error) {
	record, err := s.Lifecycle.MarkViewed(ctx, boqID, supplierID)
	if err != nil {
		return nil, err
	}
	s.invalidateView(ctx, boqID, supplierID)
	return record, nil
}

// Decline records a supplier's refusal to quote
func (s *DistributionService) Decline(ctx context.Context, boqID, supplierID uuid.UUID, reason string) (*models.BoqSupplierAccess, error) {
	record, err := s.Lifecycle.Decline(ctx, boqID, supplierID, reason)
	if err != nil {
		return nil, err
	}
	s.invalidateView(ctx, boqID, supplierID)
	s.publish(ctx, messaging.EventAccessDeclined, messaging.AccessResponded{
		BoqID:      boqID,
		SupplierID: supplierID,
		Status:     record.Status,
		Reason:     *record.DeclineReason,
		OccurredAt: s.Clock.Now().UTC(),
	})
	return record, nil
}

// SaveQuoteProgress stores a draft quote
func (s *DistributionService) SaveQuoteProgress(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	record, err := s.Lifecycle.SaveQuoteProgress(ctx, boqID, supplierID, payload)
	if err != nil {
		return nil, err
	}
	s.invalidateView(ctx, boqID, supplierID)
	return record, nil
}

// SubmitQuote stores the supplier's final quote
func (s *DistributionService) SubmitQuote(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error) {
	record, err := s.Lifecycle.SubmitQuote(ctx, boqID, supplierID, payload)
	if err != nil {
		return nil, err
	}
	s.invalidateView(ctx, boqID, supplierID)
	s.publish(ctx, messaging.EventAccessQuoted, messaging.AccessResponded{
		BoqID:      boqID,
		SupplierID: supplierID,
		Status:     record.Status,
		OccurredAt: s.Clock.Now().UTC(),
	})
	return record, nil
}

// SetReminder sets or clears the reminder interval of a supplier's access
func (s *DistributionService) SetReminder(ctx context.Context, boqID, supplierID uuid.UUID, days *int) (*models.BoqSupplierAccess, error) {
	record, err := s.Lifecycle.SetReminder(ctx, boqID, supplierID, days)
	if err != nil {
		return nil, err
	}
	s.invalidateView(ctx, boqID, supplierID)
	return record, nil
}

// RecomputeSupplierAccess revises a supplier's open access records after a capability change
func (s *DistributionService) RecomputeSupplierAccess(ctx context.Context, supplierID uuid.UUID) (*RecomputeResult, error) {
	var result *RecomputeResult
	err := tracing.Run(s.Tracer, "recompute-supplier-access", func(txn *newrelic.Transaction) error {
		s.Tracer.AddAttribute(txn, "supplier_id", supplierID.String())
		var err error
		result, err = s.Lifecycle.RecomputeForSupplier(ctx, supplierID)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, boqID := range result.AffectedBoqs {
		s.invalidateView(ctx, boqID, supplierID)
	}
	return result, nil
}

func (s *DistributionService) reindex(ctx context.Context, boq *models.Boq, sections []models.BoqSection) {
	if err := s.Index.IndexSections(ctx, boq, sections); err != nil {
		log.Warn().Err(err).Str("boq_id", boq.ID.String()).Msg("Failed to index BOQ sections")
	}
}

func (s *DistributionService) invalidateBoq(ctx context.Context, boqID uuid.UUID) {
	if err := s.Cache.DeletePrefix(ctx, cache.SupplierBoqPrefix(boqID)); err != nil {
		log.Warn().Err(err).Str("boq_id", boqID.String()).Msg("Failed to invalidate supplier views")
	}
}

func (s *DistributionService) invalidateView(ctx context.Context, boqID, supplierID uuid.UUID) {
	if err := s.Cache.DeletePrefix(ctx, cache.SupplierBoqKey(boqID, supplierID)); err != nil {
		log.Warn().Err(err).Str("boq_id", boqID.String()).Msg("Failed to invalidate supplier view")
	}
}

func (s *DistributionService) publish(ctx context.Context, eventType string, body interface{}) {
	if err := s.Publisher.Publish(ctx, eventType, body); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish event")
	}
}

func summarize(sections []models.BoqSection) []SectionSummary {
	out := make([]SectionSummary, 0, len(sections))
	for _, section := range sections {
		out = append(out, SectionSummary{
			SectionType:   section.SectionType,
			SectionTitle:  section.SectionTitle,
			ItemCount:     section.ItemCount,
			TotalWeightKg: section.TotalWeightKg,
		})
	}
	return out
}

func sectionTypes(sections []models.BoqSection) []string {
	out := make([]string, 0, len(sections))
	for _, section := range sections {
		out = append(out, section.SectionType)
	}
	return out
}
