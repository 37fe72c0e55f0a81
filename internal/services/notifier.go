package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/notification"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
)

const (
	defaultNotifyTimeout     = 15 * time.Second
	defaultNotifyConcurrency = 8
)

// NotificationSender delivers supplier notices
type NotificationSender interface {
	SendDistributionNotice(ctx context.Context, n notification.Notice) error
	SendUpdateNotice(ctx context.Context, n notification.Notice) error
	SendReminderNotice(ctx context.Context, n notification.Notice) error
}

// NotifierOptions bounds the notification fan-out
type NotifierOptions struct {
	Timeout     time.Duration
	Concurrency int
}

// Notifier emails matched suppliers and stamps the records it reached
type Notifier struct {
	suppliers repositories.SupplierRepository
	access    repositories.AccessRepository
	sender    NotificationSender
	mapping   *capability.Mapping
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	opts      NotifierOptions
}

// NewNotifier creates a notifier
func NewNotifier(
	suppliers repositories.SupplierRepository,
	access repositories.AccessRepository,
	sender NotificationSender,
	mapping *capability.Mapping,
	clock clockwork.Clock,
	m *metrics.Metrics,
	opts NotifierOptions,
) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultNotifyTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultNotifyConcurrency
	}
	return &Notifier{
		suppliers: suppliers,
		access:    access,
		sender:    sender,
		mapping:   mapping,
		clock:     clock,
		metrics:   m,
		opts:      opts,
	}
}

type sendFunc func(ctx context.Context, n notification.Notice) error

// NotifyDistribution sends new-BOQ notices and sets notificationSentAt on every record
// reached. It returns how many suppliers were notified.
func (n *Notifier) NotifyDistribution(ctx context.Context, boq *models.Boq, records []models.BoqSupplierAccess) (int, error) {
	return n.notify(ctx, "distribution", boq, records, "New Project", n.sender.SendDistributionNotice, func(r *models.BoqSupplierAccess, at time.Time) {
		r.NotificationSentAt = &at
	})
}

// NotifyUpdate sends BOQ-changed notices and sets notificationSentAt on every record reached
func (n *Notifier) NotifyUpdate(ctx context.Context, boq *models.Boq, records []models.BoqSupplierAccess) (int, error) {
	return n.notify(ctx, "update", boq, records, "Project", n.sender.SendUpdateNotice, func(r *models.BoqSupplierAccess, at time.Time) {
		r.NotificationSentAt = &at
	})
}

// NotifyReminder sends reminder notices and sets reminderSentAt on every record reached.
// Records must have their Boq preloaded.
func (n *Notifier) NotifyReminder(ctx context.Context, records []models.BoqSupplierAccess) (int, error) {
	byBoq := make(map[uuid.UUID][]models.BoqSupplierAccess)
	var order []uuid.UUID
	for _, r := range records {
		if _, ok := byBoq[r.BoqID]; !ok {
			order = append(order, r.BoqID)
		}
		byBoq[r.BoqID] = append(byBoq[r.BoqID], r)
	}

	sent := 0
	for _, boqID := range order {
		group := byBoq[boqID]
		boq := group[0].Boq
		if boq == nil {
			boq = &models.Boq{ID: boqID}
		}
		count, err := n.notify(ctx, "reminder", boq, group, "Project", n.sender.SendReminderNotice, func(r *models.BoqSupplierAccess, at time.Time) {
			r.ReminderSentAt = &at
		})
		sent += count
		if err != nil {
			return sent, err
		}
	}
	n.metrics.IncrementCounterBy(metrics.RemindersSent, int64(sent))
	return sent, nil
}

func (n *Notifier) notify(
	ctx context.Context,
	kind string,
	boq *models.Boq,
	records []models.BoqSupplierAccess,
	fallbackProject string,
	send sendFunc,
	stamp func(r *models.BoqSupplierAccess, at time.Time),
) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := n.clock.Now()
	defer func() {
		n.metrics.RecordTimer(metrics.NotificationDuration, n.clock.Since(start))
	}()

	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.SupplierProfileID)
	}
	profiles, err := n.suppliers.FindContacts(ctx, ids)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load supplier contacts")
	}
	contacts := make(map[uuid.UUID]*models.SupplierProfile, len(profiles))
	for i := range profiles {
		contacts[profiles[i].ID] = &profiles[i]
	}

	var (
		mu      sync.Mutex
		reached []*models.BoqSupplierAccess
	)
	g := new(errgroup.Group)
	g.SetLimit(n.opts.Concurrency)

	for i := range records {
		record := &records[i]
		profile, ok := contacts[record.SupplierProfileID]
		if !ok || profile.Email() == "" {
			log.Warn().
				Str("boq_id", boq.ID.String()).
				Str("supplier_id", record.SupplierProfileID.String()).
				Msg("Supplier has no email address, skipping notification")
			n.metrics.IncrementCounter(metrics.NotificationsSkipped)
			continue
		}
		notice := n.notice(boq, record, profile, fallbackProject)

		g.Go(func() error {
			if err := n.deliver(ctx, send, notice); err != nil {
				log.Warn().
					Err(err).
					Str("kind", kind).
					Str("boq_id", boq.ID.String()).
					Str("supplier_id", record.SupplierProfileID.String()).
					Msg("Failed to notify supplier")
				n.metrics.IncrementCounter(metrics.NotificationsFailed)
				return nil
			}
			mu.Lock()
			reached = append(reached, record)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(reached) == 0 {
		return 0, nil
	}
	now := n.clock.Now().UTC()
	for _, r := range reached {
		stamp(r, now)
	}
	if err := n.access.UpdateBatch(ctx, reached); err != nil {
		return len(reached), errors.Wrapf(err, "failed to record %s notifications", kind)
	}

	n.metrics.IncrementCounterBy(metrics.NotificationsSent, int64(len(reached)))
	log.Info().
		Str("kind", kind).
		Str("boq_id", boq.ID.String()).
		Int("notified", len(reached)).
		Int("matched", len(records)).
		Msg("Suppliers notified")
	return len(reached), nil
}

// deliver runs one send under its own timeout and turns a panic into an error
func (n *Notifier) deliver(ctx context.Context, send sendFunc, notice notification.Notice) (err error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification panicked: %v", r)
		}
	}()
	return send(ctx, notice)
}

func (n *Notifier) notice(boq *models.Boq, record *models.BoqSupplierAccess, profile *models.SupplierProfile, fallbackProject string) notification.Notice {
	return notification.Notice{
		Recipient:     profile.Email(),
		SupplierName:  profile.DisplayName(),
		ProjectName:   projectName(boq, record, fallbackProject),
		BoqNumber:     boq.BoqNumber,
		SectionTitles: n.mapping.SectionTitles(record.AllowedSections),
		Customer:      record.CustomerInfo.Data(),
	}
}

func projectName(boq *models.Boq, record *models.BoqSupplierAccess, fallback string) string {
	if p := record.ProjectInfo.Data(); p != nil && p.Name != "" {
		return p.Name
	}
	if boq.Title != "" {
		return boq.Title
	}
	return fallback
}
