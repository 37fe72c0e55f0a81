package services

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/cache"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
)

// ReminderService nudges suppliers that have not responded within their reminder interval
type ReminderService struct {
	access   repositories.AccessRepository
	notifier *Notifier
	views    ViewCache
	clock    clockwork.Clock
}

// NewReminderService creates a reminder service
func NewReminderService(access repositories.AccessRepository, notifier *Notifier, views ViewCache, clock clockwork.Clock) *ReminderService {
	return &ReminderService{
		access:   access,
		notifier: notifier,
		views:    views,
		clock:    clock,
	}
}

// SendDueReminders sends every reminder that is due now and returns how many went out
func (r *ReminderService) SendDueReminders(ctx context.Context) (int, error) {
	due, err := r.access.FindDueReminders(ctx, r.clock.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to load due reminders")
	}
	if len(due) == 0 {
		log.Debug().Msg("No reminders due")
		return 0, nil
	}

	sent, err := r.notifier.NotifyReminder(ctx, due)
	// Cached views carry the reminder timestamp
	for _, record := range due {
		if cerr := r.views.DeletePrefix(ctx, cache.SupplierBoqKey(record.BoqID, record.SupplierProfileID)); cerr != nil {
			log.Warn().Err(cerr).Str("boq_id", record.BoqID.String()).Msg("Failed to invalidate supplier view")
		}
	}
	if err != nil {
		return sent, err
	}

	log.Info().Int("due", len(due)).Int("sent", sent).Msg("Reminders processed")
	return sent, nil
}
