package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/messaging"
)

// HandleCapabilityMessage recomputes the access of the supplier named by a
// supplier.capabilities.changed message. Other event types are acknowledged and dropped.
func (s *DistributionService) HandleCapabilityMessage(ctx context.Context, msg messaging.Message) error {
	if msg.EventType() != messaging.EventCapabilitiesChanged {
		log.Warn().Str("event_type", msg.EventType()).Msg("Ignoring unexpected event on capability queue")
		return nil
	}

	var event messaging.CapabilitiesChanged
	if err := msg.Decode(&event); err != nil {
		return err
	}
	if event.SupplierID == uuid.Nil {
		return errors.New("capability change event without supplier_id")
	}

	if _, err := s.RecomputeSupplierAccess(ctx, event.SupplierID); err != nil {
		return errors.Wrapf(err, "recompute access for supplier %s", event.SupplierID)
	}
	return nil
}
