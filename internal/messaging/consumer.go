package messaging

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
)

const receiveErrorBackoff = 5 * time.Second

// Handler processes one received message. A nil error completes the message, anything
// else abandons it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Consume pulls batches from receiver until ctx is cancelled
func Consume(ctx context.Context, receiver Receiver, batchSize int, handle Handler, m *metrics.Metrics) error {
	if batchSize <= 0 {
		batchSize = 1
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := receiver.Receive(ctx, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Failed to receive messages")
			select {
			case <-time.After(receiveErrorBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		m.SetGauge(metrics.PendingCapabilityEvents, int64(len(messages)))
		for _, msg := range messages {
			ProcessOne(ctx, msg, handle, m)
		}
	}
}

// ProcessOne runs handle on msg and settles it
func ProcessOne(ctx context.Context, msg Message, handle Handler, m *metrics.Metrics) {
	start := time.Now()
	err := handle(ctx, msg)
	m.Since(metrics.MessageProcessing, start)
	m.RecordOutcome(metrics.MessageProcessing, err)

	if err != nil {
		log.Error().Err(err).Str("event_type", msg.EventType()).Msg("Failed to process message")
		if abandonErr := msg.Abandon(ctx); abandonErr != nil {
			log.Error().Err(abandonErr).Msg("Failed to abandon message")
		}
		return
	}

	if completeErr := msg.Complete(ctx); completeErr != nil {
		log.Error().Err(completeErr).Msg("Failed to complete message")
	}
}
