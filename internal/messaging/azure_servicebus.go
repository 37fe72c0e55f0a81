package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"

	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
)

// Event types published by the distribution workflow
const (
	EventBoqSubmitted        = "boq.submitted"
	EventBoqUpdated          = "boq.updated"
	EventAccessDeclined      = "boq.access.declined"
	EventAccessQuoted        = "boq.access.quoted"
	EventCapabilitiesChanged = "supplier.capabilities.changed"
)

const (
	source         = "procurement"
	receiveTimeout = 30 * time.Second
)

// Publisher sends domain events to a queue
type Publisher interface {
	Publish(ctx context.Context, eventType string, body interface{}) error
	Close(ctx context.Context) error
}

// Message is a received message held under a peek lock
type Message interface {
	EventType() string
	Decode(v interface{}) error
	Complete(ctx context.Context) error
	Abandon(ctx context.Context) error
}

// Receiver pulls messages from a queue
type Receiver interface {
	Receive(ctx context.Context, count int) ([]Message, error)
	Close(ctx context.Context) error
}

// NewClient creates the Service Bus client shared by publishers and receivers
func NewClient(connectionString string) (*azservicebus.Client, error) {
	if connectionString == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}
	return client, nil
}

type servicebusPublisher struct {
	sender    *azservicebus.Sender
	queueName string
	metrics   *metrics.Metrics
}

// NewPublisher creates a publisher for queueName
func NewPublisher(client *azservicebus.Client, queueName string, m *metrics.Metrics) (Publisher, error) {
	sender, err := client.NewSender(queueName, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Service Bus sender for %s", queueName)
	}
	return &servicebusPublisher{
		sender:    sender,
		queueName: queueName,
		metrics:   m,
	}, nil
}

// Publish sends body as JSON with the event type in the application properties
func (p *servicebusPublisher) Publish(ctx context.Context, eventType string, body interface{}) error {
	start := time.Now()
	defer p.metrics.Since(metrics.EventPublish, start)

	data, err := json.Marshal(body)
	if err != nil {
		p.metrics.RecordError(metrics.EventPublish)
		return errors.Wrap(err, "failed to marshal message body")
	}

	msg := &azservicebus.Message{
		Body:        data,
		ContentType: stringPtr("application/json"),
		Subject:     stringPtr(eventType),
		ApplicationProperties: map[string]interface{}{
			"event_type": eventType,
			"source":     source,
			"time":       time.Now().UTC().Format(time.RFC3339),
		},
	}

	err = retryWithBackoff(ctx, func() error {
		return p.sender.SendMessage(ctx, msg, nil)
	}, 3)
	p.metrics.RecordOutcome(metrics.EventPublish, err)
	if err != nil {
		return errors.Wrapf(err, "failed to send %s to %s", eventType, p.queueName)
	}
	return nil
}

// Close closes the sender
func (p *servicebusPublisher) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}

type servicebusReceiver struct {
	receiver *azservicebus.Receiver
}

// NewReceiver creates a peek-lock receiver for queueName
func NewReceiver(client *azservicebus.Client, queueName string) (Receiver, error) {
	receiver, err := client.NewReceiverForQueue(queueName, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create receiver for queue %s", queueName)
	}
	return &servicebusReceiver{receiver: receiver}, nil
}

// Receive waits up to receiveTimeout for at most count messages
func (r *servicebusReceiver) Receive(ctx context.Context, count int) ([]Message, error) {
	receiveCtx, cancel := context.WithTimeout(ctx, receiveTimeout)
	defer cancel()

	received, err := r.receiver.ReceiveMessages(receiveCtx, count, nil)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, errors.Wrap(err, "failed to receive messages")
	}

	messages := make([]Message, 0, len(received))
	for _, m := range received {
		messages = append(messages, &servicebusMessage{message: m, receiver: r.receiver})
	}
	return messages, nil
}

// Close closes the receiver
func (r *servicebusReceiver) Close(ctx context.Context) error {
	return r.receiver.Close(ctx)
}

type servicebusMessage struct {
	message  *azservicebus.ReceivedMessage
	receiver *azservicebus.Receiver
}

// EventType returns the event_type property, falling back to the subject
func (m *servicebusMessage) EventType() string {
	if t, ok := m.message.ApplicationProperties["event_type"].(string); ok {
		return t
	}
	if m.message.Subject != nil {
		return *m.message.Subject
	}
	return ""
}

// Decode unmarshals the JSON body into v
func (m *servicebusMessage) Decode(v interface{}) error {
	if err := json.Unmarshal(m.message.Body, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}

// Complete removes the message from the queue
func (m *servicebusMessage) Complete(ctx context.Context) error {
	if err := m.receiver.CompleteMessage(ctx, m.message, nil); err != nil {
		return errors.Wrap(err, "failed to complete message")
	}
	return nil
}

// Abandon releases the lock so the message is redelivered
func (m *servicebusMessage) Abandon(ctx context.Context) error {
	if err := m.receiver.AbandonMessage(ctx, m.message, nil); err != nil {
		return errors.Wrap(err, "failed to abandon message")
	}
	return nil
}

// isDisconnectionError checks if an error is a transient link failure
func isDisconnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "amqp: link detached") ||
		strings.Contains(msg, "awaiting send: context deadline exceeded")
}

// retryWithBackoff retries fn on disconnection errors with exponential backoff
func retryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var err error
	for retry := 0; retry < maxRetries; retry++ {
		if err = fn(); err == nil || !isDisconnectionError(err) {
			return err
		}

		backoff := time.Duration(1<<uint(retry)) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func stringPtr(s string) *string {
	return &s
}

// NoopPublisher drops events; used when no Service Bus is configured
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close(context.Context) error { return nil }
