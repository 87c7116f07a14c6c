// Package events publishes order lifecycle events to Kafka for downstream
// consumers (analytics, fulfillment dashboards). Publishing is fail-open:
// the order flow never blocks or fails because an event could not be
// delivered.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one order lifecycle transition.
type Event struct {
	Type        string    `json:"type"`
	DomainName  string    `json:"domainName"`
	OperationID string    `json:"operationId,omitempty"`
	State       string    `json:"state,omitempty"`
	Wallet      string    `json:"wallet,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

// Event types emitted by the orchestrator.
const (
	TypeDomainReserved     = "domain.reserved"
	TypeReservationFailed  = "domain.reservation_failed"
	TypeTransferStarted    = "domain.transfer_started"
	TypeTransferFailed     = "domain.transfer_failed"
	TypeOperationCompleted = "operation.completed"
	TypeDomainReturned     = "domain.returned"
	TypePaymentVerified    = "payment.verified"
	TypePaymentFailed      = "payment.failed"
)

// Publisher emits order events. Implementations must be safe for concurrent
// use and must never return an error that should abort the calling flow.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// KafkaPublisher produces events to a single topic, keyed by domain name so
// per-domain ordering is preserved across partitions.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaPublisher connects to the given brokers and produces to topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

// Publish produces the event asynchronously. Delivery failures are logged
// and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "order event marshal failed", "type", event.Type, "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(event.DomainName),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("order event delivery failed",
				"type", event.Type,
				"domain", event.DomainName,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// NoopPublisher discards all events. Used when no brokers are configured
// and in tests that do not assert on events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}
func (NoopPublisher) Close()                         {}
