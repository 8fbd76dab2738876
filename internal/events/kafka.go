package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces RegistrationCreated events asynchronously.
// Delivery failures are logged; they never fail or delay the registration.
type KafkaPublisher struct {
	client          *kgo.Client
	topic           string
	logger          *slog.Logger
	maxBuffered     int
	deliveryTimeout time.Duration
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithKafkaLogger sets the logger used for delivery failures.
func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// WithMaxBufferedRecords bounds the records waiting for a broker. Events
// published while the buffer is full are dropped.
func WithMaxBufferedRecords(n int) KafkaOption {
	return func(p *KafkaPublisher) {
		p.maxBuffered = n
	}
}

// WithDeliveryTimeout bounds how long one record is retried before it is
// dropped.
func WithDeliveryTimeout(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) {
		p.deliveryTimeout = d
	}
}

// NewKafkaPublisher connects to brokers and produces to topic.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	p := &KafkaPublisher{
		topic:           topic,
		logger:          slog.Default(),
		maxBuffered:     1000,
		deliveryTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MaxBufferedRecords(max(p.maxBuffered, 1)),
		kgo.RecordDeliveryTimeout(p.deliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p.client = client
	return p, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Publish enqueues the event keyed by the email hash so one lead's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event RegistrationCreated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal registration event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.EmailHash),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(TypeRegistrationCreated)},
		},
	}
	// TryProduce never blocks the submit: a full buffer fails the record
	// with kgo.ErrMaxBuffered instead. The request context ends with the
	// HTTP response, so delivery runs detached from it.
	p.client.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		msg := "failed to deliver registration event"
		if errors.Is(err, kgo.ErrMaxBuffered) {
			msg = "dropped registration event, producer buffer full"
		}
		p.logger.Error(msg,
			"registration_id", event.RegistrationID,
			"topic", r.Topic,
			"error", err,
		)
	})
	return nil
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
