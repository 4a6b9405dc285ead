// Package kafka implements the broker contract on Kafka.
//
// An exchange is a topic. The routing key travels as the record key and in
// the x-routing-key header. A queue is a consumer group subscribed to the
// topics of its bindings; records that match none of the queue's binding
// patterns are committed without being handled. A requeue retries the
// record in place without committing its offset, so the work survives a
// restart. Dead-lettering produces the record to the dead-letter topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"cityfix/internal/platform/broker"
)

const (
	headerMessageID   = "x-message-id"
	headerContentType = "content-type"
)

// Config describes the cluster and how topics are created.
type Config struct {
	Brokers           []string
	Partitions        int32
	ReplicationFactor int16
}

type Broker struct {
	cfg      Config
	settings broker.Settings
	client   *kgo.Client
	admin    *kadm.Client

	mu        sync.RWMutex
	exchanges map[string]bool
	topology  broker.Topology
}

func New(cfg Config, opts ...broker.Option) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one seed broker is required")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: kafka client: %v", broker.ErrDeliveryUnavailable, err)
	}
	return &Broker{
		cfg:       cfg,
		settings:  broker.NewSettings(opts...),
		client:    client,
		admin:     kadm.NewClient(client),
		exchanges: make(map[string]bool),
	}, nil
}

// Declare creates one topic per exchange. Existing topics are left alone.
// Queues and bindings are recorded for Consume.
func (b *Broker) Declare(ctx context.Context, t broker.Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}
	topics := make([]string, 0, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		topics = append(topics, ex.Name)
	}
	resp, err := b.admin.CreateTopics(ctx, b.cfg.Partitions, b.cfg.ReplicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ex := range t.Exchanges {
		b.exchanges[ex.Name] = true
	}
	b.topology = b.topology.Merge(t)
	return nil
}

func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, msg broker.Message) error {
	b.mu.RLock()
	declared := b.exchanges[exchange]
	b.mu.RUnlock()
	if !declared {
		return fmt.Errorf("%w: exchange %s not declared", broker.ErrDeliveryUnavailable, exchange)
	}
	if err := b.produce(ctx, exchange, routingKey, msg); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrDeliveryUnavailable, err)
	}
	return nil
}

func (b *Broker) produce(ctx context.Context, topic, routingKey string, msg broker.Message) error {
	rec := &kgo.Record{
		Topic:     topic,
		Key:       []byte(routingKey),
		Value:     msg.Body,
		Timestamp: msg.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: broker.HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: headerMessageID, Value: []byte(msg.MessageID)},
			{Key: headerContentType, Value: []byte(msg.ContentType)},
		},
	}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return b.client.ProduceSync(ctx, rec).FirstErr()
}

func (b *Broker) Consume(ctx context.Context, queue string, h broker.Handler) error {
	b.mu.RLock()
	decl, ok := b.topology.Queue(queue)
	bindings := b.topology.BindingsFor(queue)
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("queue %s not declared", queue)
	}
	p, err := broker.NewProcessor(decl, h, b.settings)
	if err != nil {
		return err
	}

	var topics []string
	seen := map[string]bool{}
	for _, bind := range bindings {
		if !seen[bind.Exchange] {
			seen[bind.Exchange] = true
			topics = append(topics, bind.Exchange)
		}
	}
	if len(topics) == 0 {
		return fmt.Errorf("queue %s has no bindings", queue)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.cfg.Brokers...),
		kgo.ConsumerGroup(queue),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchMaxWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("%w: kafka consumer: %v", broker.ErrDeliveryUnavailable, err)
	}
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			b.settings.Logger.WarnContext(ctx, "kafka fetch error",
				"queue", queue,
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		for _, rec := range fetches.Records() {
			if !b.handleRecord(ctx, p, decl, bindings, rec) {
				return nil
			}
			if err := consumer.CommitRecords(ctx, rec); err != nil && ctx.Err() == nil {
				b.settings.Logger.WarnContext(ctx, "kafka commit failed",
					"queue", queue,
					"topic", rec.Topic,
					"offset", rec.Offset,
					"error", err,
				)
			}
		}
	}
}

// handleRecord processes rec until it is settled. It returns false when ctx
// ended first, leaving the offset uncommitted.
func (b *Broker) handleRecord(ctx context.Context, p *broker.Processor, q broker.Queue, bindings []broker.Binding, rec *kgo.Record) bool {
	d := toDelivery(rec)
	if !bound(bindings, d) {
		return true
	}
	for {
		switch p.Process(ctx, d) {
		case broker.OutcomeAck, broker.OutcomeDiscard:
			return true
		case broker.OutcomeDeadLetter:
			if b.deadLetter(ctx, q, d) {
				return true
			}
		case broker.OutcomeRequeue:
		}
		if !pause(ctx, b.settings.RedeliveryDelay) {
			return false
		}
		d.Redelivered = true
	}
}

func (b *Broker) deadLetter(ctx context.Context, q broker.Queue, d *broker.Delivery) bool {
	msg := d.Message.Clone()
	msg.Headers = broker.DeadLetterHeaders(q.Name, d)
	if err := b.produce(ctx, q.DeadLetterExchange, q.DeadLetterRoutingKey, msg); err != nil {
		b.settings.Logger.ErrorContext(ctx, "dead-letter produce failed, retrying record",
			"queue", q.Name,
			"message_id", d.MessageID,
			"error", err,
		)
		return false
	}
	return true
}

func bound(bindings []broker.Binding, d *broker.Delivery) bool {
	for _, bind := range bindings {
		if bind.Exchange == d.Exchange && broker.MatchRoutingKey(bind.Pattern, d.RoutingKey) {
			return true
		}
	}
	return false
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func toDelivery(rec *kgo.Record) *broker.Delivery {
	d := &broker.Delivery{
		Message: broker.Message{
			Timestamp: rec.Timestamp,
			Headers:   make(map[string]string, len(rec.Headers)),
			Body:      rec.Value,
		},
		Exchange:   rec.Topic,
		RoutingKey: string(rec.Key),
	}
	for _, h := range rec.Headers {
		switch h.Key {
		case broker.HeaderRoutingKey:
			d.RoutingKey = string(h.Value)
		case headerMessageID:
			d.MessageID = string(h.Value)
		case headerContentType:
			d.ContentType = string(h.Value)
		default:
			d.Headers[h.Key] = string(h.Value)
		}
	}
	return d
}

func (b *Broker) Close() error {
	b.client.Close()
	return nil
}

var _ broker.Broker = (*Broker)(nil)
