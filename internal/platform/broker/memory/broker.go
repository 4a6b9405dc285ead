// Package memory is an in-process topic broker with the same routing and
// acknowledgement semantics as the network transports. Messages live only as
// long as the process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cityfix/internal/platform/broker"
)

type queue struct {
	decl   broker.Queue
	mu     sync.Mutex
	items  []*broker.Delivery
	signal chan struct{}
}

func newQueue(decl broker.Queue) *queue {
	return &queue{decl: decl, signal: make(chan struct{}, 1)}
}

func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) push(d *broker.Delivery) {
	q.mu.Lock()
	q.items = append(q.items, d)
	q.mu.Unlock()
	q.notify()
}

// pushFront puts a requeued delivery back at the head so it is redelivered next.
func (q *queue) pushFront(d *broker.Delivery) {
	q.mu.Lock()
	q.items = append([]*broker.Delivery{d}, q.items...)
	q.mu.Unlock()
	q.notify()
}

func (q *queue) pop(ctx context.Context) (*broker.Delivery, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			d := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.notify()
			}
			return d, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Broker implements broker.Broker in memory.
type Broker struct {
	settings broker.Settings

	mu        sync.RWMutex
	exchanges map[string]broker.Exchange
	queues    map[string]*queue
	bindings  []broker.Binding
	closed    bool

	offline atomic.Bool
}

func New(opts ...broker.Option) *Broker {
	return &Broker{
		settings:  broker.NewSettings(opts...),
		exchanges: make(map[string]broker.Exchange),
		queues:    make(map[string]*queue),
	}
}

// SetOffline makes Publish fail as an unreachable broker would.
func (b *Broker) SetOffline(offline bool) {
	b.offline.Store(offline)
}

func (b *Broker) Declare(ctx context.Context, t broker.Topology) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ex := range t.Exchanges {
		if prev, ok := b.exchanges[ex.Name]; ok && prev != ex {
			return fmt.Errorf("exchange %s already declared with different properties", ex.Name)
		}
	}
	for _, q := range t.Queues {
		if prev, ok := b.queues[q.Name]; ok && prev.decl != q {
			return fmt.Errorf("queue %s already declared with different properties", q.Name)
		}
	}

	for _, ex := range t.Exchanges {
		b.exchanges[ex.Name] = ex
	}
	for _, q := range t.Queues {
		if _, ok := b.queues[q.Name]; !ok {
			b.queues[q.Name] = newQueue(q)
		}
	}
	for _, bind := range t.Bindings {
		if !b.hasBinding(bind) {
			b.bindings = append(b.bindings, bind)
		}
	}
	return nil
}

func (b *Broker) hasBinding(bind broker.Binding) bool {
	for _, existing := range b.bindings {
		if existing == bind {
			return true
		}
	}
	return false
}

func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, msg broker.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrDeliveryUnavailable, err)
	}
	if b.offline.Load() {
		return fmt.Errorf("%w: memory broker offline", broker.ErrDeliveryUnavailable)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: memory broker closed", broker.ErrDeliveryUnavailable)
	}
	if _, ok := b.exchanges[exchange]; !ok {
		return fmt.Errorf("%w: exchange %s not declared", broker.ErrDeliveryUnavailable, exchange)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b.route(exchange, routingKey, msg)
	return nil
}

// route copies msg into every queue with a matching binding, once per queue.
// Messages matching no binding are dropped, as on an AMQP topic exchange.
func (b *Broker) route(exchange, routingKey string, msg broker.Message) {
	delivered := map[string]bool{}
	for _, bind := range b.bindings {
		if bind.Exchange != exchange || delivered[bind.Queue] {
			continue
		}
		if !broker.MatchRoutingKey(bind.Pattern, routingKey) {
			continue
		}
		delivered[bind.Queue] = true
		b.queues[bind.Queue].push(&broker.Delivery{
			Message:    msg.Clone(),
			Exchange:   exchange,
			RoutingKey: routingKey,
		})
	}
}

func (b *Broker) Consume(ctx context.Context, queueName string, h broker.Handler) error {
	b.mu.RLock()
	q, ok := b.queues[queueName]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("queue %s not declared", queueName)
	}

	p, err := broker.NewProcessor(q.decl, h, b.settings)
	if err != nil {
		return err
	}

	for {
		d, err := q.pop(ctx)
		if err != nil {
			return nil
		}
		switch p.Process(ctx, d) {
		case broker.OutcomeAck, broker.OutcomeDiscard:
		case broker.OutcomeRequeue:
			d.Redelivered = true
			q.pushFront(d)
			if !b.pause(ctx) {
				return nil
			}
		case broker.OutcomeDeadLetter:
			b.deadLetter(ctx, q.decl, d)
		}
	}
}

func (b *Broker) pause(ctx context.Context) bool {
	if b.settings.RedeliveryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(b.settings.RedeliveryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *Broker) deadLetter(ctx context.Context, q broker.Queue, d *broker.Delivery) {
	msg := d.Message.Clone()
	msg.Headers = broker.DeadLetterHeaders(q.Name, d)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.exchanges[q.DeadLetterExchange]; !ok {
		b.settings.Logger.ErrorContext(ctx, "dead-letter exchange missing, message dropped",
			"queue", q.Name,
			"exchange", q.DeadLetterExchange,
			"message_id", d.MessageID,
		)
		return
	}
	b.route(q.DeadLetterExchange, q.DeadLetterRoutingKey, msg)
}

// Depth returns the number of messages waiting in queue.
func (b *Broker) Depth(queueName string) int {
	b.mu.RLock()
	q, ok := b.queues[queueName]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.depth()
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ broker.Broker = (*Broker)(nil)
