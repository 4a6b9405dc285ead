// Package brokertest holds a conformance suite every broker transport must
// pass. Each run uses fresh exchange and queue names so suites can share a
// long-lived server.
package brokertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cityfix/internal/platform/broker"
)

// Factory builds a transport for one subtest. Options carry the consumer
// policy under test.
type Factory func(t *testing.T, opts ...broker.Option) broker.Broker

type names struct {
	reports, audit, dlx       string
	reportQ, counterQ, auditQ string
}

func newNames() names {
	suffix := uuid.NewString()[:8]
	return names{
		reports:  "cityfix.reports." + suffix,
		audit:    "cityfix.audit." + suffix,
		dlx:      "cityfix.dlx." + suffix,
		reportQ:  "report.created.queue." + suffix,
		counterQ: "user.reports.counter.queue." + suffix,
		auditQ:   "audit.logs.queue." + suffix,
	}
}

func (n names) topology() broker.Topology {
	return broker.Topology{
		Exchanges: []broker.Exchange{broker.TopicExchange(n.reports), broker.TopicExchange(n.audit)},
		Queues: []broker.Queue{
			broker.DurableQueue(n.reportQ),
			broker.DurableQueue(n.counterQ),
			broker.DurableQueue(n.auditQ),
		},
		Bindings: []broker.Binding{
			{Exchange: n.reports, Queue: n.reportQ, Pattern: "report.created"},
			{Exchange: n.reports, Queue: n.counterQ, Pattern: "report.created"},
			{Exchange: n.audit, Queue: n.auditQ, Pattern: "audit.#"},
		},
	}
}

// Run executes the conformance suite against transports built by f.
func Run(t *testing.T, f Factory) {
	t.Run("fan-out to every bound queue", func(t *testing.T) { testFanOut(t, f) })
	t.Run("wildcard binding", func(t *testing.T) { testWildcard(t, f) })
	t.Run("failed delivery is redelivered", func(t *testing.T) { testRedelivery(t, f) })
	t.Run("redelivery limit dead-letters", func(t *testing.T) { testDeadLetter(t, f) })
	t.Run("redeclare is idempotent", func(t *testing.T) { testRedeclare(t, f) })
}

type recorder struct {
	mu  sync.Mutex
	got []*broker.Delivery
	ch  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) add(d *broker.Delivery) {
	r.mu.Lock()
	r.got = append(r.got, d)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []*broker.Delivery {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-deadline:
			t.Fatalf("received %d of %d deliveries", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*broker.Delivery(nil), r.got...)
}

func consume(ctx context.Context, b broker.Broker, queue string, h broker.HandlerFunc) {
	go func() { _ = b.Consume(ctx, queue, h) }()
}

func message(body string) broker.Message {
	return broker.Message{
		MessageID:   uuid.NewString(),
		ContentType: broker.ContentTypeJSON,
		Timestamp:   time.Now().UTC(),
		Headers:     map[string]string{},
		Body:        []byte(body),
	}
}

func setup(t *testing.T, f Factory, topo broker.Topology, opts ...broker.Option) (context.Context, broker.Broker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	b := f(t, opts...)
	require.NoError(t, b.Declare(ctx, topo))
	return ctx, b
}

func testFanOut(t *testing.T, f Factory) {
	n := newNames()
	ctx, b := setup(t, f, n.topology())

	reports, counter := newRecorder(), newRecorder()
	consume(ctx, b, n.reportQ, func(_ context.Context, d *broker.Delivery) error { reports.add(d); return nil })
	consume(ctx, b, n.counterQ, func(_ context.Context, d *broker.Delivery) error { counter.add(d); return nil })

	msg := message(`{"n":1}`)
	require.NoError(t, b.Publish(ctx, n.reports, "report.created", msg))

	for _, r := range []*recorder{reports, counter} {
		got := r.wait(t, 1)
		require.Equal(t, `{"n":1}`, string(got[0].Body))
		require.Equal(t, msg.MessageID, got[0].MessageID)
		require.Equal(t, "report.created", got[0].RoutingKey)
	}
}

func testWildcard(t *testing.T, f Factory) {
	n := newNames()
	ctx, b := setup(t, f, n.topology())

	audit := newRecorder()
	consume(ctx, b, n.auditQ, func(_ context.Context, d *broker.Delivery) error { audit.add(d); return nil })

	require.NoError(t, b.Publish(ctx, n.audit, "audit.report.create", message("a")))
	require.NoError(t, b.Publish(ctx, n.audit, "audit.login", message("b")))

	got := audit.wait(t, 2)
	keys := []string{got[0].RoutingKey, got[1].RoutingKey}
	require.ElementsMatch(t, []string{"audit.report.create", "audit.login"}, keys)
}

func testRedelivery(t *testing.T, f Factory) {
	n := newNames()
	ctx, b := setup(t, f, n.topology())

	var mu sync.Mutex
	attempts := 0
	done := newRecorder()
	consume(ctx, b, n.auditQ, func(_ context.Context, d *broker.Delivery) error {
		mu.Lock()
		attempts++
		a := attempts
		mu.Unlock()
		if a < 3 {
			return errors.New("store unavailable")
		}
		done.add(d)
		return nil
	})

	require.NoError(t, b.Publish(ctx, n.audit, "audit.register", message("r")))
	got := done.wait(t, 1)
	require.Equal(t, "r", string(got[0].Body))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
}

func testDeadLetter(t *testing.T, f Factory) {
	n := newNames()
	topo := n.topology().WithDeadLettering(n.dlx)
	ctx, b := setup(t, f, topo, broker.WithMaxRedeliveries(2))

	consume(ctx, b, n.auditQ, func(context.Context, *broker.Delivery) error {
		return errors.New("store unavailable")
	})
	dead := newRecorder()
	consume(ctx, b, n.auditQ+broker.DeadQueueSuffix, func(_ context.Context, d *broker.Delivery) error {
		dead.add(d)
		return nil
	})

	msg := message("poison")
	require.NoError(t, b.Publish(ctx, n.audit, "audit.update", msg))
	got := dead.wait(t, 1)
	require.Equal(t, "poison", string(got[0].Body))
	require.Equal(t, msg.MessageID, got[0].MessageID)
}

func testRedeclare(t *testing.T, f Factory) {
	n := newNames()
	ctx, b := setup(t, f, n.topology())
	require.NoError(t, b.Declare(ctx, n.topology()))

	reports := newRecorder()
	consume(ctx, b, n.reportQ, func(_ context.Context, d *broker.Delivery) error { reports.add(d); return nil })
	require.NoError(t, b.Publish(ctx, n.reports, "report.created", message("once")))
	got := reports.wait(t, 1)
	require.Len(t, got, 1)
}
