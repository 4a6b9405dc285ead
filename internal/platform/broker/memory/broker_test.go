package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cityfix/internal/platform/broker"
)

type MemoryBrokerSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
}

func TestMemoryBrokerSuite(t *testing.T) {
	suite.Run(t, new(MemoryBrokerSuite))
}

func (s *MemoryBrokerSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)
}

func (s *MemoryBrokerSuite) TearDownTest() {
	s.cancel()
}

func topology() broker.Topology {
	return broker.Topology{
		Exchanges: []broker.Exchange{broker.TopicExchange("cityfix.reports"), broker.TopicExchange("cityfix.audit")},
		Queues: []broker.Queue{
			broker.DurableQueue("report.created.queue"),
			broker.DurableQueue("user.reports.counter.queue"),
			broker.DurableQueue("audit.logs.queue"),
		},
		Bindings: []broker.Binding{
			{Exchange: "cityfix.reports", Queue: "report.created.queue", Pattern: "report.created"},
			{Exchange: "cityfix.reports", Queue: "user.reports.counter.queue", Pattern: "report.created"},
			{Exchange: "cityfix.audit", Queue: "audit.logs.queue", Pattern: "audit.#"},
		},
	}
}

// collect consumes queue in the background and returns a channel of bodies.
func (s *MemoryBrokerSuite) collect(b *Broker, queue string, h broker.Handler) <-chan string {
	out := make(chan string, 16)
	go func() {
		_ = b.Consume(s.ctx, queue, broker.HandlerFunc(func(ctx context.Context, d *broker.Delivery) error {
			if h != nil {
				if err := h.Handle(ctx, d); err != nil {
					return err
				}
			}
			out <- string(d.Body)
			return nil
		}))
	}()
	return out
}

func (s *MemoryBrokerSuite) receive(ch <-chan string) string {
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for delivery")
		return ""
	}
}

func (s *MemoryBrokerSuite) TestFanOutToEveryBoundQueue() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	reports := s.collect(b, "report.created.queue", nil)
	counter := s.collect(b, "user.reports.counter.queue", nil)

	s.Require().NoError(b.Publish(s.ctx, "cityfix.reports", "report.created", broker.Message{Body: []byte("r1")}))
	s.Equal("r1", s.receive(reports))
	s.Equal("r1", s.receive(counter))
}

func (s *MemoryBrokerSuite) TestWildcardBindingAndUnroutedKeys() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.report.create", broker.Message{Body: []byte("a1")}))
	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.login", broker.Message{Body: []byte("a2")}))
	s.Require().NoError(b.Publish(s.ctx, "cityfix.reports", "report.deleted", broker.Message{Body: []byte("x")}))

	s.Equal(2, b.Depth("audit.logs.queue"))
	s.Equal(0, b.Depth("report.created.queue"))
}

func (s *MemoryBrokerSuite) TestRedeclareIsIdempotent() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))
	s.Require().NoError(b.Declare(s.ctx, topology()))

	s.Require().NoError(b.Publish(s.ctx, "cityfix.reports", "report.created", broker.Message{Body: []byte("r1")}))
	s.Equal(1, b.Depth("report.created.queue"))

	conflicting := broker.Topology{Queues: []broker.Queue{{Name: "report.created.queue", Durable: false}}}
	s.Error(b.Declare(s.ctx, conflicting))
}

func (s *MemoryBrokerSuite) TestPublishUnavailable() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	b.SetOffline(true)
	err := b.Publish(s.ctx, "cityfix.reports", "report.created", broker.Message{})
	s.ErrorIs(err, broker.ErrDeliveryUnavailable)

	b.SetOffline(false)
	err = b.Publish(s.ctx, "missing", "report.created", broker.Message{})
	s.ErrorIs(err, broker.ErrDeliveryUnavailable)
}

func (s *MemoryBrokerSuite) TestFailedDeliveryIsRedeliveredUntilHandled() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	var mu sync.Mutex
	attempts := 0
	redelivered := false
	out := s.collect(b, "audit.logs.queue", broker.HandlerFunc(func(_ context.Context, d *broker.Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("store down")
		}
		redelivered = d.Redelivered
		return nil
	}))

	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.register", broker.Message{Body: []byte("a1")}))
	s.Equal("a1", s.receive(out))

	mu.Lock()
	defer mu.Unlock()
	s.Equal(3, attempts)
	s.True(redelivered)
	s.Equal(0, b.Depth("audit.logs.queue"))
}

func (s *MemoryBrokerSuite) TestRequeuedMessageSurvivesConsumerRestart() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))
	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.login", broker.Message{Body: []byte("a1")}))

	ctx, cancel := context.WithCancel(s.ctx)
	failed := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Consume(ctx, "audit.logs.queue", broker.HandlerFunc(func(context.Context, *broker.Delivery) error {
			select {
			case failed <- struct{}{}:
				cancel()
			default:
			}
			return errors.New("store down")
		}))
	}()
	<-failed
	<-done
	s.Equal(1, b.Depth("audit.logs.queue"))

	out := s.collect(b, "audit.logs.queue", nil)
	s.Equal("a1", s.receive(out))
}

func (s *MemoryBrokerSuite) TestRedeliveryLimitDeadLetters() {
	b := New(broker.WithMaxRedeliveries(2))
	s.Require().NoError(b.Declare(s.ctx, topology().WithDeadLettering("cityfix.dlx")))

	go func() {
		_ = b.Consume(s.ctx, "audit.logs.queue", broker.HandlerFunc(func(context.Context, *broker.Delivery) error {
			return errors.New("store down")
		}))
	}()

	var dead *broker.Delivery
	got := make(chan *broker.Delivery, 1)
	go func() {
		_ = b.Consume(s.ctx, "audit.logs.queue.dead", broker.HandlerFunc(func(_ context.Context, d *broker.Delivery) error {
			got <- d
			return nil
		}))
	}()

	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.update",
		broker.Message{MessageID: "m-1", Body: []byte("a1")}))

	select {
	case dead = <-got:
	case <-time.After(2 * time.Second):
		s.FailNow("message was not dead-lettered")
	}
	s.Equal("a1", string(dead.Body))
	s.Equal("audit.logs.queue", dead.RoutingKey)
	s.Equal("audit.logs.queue", dead.Headers[broker.HeaderDeathQueue])
	s.Equal("audit.update", dead.Headers[broker.HeaderOriginalRoutingKey])
}

func (s *MemoryBrokerSuite) TestPermanentFailureWithoutDeadLetteringIsDiscarded() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	handled := make(chan struct{}, 2)
	go func() {
		_ = b.Consume(s.ctx, "audit.logs.queue", broker.HandlerFunc(func(context.Context, *broker.Delivery) error {
			handled <- struct{}{}
			return broker.Permanent(errors.New("not json"))
		}))
	}()
	s.Require().NoError(b.Publish(s.ctx, "cityfix.audit", "audit.login", broker.Message{Body: []byte("{")}))

	<-handled
	select {
	case <-handled:
		s.Fail("permanent failure was redelivered")
	case <-time.After(100 * time.Millisecond):
	}
	s.Equal(0, b.Depth("audit.logs.queue"))
}

func (s *MemoryBrokerSuite) TestConsumeReturnsOnCancel() {
	b := New()
	s.Require().NoError(b.Declare(s.ctx, topology()))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- b.Consume(ctx, "audit.logs.queue", broker.HandlerFunc(func(context.Context, *broker.Delivery) error { return nil })) }()
	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.FailNow("consume did not return")
	}

	s.Error(b.Consume(s.ctx, "missing", broker.HandlerFunc(func(context.Context, *broker.Delivery) error { return nil })))
}
