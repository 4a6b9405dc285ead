package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cityfix/internal/platform/broker"
)

const (
	RoutingKeyReportCreated = "report.created"
	AuditRoutingPrefix      = "audit."
	AuditBindingPattern     = "audit.#"

	HeaderEventType = "x-event-type"
)

// AuditRoutingKey is the key an audit envelope for action is published with.
func AuditRoutingKey(action string) string {
	return AuditRoutingPrefix + action
}

// Names are the configurable exchange and queue names.
type Names struct {
	ReportsExchange    string
	AuditExchange      string
	ReportCreatedQueue string
	AuditLogsQueue     string
	UserCounterQueue   string
	// DeadLetterExchange enables dead-letter queues when set.
	DeadLetterExchange string
}

func DefaultNames() Names {
	return Names{
		ReportsExchange:    "cityfix.reports",
		AuditExchange:      "cityfix.audit",
		ReportCreatedQueue: "report.created.queue",
		AuditLogsQueue:     "audit.logs.queue",
		UserCounterQueue:   "user.reports.counter.queue",
	}
}

func (n Names) finish(t broker.Topology) broker.Topology {
	if n.DeadLetterExchange == "" {
		return t
	}
	return t.WithDeadLettering(n.DeadLetterExchange)
}

// ReportServiceTopology declares both exchanges the report service publishes
// to and the report.created queue.
func (n Names) ReportServiceTopology() broker.Topology {
	return n.finish(broker.Topology{
		Exchanges: []broker.Exchange{broker.TopicExchange(n.ReportsExchange), broker.TopicExchange(n.AuditExchange)},
		Queues:    []broker.Queue{broker.DurableQueue(n.ReportCreatedQueue)},
		Bindings: []broker.Binding{
			{Exchange: n.ReportsExchange, Queue: n.ReportCreatedQueue, Pattern: RoutingKeyReportCreated},
		},
	})
}

// UserServiceTopology declares the counter queue bound to report.created.
func (n Names) UserServiceTopology() broker.Topology {
	return n.finish(broker.Topology{
		Exchanges: []broker.Exchange{broker.TopicExchange(n.ReportsExchange), broker.TopicExchange(n.AuditExchange)},
		Queues:    []broker.Queue{broker.DurableQueue(n.UserCounterQueue)},
		Bindings: []broker.Binding{
			{Exchange: n.ReportsExchange, Queue: n.UserCounterQueue, Pattern: RoutingKeyReportCreated},
		},
	})
}

// LogServiceTopology declares the audit queue bound to every audit key.
func (n Names) LogServiceTopology() broker.Topology {
	return n.finish(broker.Topology{
		Exchanges: []broker.Exchange{broker.TopicExchange(n.AuditExchange)},
		Queues:    []broker.Queue{broker.DurableQueue(n.AuditLogsQueue)},
		Bindings: []broker.Binding{
			{Exchange: n.AuditExchange, Queue: n.AuditLogsQueue, Pattern: AuditBindingPattern},
		},
	})
}

// Topology is the union of all three service topologies.
func (n Names) Topology() broker.Topology {
	return n.ReportServiceTopology().Merge(n.UserServiceTopology()).Merge(n.LogServiceTopology())
}

// NewMessage encodes env as a persistent broker message with a fresh id and
// the caller's trace context.
func NewMessage(ctx context.Context, env Envelope) (broker.Message, error) {
	body, err := Encode(env)
	if err != nil {
		return broker.Message{}, err
	}
	msg := broker.Message{
		MessageID:   uuid.NewString(),
		ContentType: broker.ContentTypeJSON,
		Timestamp:   env.OccurredAt,
		Headers:     map[string]string{HeaderEventType: env.EventType},
		Body:        body,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	broker.InjectTrace(ctx, &msg)
	return msg, nil
}
