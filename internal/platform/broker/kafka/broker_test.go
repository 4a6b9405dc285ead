package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"cityfix/internal/platform/broker"
)

func TestToDeliveryPrefersRoutingKeyHeader(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &kgo.Record{
		Topic:     "cityfix.audit",
		Key:       []byte("ignored"),
		Value:     []byte(`{}`),
		Timestamp: ts,
		Headers: []kgo.RecordHeader{
			{Key: broker.HeaderRoutingKey, Value: []byte("audit.login")},
			{Key: headerMessageID, Value: []byte("m-1")},
			{Key: headerContentType, Value: []byte(broker.ContentTypeJSON)},
			{Key: "traceparent", Value: []byte("00-abc")},
		},
	}

	d := toDelivery(rec)
	assert.Equal(t, "cityfix.audit", d.Exchange)
	assert.Equal(t, "audit.login", d.RoutingKey)
	assert.Equal(t, "m-1", d.MessageID)
	assert.Equal(t, broker.ContentTypeJSON, d.ContentType)
	assert.Equal(t, map[string]string{"traceparent": "00-abc"}, d.Headers)
	assert.Equal(t, ts, d.Timestamp)
}

func TestToDeliveryFallsBackToRecordKey(t *testing.T) {
	d := toDelivery(&kgo.Record{Topic: "cityfix.reports", Key: []byte("report.created")})
	assert.Equal(t, "report.created", d.RoutingKey)
}

func TestBoundFiltersByExchangeAndPattern(t *testing.T) {
	bindings := []broker.Binding{{Exchange: "cityfix.audit", Queue: "audit.logs.queue", Pattern: "audit.#"}}

	assert.True(t, bound(bindings, &broker.Delivery{Exchange: "cityfix.audit", RoutingKey: "audit.report.delete"}))
	assert.False(t, bound(bindings, &broker.Delivery{Exchange: "cityfix.reports", RoutingKey: "audit.login"}))
	assert.False(t, bound(bindings, &broker.Delivery{Exchange: "cityfix.audit", RoutingKey: "report.created"}))
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
