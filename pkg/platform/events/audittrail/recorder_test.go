package audittrail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityfix/pkg/platform/events"
	"cityfix/pkg/requestcontext"
)

type published struct {
	exchange, routingKey string
	env                  events.Envelope
}

type capturePublisher struct {
	got []published
}

func (c *capturePublisher) Publish(_ context.Context, exchange, routingKey string, env events.Envelope) {
	c.got = append(c.got, published{exchange, routingKey, env})
}

func TestRecordRoutesByAction(t *testing.T) {
	pub := &capturePublisher{}
	r := New(pub, "cityfix.audit", nil)

	reqTime := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), reqTime)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "curl/8")

	r.Record(ctx, events.Audit{
		EventType:  events.AuditReport,
		UserID:     7,
		Username:   "ana",
		EntityType: "Report",
		EntityID:   42,
		Action:     "report.create",
		Details:    "Created report: Pothole",
	})

	require.Len(t, pub.got, 1)
	assert.Equal(t, "cityfix.audit", pub.got[0].exchange)
	assert.Equal(t, "audit.report.create", pub.got[0].routingKey)
	assert.True(t, pub.got[0].env.OccurredAt.IsZero(), "occurred_at is stamped by the publisher")

	a, err := events.DecodeAudit(pub.got[0].env)
	require.NoError(t, err)
	assert.Equal(t, reqTime, a.Timestamp)
	assert.Equal(t, "203.0.113.9", a.IPAddress)
	assert.Equal(t, int64(42), a.EntityID)
}

func TestRecordKeepsExplicitValues(t *testing.T) {
	pub := &capturePublisher{}
	r := New(pub, "cityfix.audit", nil)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.Record(context.Background(), events.Audit{
		EventType: events.AuditUser, EntityType: "User", Action: "login", IPAddress: "10.0.0.1", Timestamp: ts,
	})

	a, err := events.DecodeAudit(pub.got[0].env)
	require.NoError(t, err)
	assert.Equal(t, ts, a.Timestamp)
	assert.Equal(t, "10.0.0.1", a.IPAddress)
	assert.Equal(t, "audit.login", pub.got[0].routingKey)
}
