package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "cityfix/pkg/domain"
)

type EnvelopeSuite struct {
	suite.Suite
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) reportCreated() ReportCreated {
	return ReportCreated{
		ReportID:  42,
		UserID:    7,
		Title:     "Pothole on Main St",
		Status:    "OPEN",
		Category:  "ROADS",
		Priority:  "MEDIUM",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC),
	}
}

func (s *EnvelopeSuite) TestReportCreatedRoundTrip() {
	occurred := time.Date(2026, 3, 1, 10, 0, 1, 987654321, time.UTC)
	env, err := NewReportCreatedEnvelope(occurred, s.reportCreated())
	s.Require().NoError(err)

	body, err := Encode(env)
	s.Require().NoError(err)
	s.Contains(string(body), `"occurred_at":"2026-03-01T10:00:01.987654321Z"`)
	s.Contains(string(body), `"report_id":42`)

	decoded, err := Decode(body)
	s.Require().NoError(err)
	s.True(occurred.Equal(decoded.OccurredAt))

	p, err := DecodeReportCreated(decoded)
	s.Require().NoError(err)
	s.Equal(s.reportCreated(), p)
}

func (s *EnvelopeSuite) TestUnknownFieldsAreIgnored() {
	body := []byte(`{"event_type":"audit","occurred_at":"2026-03-01T10:00:00Z","trace":"x",
		"payload":{"event_type":"USER","entity_type":"User","action":"login","user_id":3,"extra":true}}`)
	env, err := Decode(body)
	s.Require().NoError(err)
	p, err := DecodeAudit(env)
	s.Require().NoError(err)
	s.Equal(id.UserID(3), p.UserID)
	s.Equal("login", p.Action)
	s.True(p.Timestamp.IsZero())
}

func (s *EnvelopeSuite) TestMalformedBodies() {
	cases := map[string]string{
		"not json":           `{`,
		"missing payload":    `{"event_type":"audit","occurred_at":"2026-03-01T10:00:00Z"}`,
		"epoch ticks":        `{"event_type":"audit","occurred_at":1709287200,"payload":{}}`,
		"bad date-time":      `{"event_type":"audit","occurred_at":"yesterday","payload":{}}`,
		"payload not object": `{"event_type":"audit","occurred_at":"2026-03-01T10:00:00Z","payload":"x"}`,
		"empty event type":   `{"event_type":"","occurred_at":"2026-03-01T10:00:00Z","payload":{}}`,
	}
	for name, body := range cases {
		s.Run(name, func() {
			_, err := Decode([]byte(body))
			s.ErrorIs(err, ErrMalformed)
		})
	}
}

func (s *EnvelopeSuite) TestPayloadSchemaViolations() {
	s.Run("report.created without user", func() {
		raw := map[string]any{"report_id": 1, "title": "t", "status": "OPEN", "category": "c", "priority": "LOW",
			"created_at": "2026-03-01T10:00:00Z"}
		env := s.envelope(TypeReportCreated, raw)
		_, err := DecodeReportCreated(env)
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("audit with unknown source", func() {
		env := s.envelope(TypeAudit, map[string]any{"event_type": "SYSTEM", "entity_type": "User", "action": "login"})
		_, err := DecodeAudit(env)
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("wrong event type", func() {
		env := s.envelope(TypeAudit, map[string]any{"event_type": "USER", "entity_type": "User", "action": "login"})
		_, err := DecodeReportCreated(env)
		s.ErrorIs(err, ErrMalformed)
	})
}

func (s *EnvelopeSuite) envelope(eventType string, payload map[string]any) Envelope {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	return Envelope{EventType: eventType, OccurredAt: time.Now().UTC(), Payload: raw}
}

func TestEncodeRequiresEventType(t *testing.T) {
	_, err := Encode(Envelope{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformed))
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	current := fixed
	c := NewClock(func() time.Time { return current })

	first := c.Now()
	second := c.Now()
	require.True(t, second.After(first))

	current = fixed.Add(-time.Hour)
	third := c.Now()
	assert.True(t, third.After(second), "clock must not step backwards")

	current = fixed.Add(time.Hour)
	assert.Equal(t, current, c.Now())
}

func TestAuditRoutingKey(t *testing.T) {
	assert.Equal(t, "audit.report.create", AuditRoutingKey("report.create"))
	assert.Equal(t, "audit.login", AuditRoutingKey("login"))
}
