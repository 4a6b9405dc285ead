// Package events defines the envelope exchanged between cityfix services,
// its payload kinds, and the routing keys and topology they travel on.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TypeReportCreated = "report.created"
	TypeAudit         = "audit"
)

// ErrMalformed marks a body that cannot be decoded or fails its schema.
// Retrying such a message never succeeds.
var ErrMalformed = errors.New("malformed event")

// Envelope is the wire form of every event. OccurredAt is serialized as
// RFC 3339 text with nanosecond precision.
type Envelope struct {
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope. A zero occurredAt is left
// for the publisher to stamp.
func NewEnvelope(eventType string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{EventType: eventType, OccurredAt: occurredAt, Payload: raw}, nil
}

// Encode serializes env.
func Encode(env Envelope) ([]byte, error) {
	if env.EventType == "" {
		return nil, fmt.Errorf("envelope event_type is required")
	}
	return json.Marshal(env)
}

// Decode parses and schema-checks an envelope body. Unknown fields are
// ignored. Failures wrap ErrMalformed.
func Decode(body []byte) (Envelope, error) {
	if err := validate(envelopeSchema, body); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	return env, nil
}

func decodePayload(env Envelope, eventType, schema string, dst any) error {
	if env.EventType != eventType {
		return fmt.Errorf("%w: expected event_type %q, got %q", ErrMalformed, eventType, env.EventType)
	}
	if err := validate(schema, env.Payload); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, eventType, err)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, eventType, err)
	}
	return nil
}
