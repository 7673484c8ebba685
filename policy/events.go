package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// EventType discriminates PolicyEvent variants on the wire
type EventType string

const (
	EventPaymentFailure EventType = "PaymentFailureEvent"
	EventFraudFlag      EventType = "FraudFlagEvent"
	EventActivation     EventType = "ActivationEvent"
)

var ErrUnknownEventType = errors.New("unknown event type")

// PolicyEvent is something that happened to a policy. The set of variants is
// closed: only the types in this package implement it.
type PolicyEvent interface {
	Type() EventType
	OccurredAt() time.Time

	// attributes returns the variant-specific fields, excluding type and timestamp
	attributes() map[string]any
}

// PaymentFailureEvent reports a missed or declined premium payment
type PaymentFailureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
}

func (e PaymentFailureEvent) Type() EventType       { return EventPaymentFailure }
func (e PaymentFailureEvent) OccurredAt() time.Time { return e.Timestamp }
func (e PaymentFailureEvent) attributes() map[string]any {
	return map[string]any{"amount": amountValue(e.Amount)}
}

// amountValue keeps finite amounts numeric. JSON has no NaN or infinity, so
// those are recorded as the strings "NaN", "+Inf" and "-Inf".
func amountValue(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

func (e PaymentFailureEvent) MarshalJSON() ([]byte, error) {
	type alias PaymentFailureEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{EventPaymentFailure, alias(e)})
}

// FraudFlagEvent carries the outcome of a fraud check. Only Flag == true
// counts as confirmed fraud.
type FraudFlagEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Flag      bool      `json:"flag"`
}

func (e FraudFlagEvent) Type() EventType       { return EventFraudFlag }
func (e FraudFlagEvent) OccurredAt() time.Time { return e.Timestamp }
func (e FraudFlagEvent) attributes() map[string]any {
	return map[string]any{"flag": e.Flag}
}

func (e FraudFlagEvent) MarshalJSON() ([]byte, error) {
	type alias FraudFlagEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{EventFraudFlag, alias(e)})
}

// ActivationEvent marks the moment a pending policy was put in force
type ActivationEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e ActivationEvent) Type() EventType            { return EventActivation }
func (e ActivationEvent) OccurredAt() time.Time      { return e.Timestamp }
func (e ActivationEvent) attributes() map[string]any { return map[string]any{} }

func (e ActivationEvent) MarshalJSON() ([]byte, error) {
	type alias ActivationEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{EventActivation, alias(e)})
}

// DecodeEvent decodes a single tagged event. Only the "type" field is
// checked; the remaining fields are decoded leniently.
func DecodeEvent(data []byte) (PolicyEvent, error) {
	var tag struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	switch tag.Type {
	case EventPaymentFailure:
		var e PaymentFailureEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", tag.Type, err)
		}
		return e, nil
	case EventFraudFlag:
		var e FraudFlagEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", tag.Type, err)
		}
		return e, nil
	case EventActivation:
		var e ActivationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", tag.Type, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, tag.Type)
	}
}

// Events is a JSON-decodable list of tagged events
type Events []PolicyEvent

func (es *Events) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("events must be an array: %w", err)
	}

	out := make(Events, 0, len(raw))
	for i, r := range raw {
		e, err := DecodeEvent(r)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, e)
	}
	*es = out
	return nil
}

// eventRecord flattens an event into the map shared by rule conditions and
// the inputs digest. Timestamps are normalised to UTC so the same instant
// always produces the same record.
func eventRecord(e PolicyEvent) map[string]any {
	rec := e.attributes()
	rec["type"] = string(e.Type())
	rec["timestamp"] = e.OccurredAt().UTC().Format(time.RFC3339Nano)
	return rec
}
