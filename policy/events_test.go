package policy

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(string(st))
		if err != nil {
			t.Errorf("ParseStatus(%q) failed: %v", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %q", st, got)
		}
	}

	for _, bad := range []string{"", "active", "ACTIVE", "Lapsed", " Active"} {
		if _, err := ParseStatus(bad); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrUnknownStatus", bad, err)
		}
	}
}

func TestStatusUnmarshalJSON(t *testing.T) {
	var st PolicyStatus
	if err := json.Unmarshal([]byte(`"Suspended"`), &st); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if st != StatusSuspended {
		t.Errorf("status = %s, want Suspended", st)
	}

	if err := json.Unmarshal([]byte(`"Expired"`), &st); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("Unmarshal(Expired) error = %v, want ErrUnknownStatus", err)
	}
	if err := json.Unmarshal([]byte(`3`), &st); err == nil {
		t.Error("Unmarshal(3) should fail")
	}
}

func TestDecodeEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	testCases := []struct {
		name string
		json string
		want PolicyEvent
	}{
		{
			name: "Payment failure",
			json: `{"type":"PaymentFailureEvent","timestamp":"2026-03-01T09:30:00Z","amount":125.5}`,
			want: PaymentFailureEvent{Timestamp: ts, Amount: 125.5},
		},
		{
			name: "Fraud flag",
			json: `{"type":"FraudFlagEvent","timestamp":"2026-03-01T09:30:00Z","flag":true}`,
			want: FraudFlagEvent{Timestamp: ts, Flag: true},
		},
		{
			name: "Activation",
			json: `{"type":"ActivationEvent","timestamp":"2026-03-01T09:30:00Z"}`,
			want: ActivationEvent{Timestamp: ts},
		},
		{
			name: "Extra fields are ignored",
			json: `{"type":"ActivationEvent","timestamp":"2026-03-01T09:30:00Z","channel":"web"}`,
			want: ActivationEvent{Timestamp: ts},
		},
		{
			name: "Missing optional fields",
			json: `{"type":"FraudFlagEvent"}`,
			want: FraudFlagEvent{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tc.json))
			if err != nil {
				t.Fatalf("DecodeEvent() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("DecodeEvent() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestDecodeEventErrors(t *testing.T) {
	testCases := []struct {
		name        string
		json        string
		unknownType bool
	}{
		{"Unknown tag", `{"type":"RefundEvent","timestamp":"2026-03-01T09:30:00Z"}`, true},
		{"Missing tag", `{"timestamp":"2026-03-01T09:30:00Z"}`, true},
		{"Not an object", `["ActivationEvent"]`, false},
		{"Bad timestamp", `{"type":"ActivationEvent","timestamp":"yesterday"}`, false},
		{"Wrong field type", `{"type":"FraudFlagEvent","flag":"yes"}`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.json))
			if err == nil {
				t.Fatal("DecodeEvent() should return error")
			}
			if errors.Is(err, ErrUnknownEventType) != tc.unknownType {
				t.Errorf("errors.Is(err, ErrUnknownEventType) = %v, want %v (err: %v)",
					errors.Is(err, ErrUnknownEventType), tc.unknownType, err)
			}
		})
	}
}

func TestEventsJSONRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	in := Events{
		PaymentFailureEvent{Timestamp: ts, Amount: 100},
		FraudFlagEvent{Timestamp: ts, Flag: true},
		ActivationEvent{Timestamp: ts},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `[{"type":"PaymentFailureEvent","timestamp":"2026-03-01T09:30:00Z","amount":100},` +
		`{"type":"FraudFlagEvent","timestamp":"2026-03-01T09:30:00Z","flag":true},` +
		`{"type":"ActivationEvent","timestamp":"2026-03-01T09:30:00Z"}]`
	if string(data) != want {
		t.Errorf("Marshal = %s\nwant      %s", data, want)
	}

	var out Events
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("event %d = %#v, want %#v", i, out[i], in[i])
		}
	}
}

func TestEventsUnmarshalReportsIndex(t *testing.T) {
	var out Events
	err := json.Unmarshal([]byte(`[{"type":"ActivationEvent"},{"type":"Nope"}]`), &out)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("error = %v, want ErrUnknownEventType", err)
	}
	if got := err.Error(); got[:7] != "event 1" {
		t.Errorf("error = %q, want it to start with the event index", got)
	}
}
