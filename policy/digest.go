package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
)

const digestPrefix = "sha256:"

var ErrInputsDigest = errors.New("failed to compute inputs digest")

// CanonicalInputs returns the RFC 8785 canonical JSON of an evaluation's
// inputs. Event order is preserved; map keys and number formatting are
// normalised by JCS.
func CanonicalInputs(status PolicyStatus, events []PolicyEvent) ([]byte, error) {
	return canonicalInputs(status, eventRecords(events))
}

func canonicalInputs(status PolicyStatus, records []map[string]any) ([]byte, error) {
	doc := map[string]any{
		"current_status": string(status),
		"events":         records,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal inputs: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize inputs: %w", err)
	}
	return canonical, nil
}

// InputsHash returns the digest recorded in DecisionTrace.InputsHash for the
// given inputs.
func InputsHash(status PolicyStatus, events []PolicyEvent) (string, error) {
	return inputsHash(status, eventRecords(events))
}

func inputsHash(status PolicyStatus, records []map[string]any) (string, error) {
	canonical, err := canonicalInputs(status, records)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInputsDigest, err)
	}
	sum := sha256.Sum256(canonical)
	return digestPrefix + hex.EncodeToString(sum[:]), nil
}

// VerifyInputsHash recomputes the digest for the inputs and reports whether
// it equals want. The computed digest is returned either way.
func VerifyInputsHash(status PolicyStatus, events []PolicyEvent, want string) (bool, string, error) {
	got, err := InputsHash(status, events)
	if err != nil {
		return false, "", err
	}
	return got == want, got, nil
}

// eventRecords skips nil events, which match no rule and carry no data
func eventRecords(events []PolicyEvent) []map[string]any {
	records := make([]map[string]any, 0, len(events))
	for _, e := range events {
		if isNilEvent(e) {
			continue
		}
		records = append(records, eventRecord(e))
	}
	return records
}

func isNilEvent(e PolicyEvent) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *PaymentFailureEvent:
		return v == nil
	case *FraudFlagEvent:
		return v == nil
	case *ActivationEvent:
		return v == nil
	}
	return false
}
