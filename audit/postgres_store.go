package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/liamcoop/policylifecycle/policy"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// PostgresDecisionStore implements DecisionStore backed by PostgreSQL
type PostgresDecisionStore struct {
	db *sql.DB
}

// NewPostgresDecisionStore creates a store on an open database handle.
// The decisions table must exist; see the migrations package.
func NewPostgresDecisionStore(db *sql.DB) *PostgresDecisionStore {
	return &PostgresDecisionStore{db: db}
}

// Add inserts a decision record
func (s *PostgresDecisionStore) Add(rec *DecisionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("decision ID cannot be empty")
	}

	rulesJSON, err := json.Marshal(rec.EvaluatedRules)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluated rules: %w", err)
	}

	reasons := rec.ReasonCodes
	if reasons == nil {
		reasons = []string{}
	}

	var policyID sql.NullString
	if rec.PolicyID != "" {
		policyID = sql.NullString{String: rec.PolicyID, Valid: true}
	}

	err = s.db.QueryRow(`
		INSERT INTO decisions (id, policy_id, inputs_hash, rule_version, previous_status, new_status,
			transition_applied, reason_codes, evaluated_rules, evaluated_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING recorded_at
	`, rec.ID, policyID, rec.InputsHash, rec.RuleVersion, string(rec.PreviousStatus), string(rec.NewStatus),
		rec.TransitionApplied, pq.Array(reasons), rulesJSON, rec.EvaluatedAt).Scan(&rec.RecordedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateDecision, rec.ID)
		}
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	rec.RecordedAt = rec.RecordedAt.UTC()

	return nil
}

// Get retrieves a decision by ID
func (s *PostgresDecisionStore) Get(id string) (*DecisionRecord, error) {
	// IDs are UUIDs; anything else cannot exist and would fail the cast
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}

	row := s.db.QueryRow(`
		SELECT id, policy_id, inputs_hash, rule_version, previous_status, new_status,
			transition_applied, reason_codes, evaluated_rules, evaluated_at, recorded_at
		FROM decisions
		WHERE id = $1
	`, id)

	rec, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return rec, nil
}

// ListByInputsHash returns decisions for a digest, oldest first
func (s *PostgresDecisionStore) ListByInputsHash(hash string) ([]*DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, policy_id, inputs_hash, rule_version, previous_status, new_status,
			transition_applied, reason_codes, evaluated_rules, evaluated_at, recorded_at
		FROM decisions
		WHERE inputs_hash = $1
		ORDER BY recorded_at ASC, id ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	records := []*DecisionRecord{}
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(row scanner) (*DecisionRecord, error) {
	var (
		rec       DecisionRecord
		policyID  sql.NullString
		prev, nxt string
		rulesJSON []byte
	)
	err := row.Scan(&rec.ID, &policyID, &rec.InputsHash, &rec.RuleVersion, &prev, &nxt,
		&rec.TransitionApplied, pq.Array(&rec.ReasonCodes), &rulesJSON, &rec.EvaluatedAt, &rec.RecordedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rulesJSON, &rec.EvaluatedRules); err != nil {
		return nil, fmt.Errorf("invalid evaluated_rules for decision %s: %w", rec.ID, err)
	}

	rec.PolicyID = policyID.String
	rec.PreviousStatus = policy.PolicyStatus(prev)
	rec.NewStatus = policy.PolicyStatus(nxt)
	rec.EvaluatedAt = rec.EvaluatedAt.UTC()
	rec.RecordedAt = rec.RecordedAt.UTC()
	return &rec, nil
}

// Ping reports whether the database is reachable
func (s *PostgresDecisionStore) Ping() error {
	return s.db.Ping()
}
