package main

import (
	"github.com/liamcoop/policylifecycle/audit"
	"github.com/liamcoop/policylifecycle/policy"
)

// API request and response models

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	CurrentStatus policy.PolicyStatus `json:"current_status" example:"Active" binding:"required"`
	Events        policy.Events       `json:"events"`
	RuleVersion   string              `json:"rule_version,omitempty" example:"mvp-1.0.0"`
	PolicyID      string              `json:"policy_id,omitempty" example:"POL-000123"`
} // @name EvaluateRequest

// VerifyRequest is the body of POST /api/v1/verify
type VerifyRequest struct {
	CurrentStatus policy.PolicyStatus `json:"current_status" example:"Active" binding:"required"`
	Events        policy.Events       `json:"events"`
	InputsHash    string              `json:"inputs_hash" example:"sha256:de5e868f..." binding:"required"`
} // @name VerifyRequest

// VerifyResponse reports whether the recorded digest matches the inputs
type VerifyResponse struct {
	InputsHash   string `json:"inputs_hash"`
	ComputedHash string `json:"computed_hash"`
	Valid        bool   `json:"valid"`
} // @name VerifyResponse

// RuleResponse is one row of a rule table
type RuleResponse struct {
	Order       int    `json:"order" example:"1"`
	ID          string `json:"id" example:"R2_FraudCancellation"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition"`
	NewStatus   string `json:"new_status,omitempty" example:"Cancelled"`
	ReasonCode  string `json:"reason_code,omitempty" example:"FRAUD_CONFIRMED"`
	Terminates  bool   `json:"terminates"`
} // @name RuleResponse

// RuleSetResponse is the rule table for one version
type RuleSetResponse struct {
	Version     string         `json:"version" example:"mvp-1.0.0"`
	Description string         `json:"description,omitempty"`
	Default     bool           `json:"default"`
	Rules       []RuleResponse `json:"rules"`
} // @name RuleSetResponse

// RuleSetsListResponse lists loaded rule versions
type RuleSetsListResponse struct {
	Default  string   `json:"default" example:"mvp-1.0.0"`
	Versions []string `json:"versions"`
} // @name RuleSetsListResponse

// TraceResponse lists decisions recorded for one inputs digest
type TraceResponse struct {
	InputsHash string                  `json:"inputs_hash"`
	Decisions  []*audit.DecisionRecord `json:"decisions"`
} // @name TraceResponse

// HealthResponse is the health check response
type HealthResponse struct {
	Status       string   `json:"status" example:"healthy"`
	RuleVersions []string `json:"rule_versions"`
	AuditSink    string   `json:"audit_sink" example:"ok"`
	Error        string   `json:"error,omitempty"`
} // @name HealthResponse

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty"`
} // @name ErrorResponse

func newRuleSetResponse(def policy.RuleSetDefinition, isDefault bool) RuleSetResponse {
	rules := make([]RuleResponse, 0, len(def.Rules))
	for i, rd := range def.Rules {
		rules = append(rules, RuleResponse{
			Order:       i + 1,
			ID:          rd.ID,
			Description: rd.Description,
			Condition:   rd.Condition,
			NewStatus:   string(rd.Effect.NewStatus),
			ReasonCode:  rd.Effect.ReasonCode,
			Terminates:  rd.Terminates,
		})
	}
	return RuleSetResponse{
		Version:     def.Version,
		Description: def.Description,
		Default:     isDefault,
		Rules:       rules,
	}
}
