package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/policylifecycle/audit"
	"github.com/liamcoop/policylifecycle/internal/logger"
	"github.com/liamcoop/policylifecycle/internal/metrics"
	"github.com/liamcoop/policylifecycle/policy"
	"github.com/liamcoop/policylifecycle/registry"
)

// decisionIDHeader carries the audit record ID of an evaluation
const decisionIDHeader = "X-Decision-Id"

type Server struct {
	registry *registry.Manager
	recorder *audit.Recorder
	metrics  *metrics.Collector
	timeout  time.Duration
	router   *chi.Mux
}

// NewServer wires the HTTP API. A nil recorder disables decision recording
// and the audit read endpoints.
func NewServer(reg *registry.Manager, recorder *audit.Recorder, collector *metrics.Collector, timeout time.Duration) *Server {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{
		registry: reg,
		recorder: recorder,
		metrics:  collector,
		timeout:  timeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.instrument)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Evaluation
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/verify", s.handleVerify)

		// Rule sets
		r.Get("/rulesets", s.handleListRuleSets)
		r.Get("/rulesets/{version}", s.handleGetRuleSet)

		// Audit
		r.Get("/traces/{inputsHash}", s.handleGetTrace)
		r.Get("/decisions/{id}", s.handleGetDecision)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument counts requests by route pattern so path parameters do not
// explode label cardinality
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.metrics.ObserveRequest(route, code)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "healthy",
		RuleVersions: s.registry.List(),
		AuditSink:    "disabled",
	}

	if s.recorder != nil {
		resp.AuditSink = "ok"
		if err := s.recorder.Ping(); err != nil {
			resp.Status = "unhealthy"
			resp.AuditSink = "unreachable"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.CurrentStatus == "" {
		respondError(w, http.StatusBadRequest, "current_status is required", nil)
		return
	}

	engine, err := s.registry.Get(req.RuleVersion)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule set not found", err)
		return
	}

	start := time.Now()
	result, err := engine.Evaluate(req.CurrentStatus, req.Events)
	if err != nil {
		logger.Error("evaluation failed", "rule_version", engine.Version(), "error", err)
		respondError(w, http.StatusInternalServerError, "evaluation failed", err)
		return
	}
	s.metrics.ObserveEvaluation(result, time.Since(start))

	if s.recorder != nil {
		rec, err := s.recorder.Record(req.PolicyID, result)
		s.metrics.ObserveRecord(err)
		if err != nil {
			logger.Error("failed to record decision",
				"inputs_hash", result.DecisionTrace.InputsHash,
				"policy_id", req.PolicyID,
				"error", err)
		} else {
			w.Header().Set(decisionIDHeader, rec.ID)
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// Tamper check handler
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.CurrentStatus == "" || req.InputsHash == "" {
		respondError(w, http.StatusBadRequest, "current_status and inputs_hash are required", nil)
		return
	}

	valid, computed, err := policy.VerifyInputsHash(req.CurrentStatus, req.Events, req.InputsHash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute inputs hash", err)
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		InputsHash:   req.InputsHash,
		ComputedHash: computed,
		Valid:        valid,
	})
}

// List rule sets handler
func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RuleSetsListResponse{
		Default:  s.registry.DefaultVersion(),
		Versions: s.registry.List(),
	})
}

// Get rule set handler
func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	engine, err := s.registry.Get(version)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule set not found", err)
		return
	}

	isDefault := engine.Version() == s.registry.DefaultVersion()
	respondJSON(w, http.StatusOK, newRuleSetResponse(engine.Definition(), isDefault))
}

// Audit replay handler
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		respondError(w, http.StatusServiceUnavailable, "decision recording is disabled", nil)
		return
	}

	hash := chi.URLParam(r, "inputsHash")
	recs, err := s.recorder.ListByInputsHash(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list decisions", err)
		return
	}

	respondJSON(w, http.StatusOK, TraceResponse{
		InputsHash: hash,
		Decisions:  recs,
	})
}

// Get decision handler
func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		respondError(w, http.StatusServiceUnavailable, "decision recording is disabled", nil)
		return
	}

	rec, err := s.recorder.Get(chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrDecisionNotFound) {
		respondError(w, http.StatusNotFound, "decision not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get decision", err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// decodeJSON reads exactly one JSON value from the request body
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
