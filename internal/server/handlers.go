package server

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/integrity"
	"vocatio/internal/optimizer"
)

func (s *Server) startSpan(r *http.Request, name string) (context.Context, oteltrace.Span) {
	return s.deps.Observability.Tracer("vocatio.api").Start(r.Context(), name)
}

func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.match")
	defer span.End()

	var req RecordPairRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := validatePair(req); err != nil {
		span.RecordError(err)
		writeAppError(w, "Invalid records", err)
		return
	}

	report := s.deps.Matcher.BuildReport(req.Candidate, req.Job)
	s.metrics().RecordMatch(ctx, report)
	span.SetAttributes(
		attribute.Int("match.score", report.MatchingScore),
		attribute.Int("match.skills", len(report.Matches)),
	)
	writeJSON(w, report, http.StatusOK)
}

func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.verify")
	defer span.End()

	var req VerifyRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := integrity.ValidateCandidate(req.Original); err != nil {
		writeAppError(w, "Invalid original record", err)
		return
	}
	if req.Proposed == nil {
		writeAppError(w, "Invalid proposed record",
			errors.NewValidationError(errors.ErrCodeEmptyInput, "proposed record is missing", nil))
		return
	}

	result := s.deps.Verifier.VerifyRecord(req.Original, req.Proposed)
	s.metrics().RecordVerification(ctx, &result)
	span.SetAttributes(
		attribute.Bool("verify.valid", result.Valid),
		attribute.Int("verify.violations", len(result.Violations)),
	)
	writeJSON(w, result, http.StatusOK)
}

func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrchestrator(w) {
		return
	}

	var req RecordPairRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := s.deps.Orchestrator.Run(r.Context(), req.Candidate, req.Job)
	if err != nil {
		writeAppError(w, "Optimization failed", err)
		return
	}
	writeOutcome(w, outcome)
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req RecordPairRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.deps.Store.Create(req.Candidate, req.Job)
	if err != nil {
		writeAppError(w, "Invalid records", err)
		return
	}
	report, err := session.Report(s.deps.Matcher)
	if err != nil {
		writeAppError(w, "Failed to build report", err)
		return
	}
	s.metrics().RecordMatch(r.Context(), report)

	s.logger.Info("Session created", "session_id", session.ID(), "score", report.MatchingScore)
	writeJSON(w, SessionResponse{SessionID: session.ID(), Report: report}, http.StatusCreated)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	summary := SessionSummary{SessionID: session.ID(), CreatedAt: session.CreatedAt()}
	if c := session.Candidate(); c != nil {
		summary.CandidateID = c.ID
	}
	if j := session.Job(); j != nil {
		summary.JobID = j.ID
	}
	if opt := session.Optimized(); opt != nil {
		summary.OptimizedID = opt.ID
		summary.OptimizedVersion = opt.Version
	}
	writeJSON(w, summary, http.StatusOK)
}

func (s *Server) sessionReportHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	report, err := session.Report(s.deps.Matcher)
	if err != nil {
		writeAppError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

func (s *Server) sessionOptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrchestrator(w) {
		return
	}
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	outcome, err := s.deps.Orchestrator.RunSession(r.Context(), session)
	if err != nil {
		writeAppError(w, "Optimization failed", err)
		return
	}
	writeOutcome(w, outcome)
}

func (s *Server) sessionOptimizedHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	optimized := session.Optimized()
	if optimized == nil {
		writeErrorResponse(w, "Not found", "no optimized record has been accepted for this session", http.StatusNotFound)
		return
	}
	writeJSON(w, optimized, http.StatusOK)
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Store.Delete(id) {
		writeErrorResponse(w, "Not found", "session "+id+" does not exist", http.StatusNotFound)
		return
	}
	s.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) archivedHandler(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Archive.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, "Optimized record not available", err)
		return
	}
	writeJSON(w, record, http.StatusOK)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*factstore.Session, bool) {
	id := r.PathValue("id")
	session, ok := s.deps.Store.Get(id)
	if !ok {
		writeErrorResponse(w, "Not found", "session "+id+" does not exist", http.StatusNotFound)
	}
	return session, ok
}

func (s *Server) requireOrchestrator(w http.ResponseWriter) bool {
	if s.deps.Orchestrator != nil {
		return true
	}
	writeJSON(w, ErrorResponse{
		Error:      "Optimization unavailable",
		Message:    errors.ReasonOracleUnavailable.Message(),
		ReasonCode: errors.ReasonOracleUnavailable,
	}, http.StatusServiceUnavailable)
	return false
}

// writeOutcome answers 200 for an accepted rewrite and the reason's status otherwise.
func writeOutcome(w http.ResponseWriter, outcome *optimizer.Outcome) {
	status := http.StatusOK
	if !outcome.Accepted() {
		status = statusForReason(outcome.ReasonCode)
	}
	writeJSON(w, outcome, status)
}

func validatePair(req RecordPairRequest) error {
	if err := integrity.ValidateCandidate(req.Candidate); err != nil {
		return err
	}
	return integrity.ValidateJob(req.Job)
}
