// Package server provides the HTTP server and routing for the
// assignment engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/assignment"
	"github.com/aristath/territory-assign/internal/reliability"
)

var errMissingBuildID = errors.New("buildId is required")

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "territory-assign",
	})
}

// handleVersion reports the running build.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": "1.0.0",
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// runStatus is the last known outcome for one buildID, surfaced by
// HandleStatus as an alternative to the websocket progress stream.
type runStatus struct {
	LastReport *assignment.Report
	LastResult *assignment.ExecuteResult
}

// Handlers exposes the Orchestrator's operations over HTTP.
type Handlers struct {
	orch   *assignment.Orchestrator
	backup *reliability.Service
	log    zerolog.Logger

	mu       sync.Mutex
	statuses map[string]*runStatus
}

// NewHandlers builds the assignment-engine request handlers. backup may be
// nil, in which case executed runs are never archived.
func NewHandlers(orch *assignment.Orchestrator, backup *reliability.Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		orch:     orch,
		backup:   backup,
		log:      log.With().Str("component", "handlers").Logger(),
		statuses: make(map[string]*runStatus),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// KnownBuildIDs returns every buildID that has seen a generate(),
// execute() or status request so far, letting background jobs (e.g. the threshold
// recalibration scheduler) discover active builds without their own
// Port method.
func (h *Handlers) KnownBuildIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.statuses))
	for id := range h.statuses {
		ids = append(ids, id)
	}
	return ids
}

func (h *Handlers) statusFor(buildID string) *runStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.statuses[buildID]
	if !ok {
		st = &runStatus{}
		h.statuses[buildID] = st
	}
	return st
}

// generateRequest is the §4 generate() request body.
type generateRequest struct {
	BuildID string `json:"buildId"`
	Scope   string `json:"scope"`
}

// HandleGenerate runs a dry-run proposal pass over the given scope.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.BuildID == "" {
		h.writeError(w, http.StatusBadRequest, errMissingBuildID)
		return
	}
	scope := assignment.Scope(req.Scope)
	if scope == "" {
		scope = assignment.ScopeAll
	}

	report, err := h.orch.Generate(r.Context(), req.BuildID, scope)
	if err != nil {
		h.log.Error().Err(err).Str("build_id", req.BuildID).Msg("generate failed")
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.statusFor(req.BuildID).LastReport = &report
	h.writeJSON(w, http.StatusOK, report)
}

// executeRequest is the §4.9 execute() request body.
type executeRequest struct {
	BuildID             string                       `json:"buildId"`
	Proposals           []domain.AssignmentProposal `json:"proposals"`
	BypassOverloadCheck bool                         `json:"bypassOverloadCheck"`
}

// HandleExecute commits a previously generated proposal set.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.BuildID == "" {
		h.writeError(w, http.StatusBadRequest, errMissingBuildID)
		return
	}

	result, err := h.orch.Execute(r.Context(), req.BuildID, req.Proposals, req.BypassOverloadCheck)
	if err != nil {
		h.log.Error().Err(err).Str("build_id", req.BuildID).Msg("execute failed")
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	st := h.statusFor(req.BuildID)
	st.LastResult = &result

	status := http.StatusOK
	if result.Halted {
		status = http.StatusConflict
	} else if h.backup.Enabled() && st.LastReport != nil {
		h.archiveAsync(req.BuildID, *st.LastReport)
	}
	h.writeJSON(w, status, result)
}

// archiveAsync backs up the last generated report once execute() commits
// it. Runs off the request goroutine since backup is best-effort and must
// never add latency to the caller's response.
func (h *Handlers) archiveAsync(buildID string, report assignment.Report) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.backup.Archive(ctx, buildID, report, time.Now()); err != nil {
			h.log.Warn().Err(err).Str("build_id", buildID).Msg("report archive failed")
		}
	}()
}

// backfillToggleRequest is the §4.11 backfill toggle request body.
type backfillToggleRequest struct {
	BuildID      string `json:"buildId"`
	LeavingRepID string `json:"leavingRepId"`
	Enable       bool   `json:"enable"`
}

// HandleBackfillToggle enables or disables backfill routing for a leaving
// rep: enable creates a new backfill-target rep, disable reverts the
// leaving rep's flags.
func (h *Handlers) HandleBackfillToggle(w http.ResponseWriter, r *http.Request) {
	var req backfillToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.BuildID == "" || req.LeavingRepID == "" {
		h.writeError(w, http.StatusBadRequest, errMissingBuildID)
		return
	}

	if req.Enable {
		rep, err := h.orch.EnableBackfill(r.Context(), req.BuildID, req.LeavingRepID)
		if err != nil {
			h.log.Error().Err(err).Str("build_id", req.BuildID).Str("rep_id", req.LeavingRepID).Msg("enable backfill failed")
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.writeJSON(w, http.StatusOK, rep)
		return
	}

	if err := h.orch.DisableBackfill(r.Context(), req.BuildID, req.LeavingRepID); err != nil {
		h.log.Error().Err(err).Str("build_id", req.BuildID).Str("rep_id", req.LeavingRepID).Msg("disable backfill failed")
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "disabled"})
}

// HandleStatus reports the last known generate()/execute() outcome for a
// buildID, as an alternative to subscribing to the progress stream.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	buildID := r.URL.Query().Get("buildId")
	if buildID == "" {
		h.writeError(w, http.StatusBadRequest, errMissingBuildID)
		return
	}
	st := h.statusFor(buildID)
	h.writeJSON(w, http.StatusOK, st)
}
