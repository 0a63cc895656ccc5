// Package oraclesvc hosts a cascade.ParityOracle behind an HTTP API, so
// that Bob's reconciliation process and Alice's key never have to share
// an address space. Server holds Alice's correct key and answers parity
// queries against it; RemoteOracle is the client-side cascade.ParityOracle
// implementation that talks to it.
package oraclesvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaskrrish/go-cascade/internal/cascade"
	"github.com/jaskrrish/go-cascade/internal/runregistry"
)

// Server answers CorrectRangeParity queries against a fixed correct key
// and shuffle, over HTTP, and tracks the single reconciliation run it is
// hosting in a runregistry.Registry. It never exposes the key itself —
// only parity bits, each tagged with a correlation ID for audit logging.
type Server struct {
	correctKey *cascade.BitKey
	shuffles   map[uint32]*cascade.Shuffle // keyed by iterationNr
	calls      uint64

	registry *runregistry.Registry
	runID    uuid.UUID
}

// NewServer returns a Server that will answer queries against
// correctKey, projected through whatever shuffle the caller registers
// per iteration via RegisterShuffle. It registers one reconciliation run
// in registry for the lifetime of the server, matching the Non-goal that
// a single process never serves more than one reconciliation at a time.
func NewServer(correctKey *cascade.BitKey, registry *runregistry.Registry) *Server {
	return &Server{
		correctKey: correctKey,
		shuffles:   make(map[uint32]*cascade.Shuffle),
		registry:   registry,
		runID:      registry.Create(correctKey.NrBits()),
	}
}

// RunID returns the ID of the reconciliation run this server hosts, to
// be embedded by the client in both the oracle RPC path and the run
// status path.
func (s *Server) RunID() uuid.UUID {
	return s.runID
}

// ParityRequest is the wire format for a single parity query.
type ParityRequest struct {
	CorrelationID string `json:"correlation_id"`
	IterationNr   uint32 `json:"iteration_nr"`
	StartBitNr    uint32 `json:"start_bit_nr"`
	EndBitNr      uint32 `json:"end_bit_nr"`
}

// ParityResponse is the wire format for a successful parity query.
type ParityResponse struct {
	CorrelationID string `json:"correlation_id"`
	Parity        uint8  `json:"parity"`
}

// completeRunRequest is the wire format for reporting that a
// reconciliation finished.
type completeRunRequest struct {
	Summary cascade.Summary `json:"summary"`
}

// failRunRequest is the wire format for reporting that a reconciliation
// aborted.
type failRunRequest struct {
	Error string `json:"error"`
}

// errorResponse is the wire format for a failed query.
type errorResponse struct {
	CorrelationID string `json:"correlation_id"`
	Error         string `json:"error"`
}

// Handler returns the http.Handler implementing the oracle RPC and run
// status routes, wrapped in request logging:
//
//	POST /v1/oracle/runs/{run_id}/parity
//	GET  /v1/runs/{run_id}
//	POST /v1/runs/{run_id}/complete
//	POST /v1/runs/{run_id}/fail
//	GET  /health
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oracle/runs/", s.handleOracleRuns)
	mux.HandleFunc("/v1/runs/", s.handleRuns)
	mux.HandleFunc("/health", s.handleHealth)
	return loggingMiddleware(mux)
}

// RegisterShuffle tells the server which permutation to use for a given
// iteration number. A real deployment negotiates this out of band (the
// shuffle seed is public per spec.md; only the key is secret) before
// Bob's Reconciler starts that iteration.
func (s *Server) RegisterShuffle(iterationNr uint32, shuffle *cascade.Shuffle) {
	s.shuffles[iterationNr] = shuffle
}

// handleOracleRuns routes /v1/oracle/runs/{run_id}/parity.
func (s *Server) handleOracleRuns(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/oracle/runs/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "parity" {
		respondWithError(w, http.StatusNotFound, "", "not found")
		return
	}

	runID, err := uuid.Parse(parts[0])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "", "invalid run id")
		return
	}
	if runID != s.runID {
		respondWithError(w, http.StatusNotFound, "", "unknown run")
		return
	}

	s.handleParity(w, r)
}

// handleRuns routes /v1/runs/{run_id}, /v1/runs/{run_id}/complete and
// /v1/runs/{run_id}/fail.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		respondWithError(w, http.StatusNotFound, "", "not found")
		return
	}

	runID, err := uuid.Parse(parts[0])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "", "invalid run id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetRun(w, runID)
	case len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost:
		s.handleCompleteRun(w, r, runID)
	case len(parts) == 2 && parts[1] == "fail" && r.Method == http.MethodPost:
		s.handleFailRun(w, r, runID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleParity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ParityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	shuffle, ok := s.shuffles[req.IterationNr]
	if !ok {
		respondWithError(w, http.StatusConflict, req.CorrelationID,
			fmt.Sprintf("no shuffle registered for iteration %d", req.IterationNr))
		return
	}
	if req.StartBitNr > req.EndBitNr {
		respondWithError(w, http.StatusBadRequest, req.CorrelationID, "start_bit_nr > end_bit_nr")
		return
	}

	view := cascade.NewShuffledView(s.correctKey, s.correctKey, shuffle)
	oracle := cascade.NewSimulatorOracle()
	parity, err := oracle.CorrectRangeParity(view, req.StartBitNr, req.EndBitNr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, req.CorrelationID, err.Error())
		return
	}
	s.calls++

	respondWithJSON(w, http.StatusOK, ParityResponse{
		CorrelationID: req.CorrelationID,
		Parity:        parity,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, runID uuid.UUID) {
	run, err := s.registry.Get(runID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) handleCompleteRun(w http.ResponseWriter, r *http.Request, runID uuid.UUID) {
	var req completeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if err := s.registry.MarkCompleted(runID, req.Summary); err != nil {
		respondWithError(w, http.StatusNotFound, "", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(runregistry.StatusCompleted)})
}

func (s *Server) handleFailRun(w http.ResponseWriter, r *http.Request, runID uuid.UUID) {
	var req failRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if err := s.registry.MarkFailed(runID, errors.New(req.Error)); err != nil {
		respondWithError(w, http.StatusNotFound, "", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(runregistry.StatusFailed)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"service":      "cascade parity oracle",
		"run_id":       s.runID,
		"calls_served": s.calls,
	})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, statusCode int, correlationID, message string) {
	respondWithJSON(w, statusCode, errorResponse{CorrelationID: correlationID, Error: message})
}

// loggingMiddleware logs every request and how long it took to answer.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("%s %s %s", r.Method, r.RequestURI, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("request completed in %v", time.Since(start))
	})
}
