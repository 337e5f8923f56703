package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/metrics"
)

// apiServer wires the Pipeline Coordinator, Discovery Index and metrics
// registry onto an HTTP surface, mirroring how torua's coordinator server
// struct bundled its registry/health-monitor/node-list behind one set of
// net/http handlers.
type apiServer struct {
	engine *coordinator.Coordinator
	idx    *discovery.Index
	reg    *metrics.Registry
	log    *logrus.Entry
}

func newRouter(s *apiServer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", s.reg.Handler())
	r.Post("/requests", s.handleSubmit)
	r.Get("/requests/{id}", s.handlePoll)
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.idx.GetStatus()
	if status.Expected > 0 {
		s.reg.DiscoveryCompleteness.Set(float64(status.Discovered) / float64(status.Expected))
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req coordinator.InferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	s.reg.ActiveRequests.Inc()
	defer s.reg.ActiveRequests.Dec()

	resp, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		s.reg.InferenceFailures.WithLabelValues(failureStage(err)).Inc()
		s.log.WithError(err).WithField("request_id", req.RequestID).Warn("inference request failed")
		writeJSON(w, http.StatusServiceUnavailable, struct {
			RequestID string `json:"request_id"`
			Error     string `json:"error"`
		}{RequestID: req.RequestID, Error: err.Error()})
		return
	}

	s.reg.InferenceRequests.WithLabelValues(resp.StrategyUsed).Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := s.engine.State(id)
	if !ok {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func failureStage(err error) string {
	switch e := err.(type) {
	case *coordinator.InferenceFailed:
		if e.ShardID < 0 {
			return "pipeline"
		}
		return "shard"
	default:
		return "unknown"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
