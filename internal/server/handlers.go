package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/internal/state"
	"github.com/querylens/querylens/internal/worker"
	"github.com/querylens/querylens/pkg/lineage"
)

// routes registers all API endpoints on the router.
func (s *Server) routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/sources", s.handleSources)

		r.Post("/lineage", s.handleBuild)
		r.Get("/lineage/latest", s.handleLatest)

		r.Post("/requests", s.handleSubmit)
		r.Get("/requests/{id}", s.handlePoll)

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.handleListSnapshots)
			r.Post("/", s.handleSaveSnapshot)
			r.Post("/prune", s.handlePruneSnapshots)
			r.Get("/{id}", s.handleGetSnapshot)
			r.Delete("/{id}", s.handleDeleteSnapshot)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": history.ListSources()})
}

// handleBuild runs one build synchronously and returns the response
// envelope.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req worker.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.pool.Handle(req))
}

// handleLatest returns the most recent watch-triggered build.
func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == nil {
		http.Error(w, "no build available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// handleSubmit queues a build on the worker pool and returns 202 with
// the request id to poll.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req worker.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	s.mu.Lock()
	if _, exists := s.inflight[req.RequestID]; exists {
		s.mu.Unlock()
		http.Error(w, "request id already in flight", http.StatusConflict)
		return
	}
	s.inflight[req.RequestID] = nil
	s.mu.Unlock()

	if err := s.pool.Submit(r.Context(), req); err != nil {
		s.mu.Lock()
		delete(s.inflight, req.RequestID)
		s.mu.Unlock()
		http.Error(w, "failed to queue request: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": req.RequestID,
		"status":    "pending",
	})
}

// handlePoll reports the state of a queued build. A completed response
// is delivered once; polling again after delivery returns 404.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	resp, ok := s.inflight[id]
	if ok && resp != nil {
		delete(s.inflight, id)
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unknown request id", http.StatusNotFound)
		return
	}
	if resp == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"requestId": id,
			"status":    "pending",
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	limitStr := r.URL.Query().Get("limit")
	limit, atoiErr := strconv.Atoi(limitStr)
	if limitStr != "" && atoiErr != nil {
		s.logger.Warn("invalid limit, using default", "limit", limitStr)
	}

	snaps, err := s.store.ListSnapshots(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []*state.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req struct {
		Name   string          `json:"name"`
		Result *lineage.Result `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Result == nil {
		http.Error(w, "result is required", http.StatusBadRequest)
		return
	}

	snap, err := s.store.SaveSnapshot(req.Name, req.Result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Respond with metadata only; the client already has the result
	meta := *snap
	meta.Result = nil
	writeJSON(w, http.StatusCreated, &meta)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	snap, err := s.store.GetSnapshot(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	if err := s.store.DeleteSnapshot(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, state.ErrSnapshotNotFound) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePruneSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req struct {
		Keep int `json:"keep"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := s.store.PruneSnapshots(req.Keep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		http.Error(w, "snapshot store not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
