// Package server exposes the aggregation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/assembler"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/pipeline"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/reconciler"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/registry"
)

// Server wires the registry provider, orchestrator and reconciler behind
// the HTTP API.
type Server struct {
	provider     registry.Provider
	orchestrator *pipeline.Orchestrator
	recCfg       reconciler.Config
	log          *logrus.Logger
	now          func() time.Time
}

// New creates a server. now is injectable for tests.
func New(provider registry.Provider, orchestrator *pipeline.Orchestrator, recCfg reconciler.Config, log *logrus.Logger) *Server {
	return &Server{
		provider:     provider,
		orchestrator: orchestrator,
		recCfg:       recCfg,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the assembly clock. Useful for testing.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return router
}

// Aggregate runs one full cycle: registry, fan-out, reconciliation and
// assembly. A registry failure is cycle-fatal; everything downstream
// degrades to partial results with stale metadata.
func (s *Server) Aggregate(ctx context.Context, filter registry.Filter) (assembler.FeatureCollection, error) {
	sources, err := s.provider.ListSources(ctx, filter)
	if err != nil {
		return assembler.FeatureCollection{}, err
	}

	start := s.now()
	results := s.orchestrator.Run(ctx, sources)
	reconciled := reconciler.Reconcile(results, s.now(), s.recCfg)

	s.log.WithFields(logrus.Fields{
		"sources":  reconciled.SourcesAttempted,
		"alerts":   reconciled.AlertCount,
		"stale":    reconciled.Stale,
		"duration": time.Since(start).String(),
	}).Info("Aggregation cycle completed")

	return assembler.Assemble(reconciled, s.now()), nil
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	collection, err := s.Aggregate(r.Context(), filter)
	if err != nil {
		s.log.WithField("error", err.Error()).Error("Source registry unavailable")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "source registry unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, collection)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.provider.ListSources(r.Context(), filterFromQuery(r))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "source registry unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filterFromQuery mirrors the registry filter shape onto query parameters.
func filterFromQuery(r *http.Request) registry.Filter {
	q := r.URL.Query()

	filter := registry.Filter{
		Category:     feed.Category(q.Get("category")),
		Jurisdiction: feed.Jurisdiction(q.Get("state")),
	}

	if raw := q.Get("machine_readable"); raw != "" {
		mr := raw == "true" || raw == "1"
		filter.MachineReadable = &mr
	}

	if raw := q.Get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}

	return filter
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
