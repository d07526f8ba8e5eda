// Copyright (c) 2025 Erik Kassubek
//
// File: router.go
// Brief: gorilla/mux HTTP surface over the analysis service (spec §6)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"causeway/errs"
	"causeway/event"
	"causeway/logging"
	"causeway/query"
	"causeway/queue"
	"causeway/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logging.Component("httpapi")

// Server is the thin HTTP surface specified at spec §6: ingestion,
// the query endpoints of §6.2, and a Prometheus /metrics endpoint.
type Server struct {
	svc   *service.AnalysisService
	queue *queue.Queue
}

// NewRouter builds the full mux.Router for the service.
//
// Parameter:
//   - svc *service.AnalysisService: the service backing every query
//   - q *queue.Queue: the capture queue backing ingestion
//
// Returns:
//   - *mux.Router: the configured router
func NewRouter(svc *service.AnalysisService, q *queue.Queue) *mux.Router {
	s := &Server{svc: svc, queue: q}
	r := mux.NewRouter()

	r.HandleFunc("/api/ingest", s.handleIngest).Methods(http.MethodPost)

	r.HandleFunc("/api/traces", s.handleTraceList).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}", s.handleTraceDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}/critical-path", s.handleCriticalPath).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}/anomalies", s.handleAnomalies).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}/dependencies", s.handleDependencies).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}/audit-trail/{variable}", s.handleAuditTrail).Methods(http.MethodGet)

	r.HandleFunc("/api/services", s.handleServiceList).Methods(http.MethodGet)
	r.HandleFunc("/api/services/{name}/traces", s.handleServiceTraces).Methods(http.MethodGet)
	r.HandleFunc("/api/services/{name}/dependencies", s.handleServiceDependencies).Methods(http.MethodGet)
	r.HandleFunc("/api/services/health", s.handleServiceHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/distributed/edges", s.handleDistributedEdges).Methods(http.MethodGet)
	r.HandleFunc("/api/distributed/global-races", s.handleGlobalRaces).Methods(http.MethodGet)
	r.HandleFunc("/api/distributed/hotspots", s.handleHotspots).Methods(http.MethodGet)

	r.HandleFunc("/api/performance/metrics", s.handlePerformanceMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/analyze/global", s.handleAnalyzeGlobal).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func writeOk(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, query.Ok(data))
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), query.Fail(err))
}

func statusFor(err error) int {
	switch err.(type) {
	case *errs.NotFoundError:
		return http.StatusNotFound
	case *errs.InvalidInputError:
		return http.StatusBadRequest
	case *errs.QueueFullError:
		return http.StatusServiceUnavailable
	case *errs.StorageUnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseTraceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errs.NewInvalidInput("malformed trace id")
	}
	return id, nil
}

func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var envelope struct {
		Events []*event.Event `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeErr(w, errs.NewInvalidInput("malformed ingestion envelope: "+err.Error()))
		return
	}

	ingested, failed := 0, 0
	for _, e := range envelope.Events {
		if err := s.queue.Capture(e); err != nil {
			failed++
			continue
		}
		ingested++
	}

	msg, result := query.FormatIngestResult(ingested, failed)
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusPartialContent
	}
	writeJSON(w, status, query.Envelope{Success: true, Data: map[string]interface{}{"message": msg, "counts": result}})
}

func (s *Server) handleTraceList(w http.ResponseWriter, r *http.Request) {
	page := intQueryParam(r, "page", 0)
	pageSize := intQueryParam(r, "page_size", 20)

	summaries, total, err := s.svc.Storage().GetTraceSummaries(r.Context(), page, pageSize, 0)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, query.FormatTraceList(summaries, page, pageSize, total))
}

func (s *Server) handleTraceDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseTraceID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	data := s.svc.GetTraceAnalysisData(id)
	writeOk(w, query.FormatTraceDetail(data))
}

func (s *Server) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	id, err := parseTraceID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	path, err := s.svc.GetCriticalPath(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, path)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	id, err := parseTraceID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, s.svc.DetectAnomalies(id))
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	id, err := parseTraceID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, s.svc.GetServiceDependencies(id))
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, err := parseTraceID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	variable := mux.Vars(r)["variable"]
	writeOk(w, s.svc.GetAuditTrail(id, variable))
}

func (s *Server) handleServiceList(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Storage().GetAllServices(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, query.FormatServiceList(services))
}

func (s *Server) handleServiceTraces(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	page := intQueryParam(r, "page", 0)
	pageSize := intQueryParam(r, "page_size", 20)

	summaries, total, err := s.svc.Storage().GetTraceSummariesByService(r.Context(), name, page, pageSize)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, query.FormatTraceList(summaries, page, pageSize, total))
}

func (s *Server) handleServiceDependencies(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	deps, err := s.svc.Storage().GetServiceDependenciesGlobal(r.Context(), name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, deps)
}

func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	window := intQueryParam(r, "time_window_minutes", 60)
	health, err := s.svc.ServiceHealth(r.Context(), window)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, health)
}

func (s *Server) handleDistributedEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.svc.Storage().GetAllDistributedEdges(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, query.FormatDistributedEdgeList(edges))
}

func (s *Server) handleGlobalRaces(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.svc.GlobalRaceCandidates(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, candidates)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	hotspots, err := s.svc.Hotspots(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, hotspots)
}

func (s *Server) handlePerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r, "limit", 100)
	metrics, err := s.svc.PerformanceMetrics(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, metrics)
}

func (s *Server) handleAnalyzeGlobal(w http.ResponseWriter, r *http.Request) {
	races, err := s.svc.FindGlobalConcurrentEvents()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOk(w, races)
}
