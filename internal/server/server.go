// Package server exposes the modeling engine as an HTTP solve service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/voltmesh/gridform/internal/config"
	"github.com/voltmesh/gridform/internal/problem"
	"github.com/voltmesh/gridform/internal/solver"
	"github.com/voltmesh/gridform/internal/solver/ipm"
	"github.com/voltmesh/gridform/internal/solver/simplex"
)

// Server handles solve requests.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	solvesTotal   *prometheus.CounterVec
	solveDuration prometheus.Histogram
}

// New creates a Server and registers its metrics on the default
// registry.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	return NewWithRegistry(cfg, logger, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Server registering its metrics on the given
// registerer.
func NewWithRegistry(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) *Server {
	factory := promauto.With(reg)
	return &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
		solvesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridform_solves_total",
			Help: "Solve requests by outcome status.",
		}, []string{"status"}),
		solveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridform_solve_duration_seconds",
			Help:    "Wall time of solve requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RegisterRoutes mounts the API routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/solve", s.handleSolve)
}

// Backend builds the solver backend selected by the configuration.
// Unknown names fall back to the interior point backend with a warning.
func (s *Server) Backend() solver.Backend {
	switch s.cfg.Solver.Backend {
	case "simplex":
		return simplex.New(s.logger)
	case "", "interior-point":
	default:
		s.logger.Warn("unknown solver backend, using interior point",
			zap.String("backend", s.cfg.Solver.Backend))
	}
	return ipm.New(ipm.Config{
		MaxIterations: s.cfg.Solver.MaxIterations,
		Tolerance:     s.cfg.Solver.Tolerance,
	}, s.logger)
}

// SolveResponse is the JSON response of the solve endpoint.
type SolveResponse struct {
	Status         string                    `json:"status"`
	Objective      float64                   `json:"objective,omitempty"`
	Results        map[string]problem.Result `json:"results,omitempty"`
	Duals          map[string]problem.Result `json:"duals,omitempty"`
	DualsAvailable bool                      `json:"duals_available"`
	Error          string                    `json:"error,omitempty"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		s.solvesTotal.WithLabelValues("bad_request").Inc()
		return
	}

	p, err := buildProblem(&doc, s.Backend(), s.logger)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		s.solvesTotal.WithLabelValues("invalid").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Solver.Timeout)
	defer cancel()

	if err := p.Solve(ctx); err != nil {
		var solveErr *solver.SolveError
		if errors.As(err, &solveErr) {
			// Infeasible and unbounded outcomes are valid answers, not
			// server failures.
			s.solvesTotal.WithLabelValues(solveErr.Status.String()).Inc()
			s.solveDuration.Observe(time.Since(start).Seconds())
			s.writeJSON(w, http.StatusOK, SolveResponse{
				Status: solveErr.Status.String(),
				Error:  solveErr.Error(),
			})
			return
		}
		// Definition errors surfaced at compile time.
		s.writeError(w, http.StatusUnprocessableEntity, err)
		s.solvesTotal.WithLabelValues("invalid").Inc()
		return
	}

	results, err := p.Results()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		s.solvesTotal.WithLabelValues("error").Inc()
		return
	}
	duals, err := p.Duals()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		s.solvesTotal.WithLabelValues("error").Inc()
		return
	}
	objective, err := p.Objective()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		s.solvesTotal.WithLabelValues("error").Inc()
		return
	}

	s.solvesTotal.WithLabelValues(p.Status().String()).Inc()
	s.solveDuration.Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, SolveResponse{
		Status:         p.Status().String(),
		Objective:      objective,
		Results:        results,
		Duals:          duals,
		DualsAvailable: p.DualsAvailable(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, SolveResponse{Status: "error", Error: err.Error()})
}
