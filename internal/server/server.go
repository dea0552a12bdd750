// Package server runs design optimisations as background jobs behind an
// HTTP API with SSE progress streams.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/grid"
	"github.com/cwbudde/thinfilm/internal/store"
)

// Server is the HTTP front end of a JobManager.
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	addr       string
	server     *http.Server
	ctx        context.Context
	stop       context.CancelFunc
}

// NewServer creates a server on addr. Results are saved to st unless it
// is nil.
func NewServer(addr string, st *store.FSStore) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		store:      st,
		addr:       addr,
		ctx:        ctx,
		stop:       stop,
	}
}

// Handler returns the routes wrapped with middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/designs", s.handleDesigns)
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start listens on the server address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// startJob runs a created job in the background.
func (s *Server) startJob(id string) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.setCancel(id, cancel)
	go func() {
		defer cancel()
		runJob(ctx, s.jobManager, s.store, id)
	}()
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID routes /api/v1/jobs/:id/*.
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}
	switch sub {
	case "", "status":
		s.handleGetJobStatus(w, r, jobID)
	case "stream":
		s.handleJobStream(w, r, jobID)
	case "cancel":
		s.handleCancelJob(w, r, jobID)
	case "spectrum":
		s.handleSpectrum(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if config.Document == "" && config.Path == "" {
		http.Error(w, "document or path is required", http.StatusBadRequest)
		return
	}
	// Reject broken documents before a job exists for them.
	doc, err := loadDocument(config)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid design: %v", err), http.StatusBadRequest)
		return
	}
	if _, _, err := doc.Build(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid design: %v", err), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(config)
	s.startJob(job.ID)
	writeJSON(w, http.StatusCreated, job)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status.
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          job.ID,
		"state":       job.State,
		"design":      job.Design,
		"method":      job.Method,
		"status":      job.Status,
		"chi2":        job.Chi2,
		"initialChi2": job.InitialChi2,
		"iterations":  job.Iterations,
		"inserted":    job.Inserted,
		"layers":      job.Layers,
		"progress":    job.Progress,
		"elapsed":     elapsed.Seconds(),
		"startTime":   job.StartTime,
		"endTime":     job.EndTime,
		"error":       job.Error,
	})
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}

// spectrumRequest parses ?kind=R&from=400&to=800&points=201&angle=0&polarization=45&reverse=true.
// A missing angle is the angle f gives for the lit face.
func spectrumRequest(r *http.Request, f *film.Filter) (film.Quantity, *grid.Wavelengths, film.Options, error) {
	var opts film.Options
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "R"
	}
	q, err := film.ParseQuantity(kind)
	if err != nil {
		return 0, nil, opts, err
	}
	from, err := floatParam(r, "from", 400)
	if err != nil {
		return 0, nil, opts, err
	}
	to, err := floatParam(r, "to", 800)
	if err != nil {
		return 0, nil, opts, err
	}
	points, err := floatParam(r, "points", 201)
	if err != nil {
		return 0, nil, opts, err
	}
	pol := 45.0
	if !q.Energy() {
		pol = 90
	}
	if opts.Polarization, err = floatParam(r, "polarization", pol); err != nil {
		return 0, nil, opts, err
	}
	if r.URL.Query().Get("reverse") == "true" {
		opts.Direction = film.Reverse
	}
	if opts.Angle, err = floatParam(r, "angle", f.Incidence(opts.Direction)); err != nil {
		return 0, nil, opts, err
	}
	w, err := grid.Linear(from, to, int(points))
	if err != nil {
		return 0, nil, opts, err
	}
	return q, w, opts, nil
}

// handleSpectrum handles GET /api/v1/jobs/:id/spectrum. A filter still
// being optimised answers 409.
func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request, jobID string) {
	f, exists := s.jobManager.filterOf(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if f == nil {
		http.Error(w, "Design not built yet", http.StatusConflict)
		return
	}
	q, wl, opts, err := spectrumRequest(r, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Busy() {
		http.Error(w, "Job is running", http.StatusConflict)
		return
	}
	// Compute on a copy of the idle filter.
	values, err := f.Clone().Spectrum(q, wl, opts)
	switch {
	case errors.Is(err, film.ErrBusy):
		http.Error(w, "Job is running", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, store.SpectrumArchive{
		Kind:         q.String(),
		Angle:        opts.Angle,
		Polarization: opts.Polarization,
		Reverse:      opts.Direction == film.Reverse,
		Wavelengths:  wl.Values(),
		Values:       values,
		Timestamp:    time.Now(),
	})
}

// handleDesigns handles GET /api/v1/designs, the saved snapshots.
func (s *Server) handleDesigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.SnapshotInfo{})
		return
	}
	infos, err := s.store.ListDesigns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
