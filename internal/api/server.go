// Package api exposes the lead pipeline over HTTP for the review UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/pipeline"
	"github.com/sells-group/campleads/internal/store"
)

// Error codes returned in {"ok":false,"error":...} bodies.
const (
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
	CodeMissingParameters = "MISSING_JOB_PARAMETERS"
	CodeRunInProgress     = "RUN_IN_PROGRESS"
	CodeRunnerUnavailable = "RUNNER_UNAVAILABLE"
)

// Store is the persistence the API reads and writes.
type Store interface {
	CreateJob(ctx context.Context, job model.SearchJob) (int64, error)
	GetJob(ctx context.Context, id int64) (*model.SearchJob, error)
	ListJobs(ctx context.Context, limit int) ([]model.SearchJob, error)
	GetRun(ctx context.Context, runID int64) (*model.SearchJobRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.SearchJobRun, error)
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.RawLead, error)
}

// LeadImporter commits manually submitted leads.
type LeadImporter interface {
	Import(ctx context.Context, in model.LeadInput, source model.SourceMethod) (leads.Outcome, error)
}

// RunStarter executes one acquisition run.
type RunStarter interface {
	Run(ctx context.Context, params pipeline.Params) (*model.SearchJobRun, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins  []string
	DefaultCampType string
}

// Server holds the HTTP handlers and the single background run slot.
type Server struct {
	store    Store
	importer LeadImporter
	runner   RunStarter
	opts     Options
	log      *zap.Logger

	// base bounds background runs; cancelling it stops the active run.
	base context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a Server. runner may be nil, in which case runs cannot
// be started over HTTP.
func NewServer(ctx context.Context, s Store, importer LeadImporter, runner RunStarter, opts Options) *Server {
	return &Server{
		store:    s,
		importer: importer,
		runner:   runner,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "api")),
		base:     ctx,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", s.listLeads)
		r.Post("/leads/import", s.importLead)

		r.Get("/jobs", s.listJobs)
		r.Post("/jobs", s.createJob)

		r.Get("/runs", s.listRuns)
		r.Post("/runs", s.startRun)
		r.Post("/runs/stop", s.stopRun)
		r.Get("/runs/{id}", s.getRun)
	})

	return r
}

// Wait blocks until the background run, if any, has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type importRequest struct {
	model.LeadInput
	Source model.SourceMethod `json:"source"`
}

func (s *Server) importLead(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}

	switch req.Source {
	case "":
		req.Source = model.SourceGoogleDork
	case model.SourceGoogleDork, model.SourceFacebookProfile:
	default:
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}

	outcome, err := s.importer.Import(r.Context(), req.LeadInput, req.Source)
	if err != nil {
		s.log.Error("api: import lead failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": outcome})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status:       model.LeadStatus(strings.ToUpper(q.Get("status"))),
		SourceMethod: model.SourceMethod(strings.ToUpper(q.Get("source_method"))),
		City:         q.Get("city"),
		Limit:        intParam(q.Get("limit")),
		Offset:       intParam(q.Get("offset")),
	}

	list, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		s.log.Error("api: list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if list == nil {
		list = []model.RawLead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "leads": list})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var job model.SearchJob
	if err := decode(w, r, &job); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}
	if err := job.Normalize(s.opts.DefaultCampType); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}

	id, err := s.store.CreateJob(r.Context(), job)
	if err != nil {
		s.log.Error("api: create job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.log.Error("api: list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if jobs == nil {
		jobs = []model.SearchJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": jobs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound)
		return
	}
	if err != nil {
		s.log.Error("api: get run failed", zap.Int64("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "run": run})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobID, _ := strconv.ParseInt(q.Get("job_id"), 10, 64)
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(strings.ToUpper(q.Get("status"))),
		JobID:  jobID,
		Limit:  intParam(q.Get("limit")),
		Offset: intParam(q.Get("offset")),
	})
	if err != nil {
		s.log.Error("api: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if runs == nil {
		runs = []model.SearchJobRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "runs": runs})
}

func decode(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(out)
}

func intParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}
