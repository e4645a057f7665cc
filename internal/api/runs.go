package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/pipeline"
)

type startRunRequest struct {
	JobID       int64  `json:"job_id"`
	Wojewodztwo string `json:"wojewodztwo"`
	City        string `json:"city"`
	CampType    string `json:"camp_type"`
	Category    string `json:"category"`
	Method      string `json:"method"`
}

// startRun launches a run in the background. Only one run may be active per
// server; the run is stopped through stopRun or server shutdown.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, CodeRunnerUnavailable)
		return
	}

	var req startRunRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}
	method, err := model.ParseMethod(req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload)
		return
	}
	params := pipeline.Params{
		JobID:       req.JobID,
		Wojewodztwo: req.Wojewodztwo,
		City:        req.City,
		CampType:    req.CampType,
		Category:    req.Category,
		Method:      method,
	}

	if _, err := pipeline.Resolve(r.Context(), s.store, params, s.opts.DefaultCampType); err != nil {
		if errors.Is(err, pipeline.ErrMissingJobParameters) {
			writeError(w, http.StatusBadRequest, CodeMissingParameters)
			return
		}
		s.log.Error("api: resolve run parameters failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, CodeRunInProgress)
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()

		run, err := s.runner.Run(ctx, params)
		if err != nil {
			s.log.Error("api: background run failed", zap.Int64("job_id", params.JobID), zap.Error(err))
			return
		}
		s.log.Info("api: background run finished",
			zap.Int64("run_id", run.ID),
			zap.String("status", string(run.Status)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "status": "accepted"})
}

// stopRun asks the active run, if any, to stop.
func (s *Server) stopRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stopped": cancel != nil})
}
