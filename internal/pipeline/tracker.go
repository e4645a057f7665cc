package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/model"
)

// RunStore persists run rows.
type RunStore interface {
	CreateRun(ctx context.Context, jobID int64) (*model.SearchJobRun, error)
	FinishRun(ctx context.Context, runID int64, status model.RunStatus, logs string) error
}

// Tracker owns one run row and its accumulated log. The log lives in memory
// and is written only by the first terminal transition; later transitions
// are no-ops.
type Tracker struct {
	store RunStore
	log   *zap.Logger

	mu    sync.Mutex
	run   model.SearchJobRun
	lines []string
}

// StartTracker creates a RUNNING run row for jobID.
func StartTracker(ctx context.Context, s RunStore, jobID int64) (*Tracker, error) {
	run, err := s.CreateRun(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return &Tracker{
		store: s,
		log:   zap.L().With(zap.Int64("run_id", run.ID), zap.Int64("job_id", jobID)),
		run:   *run,
	}, nil
}

// Logf appends a line to the run log and mirrors it to the process log.
func (t *Tracker) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
	t.log.Info(line)
}

// Logs returns the accumulated log text.
func (t *Tracker) Logs() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// Run returns a snapshot of the run row.
func (t *Tracker) Run() model.SearchJobRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.run
	r.Logs = strings.Join(t.lines, "\n")
	return r
}

// Done marks the run DONE.
func (t *Tracker) Done(ctx context.Context) error {
	return t.finish(ctx, model.RunStatusDone, "Scraper finished: SUCCESS")
}

// Fail marks the run FAILED and records cause.
func (t *Tracker) Fail(ctx context.Context, cause error) error {
	return t.finish(ctx, model.RunStatusFailed, fmt.Sprintf("Scraper failed: %v", cause))
}

// Stop marks the run STOPPED after an operator interrupt.
func (t *Tracker) Stop(ctx context.Context) error {
	return t.finish(ctx, model.RunStatusStopped, "Scraper stopped.")
}

func (t *Tracker) finish(ctx context.Context, status model.RunStatus, line string) error {
	t.mu.Lock()
	if t.run.Status.IsTerminal() {
		t.mu.Unlock()
		return nil
	}
	t.lines = append(t.lines, line)
	now := time.Now().UTC()
	t.run.Status = status
	t.run.FinishedAt = &now
	logs := strings.Join(t.lines, "\n")
	t.run.Logs = logs
	t.mu.Unlock()

	t.log.Info(line)
	if err := t.store.FinishRun(ctx, t.run.ID, status, logs); err != nil {
		t.log.Error("pipeline: flush run failed", zap.String("status", string(status)), zap.Error(err))
		return eris.Wrapf(err, "pipeline: finish run %d", t.run.ID)
	}
	return nil
}
