// Package pipeline runs one acquisition pass: build queries, fetch results,
// enrich profile links, extract candidates, and import them, while a Tracker
// records the run's lifecycle and log.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/dork"
	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/profile"
	"github.com/sells-group/campleads/pkg/serpapi"
)

// Store is the persistence a run needs.
type Store interface {
	JobGetter
	RunStore
}

// Searcher runs search queries.
type Searcher interface {
	Search(ctx context.Context, query string) ([]serpapi.ResultItem, error)
	Ping(ctx context.Context) error
}

// ProfileFetcher returns flattened profile text, "" when there is none.
type ProfileFetcher interface {
	FetchText(ctx context.Context, profileID string) (string, error)
}

// Extractor turns evidence text into a candidate.
type Extractor interface {
	Extract(ctx context.Context, text string) (model.Candidate, error)
	Model() string
	Check() (string, error)
}

// Importer commits a candidate to the lead quarantine.
type Importer interface {
	Import(ctx context.Context, in model.LeadInput, source model.SourceMethod) (leads.Outcome, error)
}

// Options tunes a Runner.
type Options struct {
	ItemDelay       time.Duration
	Preflight       bool
	DefaultCampType string
}

// Runner executes acquisition runs.
type Runner struct {
	store     Store
	search    Searcher
	profiles  ProfileFetcher
	extractor Extractor
	importer  Importer
	opts      Options

	// sleep waits d and reports false when ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewRunner creates a Runner.
func NewRunner(s Store, search Searcher, profiles ProfileFetcher, extractor Extractor, importer Importer, opts Options) *Runner {
	return &Runner{
		store:     s,
		search:    search,
		profiles:  profiles,
		extractor: extractor,
		importer:  importer,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// errStopped unwinds the item loop when the run context is cancelled.
var errStopped = errors.New("pipeline: stopped")

// Run resolves params, then processes every query and result in order.
// Cancelling ctx is the stop signal: it is honored between items and after
// extraction, never in the middle of an external call. Calls already issued
// run on a context detached from ctx and finish on their own timeouts.
//
// A STOPPED or DONE run returns a nil error. A FAILED run returns the cause.
func (r *Runner) Run(ctx context.Context, params Params) (run *model.SearchJobRun, err error) {
	calls := context.WithoutCancel(ctx)

	job, err := Resolve(calls, r.store, params, r.opts.DefaultCampType)
	if err != nil {
		return nil, err
	}

	tracker, err := StartTracker(calls, r.store, job.ID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.Int64("run_id", tracker.Run().ID), zap.Int64("job_id", job.ID))
	log.Info("pipeline: run started", zap.String("category", job.Category), zap.String("method", string(job.Method)))

	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("pipeline: panic: %v", p)
			_ = tracker.Fail(calls, err)
			snap := tracker.Run()
			run = &snap
		}
	}()

	if r.opts.Preflight {
		r.preflight(calls, tracker)
	}

	queries := dork.Build(dork.Params{
		City:     job.City,
		CampType: job.CampType,
		Category: job.Category,
		Method:   job.Method,
	})

	err = r.loop(ctx, calls, job, queries, tracker)
	switch {
	case errors.Is(err, errStopped):
		err = tracker.Stop(calls)
	case err != nil:
		if ferr := tracker.Fail(calls, err); ferr != nil {
			log.Error("pipeline: record failure", zap.Error(ferr))
		}
	default:
		err = tracker.Done(calls)
	}

	snap := tracker.Run()
	return &snap, err
}

func (r *Runner) loop(ctx, calls context.Context, job *model.SearchJob, queries []string, tracker *Tracker) error {
	for _, q := range queries {
		if ctx.Err() != nil {
			return errStopped
		}

		tracker.Logf("Query: %s", q)
		items, err := r.search.Search(calls, q)
		if err != nil {
			tracker.Logf("Search failed (%s): %v", q, err)
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return errStopped
			}

			processed, err := r.processItem(ctx, calls, job, item, tracker)
			if err != nil {
				return err
			}
			if processed && !r.sleep(ctx, r.opts.ItemDelay) {
				return errStopped
			}
		}
	}
	return nil
}

// processItem handles one search result. It reports whether an import was
// attempted. Only storage failures and stop requests are returned as errors.
func (r *Runner) processItem(ctx, calls context.Context, job *model.SearchJob, item serpapi.ResultItem, tracker *Tracker) (bool, error) {
	base := joinNonEmpty(item.Title, item.Snippet, item.Link)
	if base == "" {
		return false, nil
	}

	text := base
	source := model.SourceGoogleDork

	if item.Link != "" && job.Method != model.MethodSearchEngine {
		if id := profile.ExtractID(item.Link); id != "" {
			fbText, err := r.profiles.FetchText(calls, id)
			switch {
			case err != nil:
				tracker.Logf("Facebook profile fetch failed (%s): %v", id, err)
			case fbText != "":
				text = fbText + "\n" + base
				source = model.SourceFacebookProfile
				tracker.Logf("Facebook profile enriched: %s", id)
			}
		}
	}

	candidate, err := r.extractor.Extract(calls, text)
	if err != nil {
		tracker.Logf("AI parse failed: %v", err)
		return false, nil
	}
	tracker.Logf("AI model: %s", r.extractor.Model())

	if ctx.Err() != nil {
		return false, errStopped
	}

	in := model.LeadInputFromCandidate(candidate, text)
	if in.Category == "" {
		in.Category = job.Category
	}
	if in.City == "" {
		in.City = job.City
	}
	if in.SocialURL == "" {
		in.SocialURL = item.Link
	}

	outcome, err := r.importer.Import(calls, in, source)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: import lead")
	}
	tracker.Logf("Lead: %s", outcome)
	return true, nil
}

// preflight logs whether the search and model backends look usable. It never
// fails the run.
func (r *Runner) preflight(ctx context.Context, tracker *Tracker) {
	if err := r.search.Ping(ctx); err != nil {
		tracker.Logf("SerpAPI initialization failed: %v", err)
	} else {
		tracker.Logf("SerpAPI initialized correctly")
	}

	if name, err := r.extractor.Check(); err != nil {
		tracker.Logf("AI initialization failed: %v", err)
	} else {
		tracker.Logf("AI initialized: %s", name)
	}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
