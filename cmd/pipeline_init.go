package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/ai"
	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/pipeline"
	"github.com/sells-group/campleads/internal/profile"
	"github.com/sells-group/campleads/internal/store"
	"github.com/sells-group/campleads/pkg/serpapi"
)

// pipelineEnv holds the store, clients, and runner needed by the scrape and
// serve commands.
type pipelineEnv struct {
	Store    store.Store
	Search   serpapi.Client
	AI       *ai.Client
	Importer *leads.Importer
	Runner   *pipeline.Runner
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func newSearchClient() serpapi.Client {
	return serpapi.NewClient(cfg.SerpAPI.Key,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithLocale(cfg.SerpAPI.HL, cfg.SerpAPI.GL),
		serpapi.WithNum(cfg.SerpAPI.Num),
		serpapi.WithRateLimit(cfg.SerpAPI.RequestsPerSecond),
		serpapi.WithRetry(cfg.SerpAPI.MaxAttempts, time.Second),
		serpapi.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.SerpAPI.TimeoutSecs) * time.Second}),
	)
}

func newAIClient(ctx context.Context) (*ai.Client, error) {
	gen, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		return nil, eris.Wrap(err, "init ai generator")
	}
	return ai.NewClient(gen), nil
}

// initPipeline validates the scrape settings, opens the store, and wires the
// runner. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(config.ComponentScrape); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	aiClient, err := newAIClient(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	search := newSearchClient()
	importer := leads.NewImporter(st)
	runner := pipeline.NewRunner(st, search, profile.NewEnricher(search), aiClient, importer, pipeline.Options{
		ItemDelay:       cfg.Pipeline.ItemDelay,
		Preflight:       cfg.Pipeline.Preflight,
		DefaultCampType: cfg.Pipeline.DefaultCampType,
	})

	zap.L().Debug("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", aiClient.Model()),
	)

	return &pipelineEnv{
		Store:    st,
		Search:   search,
		AI:       aiClient,
		Importer: importer,
		Runner:   runner,
	}, nil
}
