// Package ai turns free-form generative model replies into structured lead
// data. Every capability shares one prompt discipline and one reply parser.
package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/pkg/anthropic"
)

// Generator sends a single prompt to a generative text model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewGenerator builds the generator selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return NewAnthropicGenerator(anthropic.NewClient(cfg.Key, opts...), cfg.Model, cfg.MaxTokens), nil

	case config.ProviderGoogleAI:
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.Key),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, eris.Wrap(err, "ai: create googleai model")
		}
		return NewLangchainGenerator(model, cfg.Model, cfg.MaxTokens), nil

	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.Key),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, eris.Wrap(err, "ai: create openai model")
		}
		return NewLangchainGenerator(model, cfg.Model, cfg.MaxTokens), nil

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, eris.Wrap(err, "ai: create ollama model")
		}
		return NewLangchainGenerator(model, cfg.Model, cfg.MaxTokens), nil

	default:
		return nil, eris.Errorf("ai: unsupported provider %q", cfg.Provider)
	}
}

// LangchainGenerator adapts any langchaingo model.
type LangchainGenerator struct {
	llm       llms.Model
	modelName string
	maxTokens int
}

// NewLangchainGenerator wraps a langchaingo model.
func NewLangchainGenerator(llm llms.Model, modelName string, maxTokens int64) *LangchainGenerator {
	return &LangchainGenerator{llm: llm, modelName: modelName, maxTokens: int(maxTokens)}
}

// Generate implements Generator.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var opts []llms.CallOption
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, opts...)
	if err != nil {
		return "", eris.Wrap(err, "ai: generate")
	}
	return out, nil
}

// Model implements Generator.
func (g *LangchainGenerator) Model() string { return g.modelName }

// AnthropicGenerator sends prompts through the Anthropic messages API.
type AnthropicGenerator struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
}

// NewAnthropicGenerator wraps an Anthropic client.
func NewAnthropicGenerator(client anthropic.Client, modelName string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGenerator{client: client, modelName: modelName, maxTokens: maxTokens}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.modelName,
		MaxTokens: g.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "ai: generate")
	}
	resp.Usage.LogUsage(g.modelName, "generate")
	return strings.TrimSpace(resp.Text()), nil
}

// Model implements Generator.
func (g *AnthropicGenerator) Model() string { return g.modelName }
