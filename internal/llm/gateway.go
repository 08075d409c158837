package llm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nikhilbhutani/visionspeech/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
	logger           *slog.Logger
}

func NewGateway(cfg config.VisionConfig) Gateway {
	var providers []Provider
	if cfg.GeminiKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.GeminiKey, cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}
	return NewGatewayWithProviders(cfg.Provider, cfg.FallbackProvider, cfg.MaxRetries, providers...)
}

// NewGatewayWithProviders builds a gateway over explicit providers. maxRetries
// of 0 means a single attempt per provider.
func NewGatewayWithProviders(defaultProvider, fallbackProvider string, maxRetries int, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  defaultProvider,
		fallbackProvider: fallbackProvider,
		maxRetries:       maxRetries,
		logger:           slog.Default(),
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Analyze(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.analyzeWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		g.logger.Warn("primary vision provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		resp, err = g.analyzeWithRetry(ctx, g.fallbackProvider, req)
	}
	if err != nil {
		return nil, err
	}

	g.recordUsage(UsageRecord{
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.LatencyMs,
		Timestamp:    time.Now(),
	})
	return resp, nil
}

func (g *gateway) analyzeWithRetry(ctx context.Context, providerName string, req VisionRequest) (*VisionResponse, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			g.logger.Debug("retrying vision call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.VisionCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if g.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) recordUsage(u UsageRecord) {
	g.logger.Info("vision usage",
		"provider", u.Provider,
		"model", u.Model,
		"input_tokens", u.InputTokens,
		"output_tokens", u.OutputTokens,
		"cost_usd", u.CostUSD,
		"latency_ms", u.LatencyMs,
	)
}

// ListModels reports every model of every configured provider, ordered by
// provider name.
func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
			})
		}
	}
	slices.SortStableFunc(models, func(a, b ModelInfo) int {
		return strings.Compare(a.Provider, b.Provider)
	})
	return models
}
