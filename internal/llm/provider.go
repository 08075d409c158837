package llm

import (
	"context"
	"time"
)

// Provider abstracts a vision-capable model provider (OpenAI-compatible, Anthropic, Ollama).
type Provider interface {
	VisionCompletion(ctx context.Context, req VisionRequest) (*VisionResponse, error)
	Name() string
	Models() []string
}

// Gateway routes vision requests to the configured provider with optional fallback.
type Gateway interface {
	Analyze(ctx context.Context, req VisionRequest) (*VisionResponse, error)
	ListModels() []ModelInfo
}

// Image is raw image content passed opaquely to the provider.
type Image struct {
	Data     []byte
	MimeType string // image/jpeg, image/png, ...
}

// VisionRequest is the input for a single image-understanding call.
type VisionRequest struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Images      []Image `json:"-"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// VisionResponse is the generated text plus usage accounting.
type VisionResponse struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// ModelInfo describes an available model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// UsageRecord tracks a single vision call for cost logging.
type UsageRecord struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Timestamp    time.Time
}

func mimeOrDefault(img Image) string {
	if img.MimeType == "" {
		return "image/jpeg"
	}
	return img.MimeType
}
