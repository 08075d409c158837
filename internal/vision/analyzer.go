package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/visionspeech/internal/llm"
)

// ImageMimeType is sent with every image; bytes are never decoded locally.
const ImageMimeType = "image/jpeg"

var ErrEmptyResponse = errors.New("vision model returned no text")

// Analyzer turns an image into spoken-ready text using a vision-capable model.
type Analyzer struct {
	gateway llm.Gateway
	model   string
	logger  *slog.Logger
}

func NewAnalyzer(gw llm.Gateway, model string) *Analyzer {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Analyzer{gateway: gw, model: model, logger: slog.Default()}
}

// Analyze sends the image with the prompt and parses the trimmed reply.
// An empty prompt falls back to DefaultPrompt.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType, prompt string) (*AnalysisResult, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if mimeType == "" {
		mimeType = ImageMimeType
	}

	resp, err := a.gateway.Analyze(ctx, llm.VisionRequest{
		Model:  a.model,
		Prompt: prompt,
		Images: []llm.Image{{Data: image, MimeType: mimeType}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision analyze: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	res := ParseAnalysis(text)
	a.logger.Debug("image analyzed", "category", res.Category, "hazard", res.Hazard, "chars", len(res.Text))
	return &res, nil
}

// ListModels reports the models available through the gateway.
func (a *Analyzer) ListModels() []llm.ModelInfo {
	return a.gateway.ListModels()
}
