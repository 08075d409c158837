package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/visionspeech/internal/llm"
	"github.com/nikhilbhutani/visionspeech/internal/tts"
)

// ModelLister reports the vision models the configured providers serve.
type ModelLister interface {
	ListModels() []llm.ModelInfo
}

// CatalogHandler describes what a client can ask for: voices of the active
// TTS backend and the vision models behind the analyzer.
type CatalogHandler struct {
	defaultVoice string
	voices       []tts.Voice
	models       ModelLister
}

func NewCatalogHandler(defaultVoice string, voices []tts.Voice, models ModelLister) *CatalogHandler {
	return &CatalogHandler{defaultVoice: defaultVoice, voices: voices, models: models}
}

func (h *CatalogHandler) Voices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default": h.defaultVoice,
		"voices":  h.voices,
	})
}

func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := []llm.ModelInfo{}
	if h.models != nil {
		models = append(models, h.models.ListModels()...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}
