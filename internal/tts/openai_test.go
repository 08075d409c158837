package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAISpeechSynthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte("RIFFwav"))
	}))
	defer srv.Close()

	p := NewOpenAISpeech(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "hello", Speed: 1.25})
	require.NoError(t, err)

	assert.Equal(t, []byte("RIFFwav"), res.Audio)
	assert.Empty(t, res.AudioURL)
	assert.Equal(t, "alloy", body["voice"])
	assert.Equal(t, "gpt-4o-mini-tts", body["model"])
	assert.Equal(t, "wav", body["response_format"])
	assert.Equal(t, 1.25, body["speed"])
}

func TestOpenAISpeechConfiguredVoice(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	p := NewOpenAISpeech(OpenAIConfig{BaseURL: srv.URL, Voice: "nova"})
	assert.Equal(t, "nova", p.Voice())

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "nova", body["voice"])
}

func TestOpenAISpeechFailure(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantMsg string
	}{
		{"plain text", "bad key", http.StatusUnauthorized, "bad key"},
		{"api error", `{"error":{"message":"invalid voice","type":"invalid_request_error"}}`, http.StatusBadRequest, "invalid voice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAISpeech(OpenAIConfig{BaseURL: srv.URL}).Synthesize(context.Background(), SynthesisRequest{Input: "x"})
			require.ErrorIs(t, err, ErrRequestFailed)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, se.Detail, tt.wantMsg)
		})
	}
}
