package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

func TestPrintResult(t *testing.T) {
	color.NoColor = true
	ok := pipeline.ConversionResult{
		RequestID:  "r1",
		Success:    true,
		TextResult: "Cảnh báo: có bậc thang phía trước",
		Category:   vision.CategoryContext,
		Hazard:     true,
		AudioPath:  "out.wav",
		VoiceUsed:  "banmai",
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, ok, false))
	assert.Contains(t, buf.String(), "Category: context")
	assert.Contains(t, buf.String(), "Hazard: yes")
	assert.Contains(t, buf.String(), "Saved audio to out.wav")

	failed := pipeline.ConversionResult{
		RequestID: "r2",
		Error:     "No audio URL in TTS response",
		ErrorKind: pipeline.KindNoAudioURL,
		VoiceUsed: "banmai",
	}
	buf.Reset()
	require.NoError(t, printResult(&buf, failed, false))
	assert.Contains(t, buf.String(), "Error: No audio URL in TTS response")

	buf.Reset()
	require.NoError(t, printResult(&buf, ok, true))
	var decoded pipeline.ConversionResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, ok, decoded)
}

func TestConvertRequiresImage(t *testing.T) {
	rootCmd.SetArgs([]string{"convert"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, rootCmd.Execute())
}
