package pipeline

import (
	"errors"
	"fmt"

	"github.com/nikhilbhutani/visionspeech/internal/tts"
)

// ErrorKind is the closed set of ways a conversion can fail.
type ErrorKind string

const (
	KindImageNotFound       ErrorKind = "image_not_found"
	KindTTSRequestFailed    ErrorKind = "tts_request_failed"
	KindNoAudioURL          ErrorKind = "no_audio_url"
	KindInvalidAudioURL     ErrorKind = "invalid_audio_url"
	KindAudioDownloadFailed ErrorKind = "audio_download_failed"
	KindUnexpected          ErrorKind = "unexpected"
)

// Error is a tagged conversion failure. Message is the human-readable text
// placed in ConversionResult.Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func imageNotFound(path string, err error) *Error {
	return &Error{Kind: KindImageNotFound, Message: fmt.Sprintf("Image file not found: %s", path), Err: err}
}

func unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: fmt.Sprintf("Unexpected error: %v", err), Err: err}
}

// Classify maps any stage error onto its tagged variant.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var se *tts.StatusError
	hasStatus := errors.As(err, &se)

	switch {
	case errors.Is(err, tts.ErrRequestFailed):
		code := 0
		if hasStatus {
			code = se.StatusCode
		}
		return &Error{Kind: KindTTSRequestFailed, Message: fmt.Sprintf("TTS API request failed: %d", code), Err: err}
	case errors.Is(err, tts.ErrNoAudioURL):
		return &Error{Kind: KindNoAudioURL, Message: "No audio URL in TTS response", Err: err}
	case errors.Is(err, tts.ErrInvalidAudioURL):
		url := ""
		if hasStatus {
			url = se.URL
		}
		return &Error{Kind: KindInvalidAudioURL, Message: fmt.Sprintf("Invalid audio URL format: %s", url), Err: err}
	case errors.Is(err, tts.ErrDownloadFailed), errors.Is(err, tts.ErrNotReady):
		code, attempts := 0, 1
		if hasStatus {
			code = se.StatusCode
			if se.Attempts > 0 {
				attempts = se.Attempts
			}
		}
		return &Error{
			Kind:    KindAudioDownloadFailed,
			Message: fmt.Sprintf("Failed to download audio after %d attempt(s): %d", attempts, code),
			Err:     err,
		}
	default:
		return unexpected(err)
	}
}
