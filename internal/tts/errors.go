package tts

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrRequestFailed   = errors.New("tts request failed")
	ErrNoAudioURL      = errors.New("no audio url in tts response")
	ErrInvalidAudioURL = errors.New("invalid audio url")
	ErrNotReady        = errors.New("audio not ready")
	ErrDownloadFailed  = errors.New("audio download failed")
)

// StatusError carries the HTTP details behind one of the sentinel errors.
type StatusError struct {
	Err        error
	StatusCode int
	Attempts   int
	URL        string
	Detail     string
	Response   json.RawMessage // decoded response body, when the API answered with JSON
}

func (e *StatusError) Error() string {
	msg := e.Err.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s)", msg, e.Attempts)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
