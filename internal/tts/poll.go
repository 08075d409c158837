package tts

import (
	"context"
	"time"
)

// PollPolicy bounds how long an async backend is polled for finished audio.
// Attempt n (1-based) waits InitialWait + (n-1)*Step before fetching.
type PollPolicy struct {
	InitialWait time.Duration
	Step        time.Duration
	MaxAttempts int
	ValidateURL bool
}

// DefaultPollPolicy waits 15s, then 20s, then 25s and checks the URL scheme.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialWait: 15 * time.Second,
		Step:        5 * time.Second,
		MaxAttempts: 3,
		ValidateURL: true,
	}
}

// BaselinePollPolicy is a single fetch after 10s with no URL check.
func BaselinePollPolicy() PollPolicy {
	return PollPolicy{
		InitialWait: 10 * time.Second,
		MaxAttempts: 1,
	}
}

// WaitFor returns the wait preceding the given 1-based attempt.
func (p PollPolicy) WaitFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialWait + time.Duration(attempt-1)*p.Step
}

func (p PollPolicy) normalized() PollPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialWait < 0 {
		p.InitialWait = 0
	}
	return p
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
