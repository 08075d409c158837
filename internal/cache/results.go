package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
)

// Status of an asynchronous conversion.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrNotFound = errors.New("conversion not found")

// Record is what is stored per request ID. Result is nil while pending.
type Record struct {
	RequestID string                     `json:"request_id"`
	Status    Status                     `json:"status"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Result    *pipeline.ConversionResult `json:"result,omitempty"`
}

// ResultStore keeps conversion outcomes in Redis for ttl.
type ResultStore struct {
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewResultStore(c *Cache, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{cache: c, ttl: ttl, now: time.Now}
}

func resultKey(requestID string) string {
	return "conversion:result:" + requestID
}

func (s *ResultStore) MarkPending(ctx context.Context, requestID string) error {
	return s.cache.Set(ctx, resultKey(requestID), Record{
		RequestID: requestID,
		Status:    StatusPending,
		UpdatedAt: s.now(),
	}, s.ttl)
}

func (s *ResultStore) Save(ctx context.Context, res pipeline.ConversionResult) error {
	status := StatusFailed
	if res.Success {
		status = StatusSucceeded
	}
	return s.cache.Set(ctx, resultKey(res.RequestID), Record{
		RequestID: res.RequestID,
		Status:    status,
		UpdatedAt: s.now(),
		Result:    &res,
	}, s.ttl)
}

func (s *ResultStore) Load(ctx context.Context, requestID string) (*Record, error) {
	var rec Record
	if err := s.cache.Get(ctx, resultKey(requestID), &rec); err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
