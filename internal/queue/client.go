package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/visionspeech/internal/config"
)

// resultRetention keeps finished tasks, and the result written by the worker, inspectable.
const resultRetention = 24 * time.Hour

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

// RedisOpt converts the shared Redis settings into asynq's connection option.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueConversion schedules a conversion. The request ID doubles as the task ID.
func (c *Client) EnqueueConversion(ctx context.Context, payload ConversionRunPayload) (string, error) {
	return c.enqueue(ctx, TypeConversionRun, payload,
		asynq.TaskID(payload.RequestID),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(resultRetention),
	)
}

// EnqueueAudioPoll schedules a poll to run after delay.
func (c *Client) EnqueueAudioPoll(ctx context.Context, payload AudioPollPayload, delay time.Duration) error {
	_, err := c.enqueue(ctx, TypeAudioPoll, payload,
		asynq.TaskID(fmt.Sprintf("%s:poll:%d", payload.RequestID, payload.Attempt)),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(resultRetention),
	)
	return err
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}
