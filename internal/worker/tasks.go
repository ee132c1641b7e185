// Package worker runs the bot's background jobs on asynq. Delivery and the
// health ping are periodic; the cache backfill is queued on demand. It is
// optional; without REDIS_URL the HTTP server falls back to
// LocalRunner for backfills and relies on an external scheduler for
// deliveries.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/services"
)

// Task types.
const (
	TypeDeliver  = "reflection:deliver"
	TypePing     = "reflection:ping"
	TypeBackfill = "reflection:backfill"
)

// DeliverPayload selects the day to deliver; an empty Date means today.
type DeliverPayload struct {
	Date string `json:"date,omitempty"`
}

// NewDeliverTask builds a delivery task. A retry of a completed run is
// answered from the delivery log under the task ID.
func NewDeliverTask(date string) (*asynq.Task, error) {
	raw, err := json.Marshal(DeliverPayload{Date: strings.TrimSpace(date)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliver, raw,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// NewPingTask builds the health-check task.
func NewPingTask() *asynq.Task {
	return asynq.NewTask(TypePing, nil,
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Second),
	)
}

// NewBackfillTask builds the backfill task. Unique keeps a second request
// from queueing while one is pending or running.
func NewBackfillTask() *asynq.Task {
	return asynq.NewTask(TypeBackfill, nil,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(time.Hour),
	)
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues tasks for the worker process.
type Client struct {
	q enqueuer
}

// NewClient connects to redisURL. An empty URL yields ErrWorkerDisabled.
func NewClient(redisURL string) (*Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, services.ErrWorkerDisabled
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfiguration, "worker.NewClient")
	}
	return &Client{q: asynq.NewClient(opt)}, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error { return c.q.Close() }

// StartBackfill queues a backfill and returns the task ID. A backfill that
// is already queued yields services.ErrBackfillRunning.
func (c *Client) StartBackfill(ctx context.Context) (string, error) {
	info, err := c.q.EnqueueContext(ctx, NewBackfillTask())
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", services.ErrBackfillRunning
	}
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindExternalService, "worker.StartBackfill")
	}
	return info.ID, nil
}

// EnqueueDeliver queues one delivery for date (today when empty).
func (c *Client) EnqueueDeliver(ctx context.Context, date string) (string, error) {
	task, err := NewDeliverTask(date)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "worker.EnqueueDeliver")
	}
	info, err := c.q.EnqueueContext(ctx, task)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindExternalService, "worker.EnqueueDeliver")
	}
	return info.ID, nil
}
