package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// ErrAlreadyQueued means an identical task is still pending.
var ErrAlreadyQueued = errors.New("task already queued")

type Enqueuer struct {
	client    *asynq.Client
	uniqueTTL time.Duration
	log       zerolog.Logger
}

func NewEnqueuer(redisOpt asynq.RedisConnOpt, uniqueTTL time.Duration, log zerolog.Logger) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt), uniqueTTL: uniqueTTL, log: log}
}

func (q *Enqueuer) Close() error {
	return q.client.Close()
}

// EnqueueRecomputeAll queues a full aggregator run and returns the task id.
func (q *Enqueuer) EnqueueRecomputeAll(ctx context.Context, trigger models.RunTrigger) (string, error) {
	task, err := NewRecomputeAllTask(trigger)
	if err != nil {
		return "", err
	}
	return q.enqueue(ctx, task)
}

func (q *Enqueuer) EnqueueRecomputeUser(ctx context.Context, userID uint) (string, error) {
	task, err := NewRecomputeUserTask(userID)
	if err != nil {
		return "", err
	}
	return q.enqueue(ctx, task)
}

func (q *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := q.client.EnqueueContext(ctx, task, asynq.Unique(q.uniqueTTL))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrAlreadyQueued
	}
	if err != nil {
		q.log.Warn().Err(err).Str("type", task.Type()).Msg("enqueue task failed")
		return "", err
	}
	q.log.Debug().Str("type", task.Type()).Str("task_id", info.ID).Msg("task enqueued")
	return info.ID, nil
}
