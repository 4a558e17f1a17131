package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/services/ranking"
)

// Runner is the aggregator as seen by the task handlers.
type Runner interface {
	Run(ctx context.Context, trigger models.RunTrigger) (models.MetricsRun, error)
	RecomputeUser(ctx context.Context, id uint) (models.Scores, error)
}

// Worker runs the metrics task handlers.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	log    zerolog.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, runner Runner, concurrency int, log zerolog.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueMetrics: 1},
		LogLevel:    asynq.WarnLevel,
	})
	w := &Worker{srv: srv, runner: runner, log: log}
	w.mux = NewServeMux(w)
	return w
}

// NewServeMux routes the metrics task types to w's handlers.
func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRecomputeAll, w.HandleRecomputeAll)
	mux.HandleFunc(TypeRecomputeUser, w.HandleRecomputeUser)
	return mux
}

func (w *Worker) HandleRecomputeAll(ctx context.Context, t *asynq.Task) error {
	var p recomputeAllPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error().Err(err).Msg("recompute all payload invalid")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Trigger == "" {
		p.Trigger = models.RunTriggerManual
	}

	run, err := w.runner.Run(ctx, p.Trigger)
	if errors.Is(err, ranking.ErrRunInProgress) {
		w.log.Info().Str("trigger", string(p.Trigger)).Msg("metrics run already in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	w.log.Debug().Str("run_id", run.ID.String()).Msg("recompute all done")
	return nil
}

func (w *Worker) HandleRecomputeUser(ctx context.Context, t *asynq.Task) error {
	var p recomputeUserPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.UserID == 0 {
		w.log.Error().Err(err).Msg("recompute user payload invalid")
		return fmt.Errorf("invalid recompute user payload: %w", asynq.SkipRetry)
	}

	_, err := w.runner.RecomputeUser(ctx, p.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		w.log.Warn().Uint("user_id", p.UserID).Msg("recompute user: user is gone")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Start runs the handlers in the background until Shutdown.
func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
