package jobs

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// Scheduler enqueues a scheduled full recompute on a cron spec. Every worker
// process may run one; asynq.Unique keeps a single pending run.
type Scheduler struct {
	s   *asynq.Scheduler
	log zerolog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, spec string, uniqueTTL time.Duration, log zerolog.Logger) (*Scheduler, error) {
	s := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Debug().Err(err).Msg("scheduled metrics run not enqueued")
				return
			}
			log.Info().Str("task_id", info.ID).Msg("scheduled metrics run enqueued")
		},
	})

	task, err := NewRecomputeAllTask(models.RunTriggerSchedule)
	if err != nil {
		return nil, err
	}
	if _, err := s.Register(spec, task, asynq.Unique(uniqueTTL)); err != nil {
		return nil, fmt.Errorf("register schedule %q: %w", spec, err)
	}
	return &Scheduler{s: s, log: log}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() error {
	return s.s.Start()
}

func (s *Scheduler) Shutdown() {
	s.s.Shutdown()
}
