package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// ErrRunInProgress is returned by Run when another process holds the run lock.
var ErrRunInProgress = errors.New("metrics run already in progress")

const runLockKey = "lock:metrics:run"

// Store is the part of the entity store the aggregator reads and writes.
type Store interface {
	ListUserIDs(ctx context.Context) ([]uint, error)
	UpdateScores(ctx context.Context, id uint, compute func(models.ScoreInputs) (models.Scores, error)) (models.Scores, error)
	RecordRun(ctx context.Context, run *models.MetricsRun) error
}

// Locker grants a single holder across processes. ok is false when the lock
// is held by someone else.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type AggregatorConfig struct {
	Workers int
	Lock    Locker // optional
	LockTTL time.Duration
}

// Aggregator recomputes derived scores for every user. Each user is
// recomputed in its own store transaction; one user's failure is recorded
// and the run continues.
type Aggregator struct {
	store   Store
	policy  Policy
	log     zerolog.Logger
	workers int
	lock    Locker
	lockTTL time.Duration
	now     func() time.Time
}

func NewAggregator(store Store, policy Policy, log zerolog.Logger, cfg AggregatorConfig) *Aggregator {
	if policy == nil {
		policy = PortfolioV1{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Aggregator{
		store:   store,
		policy:  policy,
		log:     log.With().Str("component", "metrics_aggregator").Str("policy", policy.Version()).Logger(),
		workers: cfg.Workers,
		lock:    cfg.Lock,
		lockTTL: cfg.LockTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (a *Aggregator) PolicyVersion() string { return a.policy.Version() }

// RecomputeUser refreshes one user's scores. Every failure is returned as an
// *apperr.AggregationError.
func (a *Aggregator) RecomputeUser(ctx context.Context, id uint) (models.Scores, error) {
	scores, err := a.store.UpdateScores(ctx, id, a.policy.Compute)
	if err != nil {
		usersTotal.WithLabelValues("failed").Inc()
		return models.Scores{}, &apperr.AggregationError{UserID: id, Err: err}
	}
	usersTotal.WithLabelValues("updated").Inc()
	return scores, nil
}

// Run recomputes every user and records the run. Per-user failures are
// logged, listed in the run record and do not fail the run.
func (a *Aggregator) Run(ctx context.Context, trigger models.RunTrigger) (models.MetricsRun, error) {
	if a.lock != nil {
		release, ok, err := a.lock.TryLock(ctx, runLockKey, a.lockTTL)
		if err != nil {
			return models.MetricsRun{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			runsTotal.WithLabelValues(string(trigger), "skipped").Inc()
			return models.MetricsRun{}, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				a.log.Warn().Err(err).Msg("release run lock")
			}
		}()
	}

	run := models.MetricsRun{
		PolicyVersion: a.policy.Version(),
		Trigger:       trigger,
		StartedAt:     a.now(),
	}
	a.log.Info().Str("trigger", string(trigger)).Msg("metrics run started")

	ids, err := a.store.ListUserIDs(ctx)
	if err != nil {
		runsTotal.WithLabelValues(string(trigger), "error").Inc()
		return run, fmt.Errorf("list users: %w", err)
	}
	run.UsersTotal = len(ids)

	failures, err := a.recomputeAll(ctx, ids)
	if err != nil {
		runsTotal.WithLabelValues(string(trigger), "error").Inc()
		return run, err
	}

	run.UsersFailed = len(failures)
	run.UsersUpdated = run.UsersTotal - run.UsersFailed
	run.FinishedAt = a.now()
	if len(failures) > 0 {
		raw, err := json.Marshal(failures)
		if err != nil {
			return run, fmt.Errorf("encode run failures: %w", err)
		}
		run.Failures = datatypes.JSON(raw)
	}

	if err := a.store.RecordRun(ctx, &run); err != nil {
		runsTotal.WithLabelValues(string(trigger), "error").Inc()
		return run, err
	}

	runDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	runsTotal.WithLabelValues(string(trigger), "ok").Inc()
	a.log.Info().
		Str("run_id", run.ID.String()).
		Int("users_total", run.UsersTotal).
		Int("users_updated", run.UsersUpdated).
		Int("users_failed", run.UsersFailed).
		Dur("took", run.FinishedAt.Sub(run.StartedAt)).
		Msg("metrics run finished")
	return run, nil
}

// recomputeAll fans ids out to the worker pool. Only cancellation aborts it;
// per-user errors come back as failures sorted by user id.
func (a *Aggregator) recomputeAll(ctx context.Context, ids []uint) ([]models.RunFailure, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idCh := make(chan uint)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []models.RunFailure
	)

	worker := func() {
		defer wg.Done()
		for id := range idCh {
			_, err := a.RecomputeUser(ctx, id)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			a.log.Warn().Err(err).Uint("user_id", id).Msg("recompute user failed, skipping")
			mu.Lock()
			failures = append(failures, models.RunFailure{UserID: id, Error: err.Error()})
			mu.Unlock()
		}
	}

	workers := min(a.workers, len(ids))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for _, id := range ids {
		select {
		case idCh <- id:
		case <-ctx.Done():
			break Loop
		}
	}
	close(idCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].UserID < failures[j].UserID })
	return failures, nil
}
