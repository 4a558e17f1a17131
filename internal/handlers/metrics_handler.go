package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/jobs"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

type RunStore interface {
	LatestRun(ctx context.Context) (models.MetricsRun, error)
}

type TaskEnqueuer interface {
	EnqueueRecomputeAll(ctx context.Context, trigger models.RunTrigger) (string, error)
	EnqueueRecomputeUser(ctx context.Context, userID uint) (string, error)
}

// Check is one dependency probed by /healthz.
type Check func(ctx context.Context) error

// MetricsHandler is the ops surface of the worker process: health, manual
// recompute triggers, the last run record and prometheus metrics.
type MetricsHandler struct {
	Runs   RunStore
	Queue  TaskEnqueuer
	Checks map[string]Check
	Log    zerolog.Logger
}

func NewMetricsHandler(runs RunStore, queue TaskEnqueuer, checks map[string]Check, log zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{Runs: runs, Queue: queue, Checks: checks, Log: log}
}

func (h *MetricsHandler) Register(r fiber.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	admin := r.Group("/admin/metrics")
	admin.Post("/runs", h.TriggerRun)
	admin.Get("/runs/latest", h.LatestRun)
	admin.Post("/users/:id", h.TriggerUser)
}

func (h *MetricsHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.Map{}
	healthy := true
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.Log.Warn().Err(err).Str("check", name).Msg("health check failed")
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := fiber.StatusOK
	if !healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"success": healthy,
		"data":    status,
	})
}

func (h *MetricsHandler) TriggerRun(c *fiber.Ctx) error {
	id, err := h.Queue.EnqueueRecomputeAll(c.UserContext(), models.RunTriggerManual)
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "a metrics run is already queued",
		})
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("enqueue metrics run")
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"task_id": id},
	})
}

func (h *MetricsHandler) TriggerUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || userID == 0 {
		errs := apperr.FieldErrors{}
		errs.Add("id", "must be a positive integer")
		return fail(c, apperr.Validation(errs))
	}

	id, err := h.Queue.EnqueueRecomputeUser(c.UserContext(), uint(userID))
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "recompute for this user is already queued",
		})
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", userID).Msg("enqueue user recompute")
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"task_id": id},
	})
}

func (h *MetricsHandler) LatestRun(c *fiber.Ctx) error {
	run, err := h.Runs.LatestRun(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    run,
	})
}
