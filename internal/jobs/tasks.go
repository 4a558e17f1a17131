// Package jobs schedules and executes metrics recomputation through asynq.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

const (
	TypeRecomputeAll  = "metrics:recompute_all"
	TypeRecomputeUser = "metrics:recompute_user"

	QueueMetrics = "metrics"
)

type recomputeAllPayload struct {
	Trigger models.RunTrigger `json:"trigger"`
}

type recomputeUserPayload struct {
	UserID uint `json:"user_id"`
}

func NewRecomputeAllTask(trigger models.RunTrigger) (*asynq.Task, error) {
	payload, err := json.Marshal(recomputeAllPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecomputeAll, payload, asynq.Queue(QueueMetrics)), nil
}

func NewRecomputeUserTask(userID uint) (*asynq.Task, error) {
	if userID == 0 {
		return nil, fmt.Errorf("recompute user task: user id is required")
	}
	payload, err := json.Marshal(recomputeUserPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecomputeUser, payload, asynq.Queue(QueueMetrics)), nil
}
