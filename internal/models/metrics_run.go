package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunTrigger string

const (
	RunTriggerSchedule RunTrigger = "schedule" // asynq periodic task
	RunTriggerManual   RunTrigger = "manual"   // ops endpoint or CLI
)

// MetricsRun is the ledger entry of one aggregator pass over all freelancers.
type MetricsRun struct {
	ID            uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	PolicyVersion string     `gorm:"type:varchar(40);not null" json:"policy_version"`
	Trigger       RunTrigger `gorm:"type:varchar(20);not null" json:"trigger"`

	UsersTotal   int `gorm:"not null;default:0" json:"users_total"`
	UsersUpdated int `gorm:"not null;default:0" json:"users_updated"`
	UsersFailed  int `gorm:"not null;default:0" json:"users_failed"`

	// [{"user_id": 7, "error": "..."}]
	Failures datatypes.JSON `json:"failures"`

	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MetricsRun) TableName() string {
	return "metrics_run"
}

func (r *MetricsRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// RunFailure is one element of MetricsRun.Failures.
type RunFailure struct {
	UserID uint   `json:"user_id"`
	Error  string `json:"error"`
}
