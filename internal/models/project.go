// internal/models/project.go
package models

import (
	"time"
)

type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "open"        // accepting bids
	ProjectStatusInProgress ProjectStatus = "in_progress" // bid accepted, freelancer assigned
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusOpen, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether reviews may be written for a project in this status.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"type:varchar(150);not null" json:"title"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Budget      float64       `gorm:"not null" json:"budget"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	RequiredSkills string `gorm:"type:text" json:"required_skills"` // "Python,Flask,Stripe"

	ClientID      uint  `gorm:"not null;index" json:"client_id"`
	FreelancerID  *uint `gorm:"index" json:"freelancer_id"` // nil iff status is open
	AcceptedBidID *uint `json:"accepted_bid_id,omitempty"`

	// Deadline is set by the client or derived from the accepted bid's timeline.
	Deadline    *time.Time `json:"deadline,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "project"
}

// OnTime reports whether a completed project finished at or before its
// deadline. Projects without a deadline cannot be late.
func (p Project) OnTime() bool {
	if p.Status != ProjectStatusCompleted || p.CompletedAt == nil {
		return false
	}
	if p.Deadline == nil {
		return true
	}
	return !p.CompletedAt.After(*p.Deadline)
}

type ProjectUpdate struct {
	Title          *string
	Description    *string
	Budget         *float64
	RequiredSkills *string
	Deadline       *time.Time
}
