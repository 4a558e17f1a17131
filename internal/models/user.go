package models

import (
	"time"
)

// internal/models/user.go
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email        string `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(256);not null" json:"-"`

	IsFreelancer bool   `gorm:"not null;default:false;index" json:"is_freelancer"`
	Bio          string `gorm:"type:text" json:"bio"`
	Skills       string `gorm:"type:text" json:"skills"` // "Go,React,Graphic Design"

	// Ranking fields. Only the metrics aggregator writes these.
	AvgRating       float64    `gorm:"not null;default:0" json:"avg_rating"`
	CompletionRate  float64    `gorm:"not null;default:0" json:"completion_rate"`
	OnTimeRate      float64    `gorm:"not null;default:0" json:"on_time_rate"`
	PortfolioScore  float64    `gorm:"not null;default:0" json:"portfolio_score"`
	ScoresUpdatedAt *time.Time `json:"scores_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// Scores returns the derived ranking fields as of the last aggregator run.
func (u User) Scores() Scores {
	return Scores{
		AvgRating:      u.AvgRating,
		CompletionRate: u.CompletionRate,
		OnTimeRate:     u.OnTimeRate,
		PortfolioScore: u.PortfolioScore,
	}
}

// UserUpdate lists the profile fields a user may change. Nil means unchanged.
// Username and email are immutable after creation.
type UserUpdate struct {
	Bio          *string
	Skills       *string
	IsFreelancer *bool
}
