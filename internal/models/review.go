package models

import (
	"time"
)

type Review struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Rating  int    `gorm:"not null;check:chk_review_rating,rating >= 1 AND rating <= 5" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	ProjectID  uint `gorm:"not null;index;uniqueIndex:idx_review_project_reviewer" json:"project_id"`
	ReviewerID uint `gorm:"not null;uniqueIndex:idx_review_project_reviewer" json:"reviewer_id"`
	RevieweeID uint `gorm:"not null;index" json:"reviewee_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (Review) TableName() string {
	return "review"
}

type ReviewUpdate struct {
	Rating  *int
	Comment *string
}
