package models

import "time"

// MaxTimelineDays bounds a bid's proposed timeline to ten years.
const MaxTimelineDays = 3650

type Bid struct {
	ID                   uint    `gorm:"primaryKey" json:"id"`
	Amount               float64 `gorm:"not null" json:"amount"`
	Proposal             string  `gorm:"type:text;not null" json:"proposal"`
	ProposedTimelineDays *int    `json:"proposed_timeline_days"`

	// one bid per freelancer per project
	ProjectID    uint `gorm:"not null;index;uniqueIndex:idx_bid_project_freelancer" json:"project_id"`
	FreelancerID uint `gorm:"not null;index;uniqueIndex:idx_bid_project_freelancer" json:"freelancer_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (Bid) TableName() string {
	return "bid"
}

// BidUpdate lists the fields a freelancer may revise while the project is open.
type BidUpdate struct {
	Amount               *float64
	Proposal             *string
	ProposedTimelineDays *int
}
