// Package schemas maps entities to their JSON shapes and validates inbound
// payloads into entity fields. It never talks to the store.
package schemas

import (
	"time"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// UserPublic is the user shape nested inside other objects.
type UserPublic struct {
	ID             uint    `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	IsFreelancer   bool    `json:"is_freelancer"`
	Bio            string  `json:"bio"`
	Skills         string  `json:"skills"`
	AvgRating      float64 `json:"avg_rating"`
	CompletionRate float64 `json:"completion_rate"`
	OnTimeRate     float64 `json:"on_time_rate"`
	PortfolioScore float64 `json:"portfolio_score"`
}

// User is the full user view. The credential hash is never part of it.
type User struct {
	UserPublic
	ScoresUpdatedAt *time.Time `json:"scores_updated_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ReviewsReceived []Review   `json:"reviews_received"`
}

type Bid struct {
	ID                   uint        `json:"id"`
	Amount               float64     `json:"amount"`
	Proposal             string      `json:"proposal"`
	ProposedTimelineDays *int        `json:"proposed_timeline_days"`
	ProjectID            uint        `json:"project_id"`
	FreelancerID         uint        `json:"freelancer_id"`
	CreatedAt            time.Time   `json:"created_at"`
	Freelancer           *UserPublic `json:"freelancer"`
}

type Review struct {
	ID         uint        `json:"id"`
	Rating     int         `json:"rating"`
	Comment    string      `json:"comment"`
	ProjectID  uint        `json:"project_id"`
	ReviewerID uint        `json:"reviewer_id"`
	RevieweeID uint        `json:"reviewee_id"`
	CreatedAt  time.Time   `json:"created_at"`
	Reviewer   *UserPublic `json:"reviewer"`
	Reviewee   *UserPublic `json:"reviewee"`
}

// ProjectSummary is a project with its client and freelancer, without bids
// and reviews.
type ProjectSummary struct {
	ID             uint                 `json:"id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Budget         float64              `json:"budget"`
	Status         models.ProjectStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	RequiredSkills string               `json:"required_skills"`
	ClientID       uint                 `json:"client_id"`
	FreelancerID   *uint                `json:"freelancer_id"`
	Client         *UserPublic          `json:"client"`
	Freelancer     *UserPublic          `json:"freelancer"`
}

// Project is the full project view. Nesting stops at UserPublic, which never
// points back to projects.
type Project struct {
	ProjectSummary
	AcceptedBidID *uint      `json:"accepted_bid_id"`
	Deadline      *time.Time `json:"deadline"`
	AssignedAt    *time.Time `json:"assigned_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Bids          []Bid      `json:"bids"`
	Reviews       []Review   `json:"reviews"`
}

func DumpUserPublic(u models.User) UserPublic {
	return UserPublic{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		IsFreelancer:   u.IsFreelancer,
		Bio:            u.Bio,
		Skills:         u.Skills,
		AvgRating:      u.AvgRating,
		CompletionRate: u.CompletionRate,
		OnTimeRate:     u.OnTimeRate,
		PortfolioScore: u.PortfolioScore,
	}
}

func DumpUser(g models.UserGraph) User {
	out := User{
		UserPublic:      DumpUserPublic(g.User),
		ScoresUpdatedAt: g.User.ScoresUpdatedAt,
		CreatedAt:       g.User.CreatedAt,
		UpdatedAt:       g.User.UpdatedAt,
		ReviewsReceived: make([]Review, 0, len(g.ReviewsReceived)),
	}
	for _, r := range g.ReviewsReceived {
		out.ReviewsReceived = append(out.ReviewsReceived, DumpReview(r, g.Users))
	}
	return out
}

// DumpBid nests the bidder when users holds them.
func DumpBid(b models.Bid, users map[uint]models.User) Bid {
	return Bid{
		ID:                   b.ID,
		Amount:               b.Amount,
		Proposal:             b.Proposal,
		ProposedTimelineDays: b.ProposedTimelineDays,
		ProjectID:            b.ProjectID,
		FreelancerID:         b.FreelancerID,
		CreatedAt:            b.CreatedAt,
		Freelancer:           lookup(users, b.FreelancerID),
	}
}

func DumpReview(r models.Review, users map[uint]models.User) Review {
	return Review{
		ID:         r.ID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		ProjectID:  r.ProjectID,
		ReviewerID: r.ReviewerID,
		RevieweeID: r.RevieweeID,
		CreatedAt:  r.CreatedAt,
		Reviewer:   lookup(users, r.ReviewerID),
		Reviewee:   lookup(users, r.RevieweeID),
	}
}

func DumpProjectSummary(s models.ProjectSummary) ProjectSummary {
	return summary(s.Project, s.Users)
}

func DumpProject(g models.ProjectGraph) Project {
	p := g.Project
	out := Project{
		ProjectSummary: summary(p, g.Users),
		AcceptedBidID:  p.AcceptedBidID,
		Deadline:       p.Deadline,
		AssignedAt:     p.AssignedAt,
		CompletedAt:    p.CompletedAt,
		UpdatedAt:      p.UpdatedAt,
		Bids:           make([]Bid, 0, len(g.Bids)),
		Reviews:        make([]Review, 0, len(g.Reviews)),
	}
	for _, b := range g.Bids {
		out.Bids = append(out.Bids, DumpBid(b, g.Users))
	}
	for _, r := range g.Reviews {
		out.Reviews = append(out.Reviews, DumpReview(r, g.Users))
	}
	return out
}

func summary(p models.Project, users map[uint]models.User) ProjectSummary {
	out := ProjectSummary{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Budget:         p.Budget,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		RequiredSkills: p.RequiredSkills,
		ClientID:       p.ClientID,
		FreelancerID:   p.FreelancerID,
		Client:         lookup(users, p.ClientID),
	}
	if p.FreelancerID != nil {
		out.Freelancer = lookup(users, *p.FreelancerID)
	}
	return out
}

func lookup(users map[uint]models.User, id uint) *UserPublic {
	u, ok := users[id]
	if !ok {
		return nil
	}
	pub := DumpUserPublic(u)
	return &pub
}
