package models

// Scores are the four derived ranking fields of a user.
type Scores struct {
	AvgRating      float64 `json:"avg_rating"`
	CompletionRate float64 `json:"completion_rate"`
	OnTimeRate     float64 `json:"on_time_rate"`
	PortfolioScore float64 `json:"portfolio_score"`
}

// ScoreInputs is the per-user snapshot the aggregator computes from. It is
// read inside the same transaction that writes the resulting Scores.
type ScoreInputs struct {
	User             User
	ReviewsReceived  []Review
	AssignedProjects []Project // every project with freelancer_id = User.ID
}
