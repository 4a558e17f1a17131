// Package ranking maintains the derived freelancer scores and orders bids and
// freelancers by them.
package ranking

import (
	"fmt"
	"math"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// Policy turns one user's history into their four derived scores. Compute
// must be deterministic: the same inputs always yield the same scores.
type Policy interface {
	Version() string
	Compute(in models.ScoreInputs) (models.Scores, error)
}

// PortfolioV1 is the default scoring policy.
//
//	portfolio_score = 0.3*profile + 0.3*experience + 0.4*skill_match
//
// profile is 0.5 for a non-empty bio plus 0.5 for at least one skill,
// experience is completed projects / 10 capped at 1, and skill_match is the
// mean overlap between the user's skills and the required skills of their
// completed projects.
type PortfolioV1 struct{}

const (
	weightProfile    = 0.3
	weightExperience = 0.3
	weightSkillMatch = 0.4

	experienceCap = 10
)

func (PortfolioV1) Version() string { return "portfolio-v1" }

func (PortfolioV1) Compute(in models.ScoreInputs) (models.Scores, error) {
	avg, err := AvgRating(in.ReviewsReceived)
	if err != nil {
		return models.Scores{}, err
	}
	return models.Scores{
		AvgRating:      avg,
		CompletionRate: CompletionRate(in.AssignedProjects),
		OnTimeRate:     OnTimeRate(in.AssignedProjects),
		PortfolioScore: PortfolioScore(in.User, in.AssignedProjects),
	}, nil
}

// AvgRating is the mean rating received, 0 with no reviews. A stored rating
// outside 1..5 is reported instead of averaged.
func AvgRating(reviews []models.Review) (float64, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	sum := 0
	for _, r := range reviews {
		if r.Rating < 1 || r.Rating > 5 {
			return 0, fmt.Errorf("review %d has rating %d", r.ID, r.Rating)
		}
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), nil
}

// CompletionRate is completed / (completed + cancelled). Open and in-progress
// projects are not counted.
func CompletionRate(projects []models.Project) float64 {
	completed, closed := 0, 0
	for _, p := range projects {
		switch p.Status {
		case models.ProjectStatusCompleted:
			completed++
			closed++
		case models.ProjectStatusCancelled:
			closed++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(completed) / float64(closed)
}

// OnTimeRate is the share of completed projects finished by their deadline.
func OnTimeRate(projects []models.Project) float64 {
	completed, onTime := 0, 0
	for _, p := range projects {
		if p.Status != models.ProjectStatusCompleted {
			continue
		}
		completed++
		if p.OnTime() {
			onTime++
		}
	}
	if completed == 0 {
		return 0
	}
	return float64(onTime) / float64(completed)
}

func PortfolioScore(u models.User, projects []models.Project) float64 {
	skills := models.SplitSkills(u.Skills)

	profile := 0.0
	if u.Bio != "" {
		profile += 0.5
	}
	if len(skills) > 0 {
		profile += 0.5
	}

	completed := 0
	matchSum, matched := 0.0, 0
	for _, p := range projects {
		if p.Status != models.ProjectStatusCompleted {
			continue
		}
		completed++
		required := models.SplitSkills(p.RequiredSkills)
		if len(required) == 0 {
			continue
		}
		matchSum += models.SkillOverlap(skills, required)
		matched++
	}

	experience := math.Min(float64(completed)/experienceCap, 1)
	match := 0.0
	if matched > 0 {
		match = matchSum / float64(matched)
	}

	score := weightProfile*profile + weightExperience*experience + weightSkillMatch*match
	return math.Max(0, math.Min(score, 1))
}
