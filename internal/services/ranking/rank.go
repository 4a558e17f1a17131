package ranking

import (
	"context"
	"sort"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/services/marketplace"
)

// RankScore folds the four derived scores into one value in [0,1].
func RankScore(s models.Scores) float64 {
	return 0.4*(s.AvgRating/5) + 0.2*s.CompletionRate + 0.2*s.OnTimeRate + 0.2*s.PortfolioScore
}

type RankedBid struct {
	Bid   models.Bid
	Score float64
}

type RankedFreelancer struct {
	User  models.User
	Score float64
}

// RankBids orders bids by their bidder's rank score, best first, then by
// amount ascending and id. Bidders missing from users score 0.
func RankBids(bids []models.Bid, users map[uint]models.User) []RankedBid {
	out := make([]RankedBid, 0, len(bids))
	for _, b := range bids {
		out = append(out, RankedBid{Bid: b, Score: RankScore(users[b.FreelancerID].Scores())})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Bid.Amount != out[j].Bid.Amount {
			return out[i].Bid.Amount < out[j].Bid.Amount
		}
		return out[i].Bid.ID < out[j].Bid.ID
	})
	return out
}

func RankFreelancers(users []models.User) []RankedFreelancer {
	out := make([]RankedFreelancer, 0, len(users))
	for _, u := range users {
		out = append(out, RankedFreelancer{User: u, Score: RankScore(u.Scores())})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].User.ID < out[j].User.ID
	})
	return out
}

type RankStore interface {
	GetProjectGraph(ctx context.Context, id uint) (models.ProjectGraph, error)
	ListFreelancers(ctx context.Context, f marketplace.FreelancerFilter) ([]models.User, error)
}

// Ranker reads entities from the store and orders them with the scores of the
// last aggregator run.
type Ranker struct {
	store RankStore
}

func NewRanker(store RankStore) *Ranker {
	return &Ranker{store: store}
}

func (r *Ranker) ProjectBids(ctx context.Context, projectID uint) ([]RankedBid, error) {
	g, err := r.store.GetProjectGraph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return RankBids(g.Bids, g.Users), nil
}

// Freelancers lists freelancers having any of skills (all when empty), best
// first, cut to limit when positive.
func (r *Ranker) Freelancers(ctx context.Context, skills []string, limit int) ([]RankedFreelancer, error) {
	users, err := r.store.ListFreelancers(ctx, marketplace.FreelancerFilter{Skills: skills})
	if err != nil {
		return nil, err
	}
	ranked := RankFreelancers(users)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
