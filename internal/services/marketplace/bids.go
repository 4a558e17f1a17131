package marketplace

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// PlaceBid records a freelancer's bid on an open project. A freelancer bids
// at most once per project and never on a project they own.
func (s *Store) PlaceBid(ctx context.Context, b *models.Bid) error {
	b.ID = 0
	if err := checkBidFields(b.Amount, b.Proposal, b.ProposedTimelineDays); err != nil {
		return err
	}

	return s.tx(ctx, func(tx *gorm.DB) error {
		p, err := reference[models.Project](forUpdate(tx), "bid_project_fk", "project", b.ProjectID)
		if err != nil {
			return err
		}
		if p.Status != models.ProjectStatusOpen {
			return apperr.Constraint("project_not_open", "project %d is %s", p.ID, p.Status)
		}

		f, err := reference[models.User](tx, "bid_freelancer_fk", "user", b.FreelancerID)
		if err != nil {
			return err
		}
		if !f.IsFreelancer {
			return apperr.Constraint("bid_freelancer_role", "user %d is not a freelancer", f.ID)
		}
		if p.ClientID == f.ID {
			return apperr.Constraint("bid_own_project", "user %d owns project %d", f.ID, p.ID)
		}

		dup, err := exists(tx, &models.Bid{}, "project_id = ? AND freelancer_id = ?", b.ProjectID, b.FreelancerID)
		if err != nil {
			return fmt.Errorf("check existing bid: %w", err)
		}
		if dup {
			return apperr.Constraint("bid_unique", "user %d already bid on project %d", f.ID, p.ID)
		}

		if err := tx.Create(b).Error; err != nil {
			return translate(err, "bid_unique")
		}
		return nil
	})
}

func (s *Store) GetBid(ctx context.Context, id uint) (models.Bid, error) {
	return first[models.Bid](s.DB.WithContext(ctx), "bid", id)
}

// ListBids returns a project's bids in placement order.
func (s *Store) ListBids(ctx context.Context, projectID uint) ([]models.Bid, error) {
	var out []models.Bid
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list bids of project %d: %w", projectID, err)
	}
	return out, nil
}

// UpdateBid revises a bid while its project is still open.
func (s *Store) UpdateBid(ctx context.Context, id uint, upd models.BidUpdate) (models.Bid, error) {
	var out models.Bid
	err := s.tx(ctx, func(tx *gorm.DB) error {
		b, err := first[models.Bid](tx, "bid", id)
		if err != nil {
			return err
		}
		p, err := first[models.Project](forUpdate(tx), "project", b.ProjectID)
		if err != nil {
			return err
		}
		if p.Status != models.ProjectStatusOpen {
			return apperr.Constraint("project_not_open", "project %d is %s", p.ID, p.Status)
		}

		fields := map[string]any{}
		if upd.Amount != nil {
			b.Amount = *upd.Amount
			fields["amount"] = b.Amount
		}
		if upd.Proposal != nil {
			b.Proposal = *upd.Proposal
			fields["proposal"] = b.Proposal
		}
		if upd.ProposedTimelineDays != nil {
			b.ProposedTimelineDays = upd.ProposedTimelineDays
			fields["proposed_timeline_days"] = *upd.ProposedTimelineDays
		}
		if err := checkBidFields(b.Amount, b.Proposal, b.ProposedTimelineDays); err != nil {
			return err
		}

		if len(fields) > 0 {
			if err := tx.Model(&models.Bid{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("update bid %d: %w", id, err)
			}
		}
		out, err = first[models.Bid](tx, "bid", id)
		return err
	})
	return out, err
}

// WithdrawBid deletes a bid unless it is the accepted one.
func (s *Store) WithdrawBid(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		b, err := first[models.Bid](tx, "bid", id)
		if err != nil {
			return err
		}
		if _, err := first[models.Project](forUpdate(tx), "project", b.ProjectID); err != nil {
			return err
		}
		accepted, err := exists(tx, &models.Project{}, "id = ? AND accepted_bid_id = ?", b.ProjectID, id)
		if err != nil {
			return fmt.Errorf("check accepted bid: %w", err)
		}
		if accepted {
			return apperr.Constraint("bid_accepted", "bid %d was accepted", id)
		}
		if err := tx.Delete(&models.Bid{}, id).Error; err != nil {
			return fmt.Errorf("delete bid %d: %w", id, err)
		}
		return nil
	})
}

func checkBidFields(amount float64, proposal string, timeline *int) error {
	if !(amount > 0) {
		return apperr.Constraint("bid_amount_positive", "amount must be positive, got %v", amount)
	}
	if strings.TrimSpace(proposal) == "" {
		return apperr.Constraint("bid_proposal_required", "proposal is required")
	}
	if timeline != nil && (*timeline <= 0 || *timeline > models.MaxTimelineDays) {
		return apperr.Constraint("bid_timeline_range", "proposed timeline must be within 1..%d days, got %d", models.MaxTimelineDays, *timeline)
	}
	return nil
}
