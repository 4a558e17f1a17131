package marketplace

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// CreateReview records one participant's review of the other after the
// project closed. Each participant reviews a project at most once.
func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	r.ID = 0
	r.CreatedAt = time.Time{}
	if err := checkRating(r.Rating); err != nil {
		return err
	}
	if r.ReviewerID == r.RevieweeID {
		return apperr.Constraint("review_self", "reviewer and reviewee are both user %d", r.ReviewerID)
	}

	return s.tx(ctx, func(tx *gorm.DB) error {
		p, err := reference[models.Project](tx, "review_project_fk", "project", r.ProjectID)
		if err != nil {
			return err
		}
		if !p.Status.Terminal() {
			return apperr.Constraint("review_project_open", "project %d is %s", p.ID, p.Status)
		}
		if _, err := reference[models.User](tx, "review_reviewer_fk", "user", r.ReviewerID); err != nil {
			return err
		}
		if _, err := reference[models.User](tx, "review_reviewee_fk", "user", r.RevieweeID); err != nil {
			return err
		}
		if !isParticipant(p, r.ReviewerID) || !isParticipant(p, r.RevieweeID) {
			return apperr.Constraint("review_participants", "reviewer and reviewee must be the client and freelancer of project %d", p.ID)
		}

		dup, err := exists(tx, &models.Review{}, "project_id = ? AND reviewer_id = ?", r.ProjectID, r.ReviewerID)
		if err != nil {
			return fmt.Errorf("check existing review: %w", err)
		}
		if dup {
			return apperr.Constraint("review_unique", "user %d already reviewed project %d", r.ReviewerID, r.ProjectID)
		}

		if err := tx.Create(r).Error; err != nil {
			return translate(err, "review_unique")
		}
		return nil
	})
}

func (s *Store) GetReview(ctx context.Context, id uint) (models.Review, error) {
	return first[models.Review](s.DB.WithContext(ctx), "review", id)
}

// ListReviewsReceived returns the reviews written about a user, oldest first.
func (s *Store) ListReviewsReceived(ctx context.Context, userID uint) ([]models.Review, error) {
	var out []models.Review
	if err := s.DB.WithContext(ctx).
		Where("reviewee_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reviews for user %d: %w", userID, err)
	}
	return out, nil
}

func (s *Store) UpdateReview(ctx context.Context, id uint, upd models.ReviewUpdate) (models.Review, error) {
	var out models.Review
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := first[models.Review](tx, "review", id); err != nil {
			return err
		}

		fields := map[string]any{}
		if upd.Rating != nil {
			if err := checkRating(*upd.Rating); err != nil {
				return err
			}
			fields["rating"] = *upd.Rating
		}
		if upd.Comment != nil {
			fields["comment"] = *upd.Comment
		}
		if len(fields) > 0 {
			if err := tx.Model(&models.Review{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("update review %d: %w", id, err)
			}
		}

		var err error
		out, err = first[models.Review](tx, "review", id)
		return err
	})
	return out, err
}

func (s *Store) DeleteReview(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Review{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete review %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("review", id)
	}
	return nil
}

func isParticipant(p models.Project, userID uint) bool {
	if p.ClientID == userID {
		return true
	}
	return p.FreelancerID != nil && *p.FreelancerID == userID
}

func checkRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Constraint("review_rating_range", "rating must be between 1 and 5, got %d", rating)
	}
	return nil
}
