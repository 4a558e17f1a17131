package marketplace

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/utils"
)

// CreateUser inserts u with the given credential. Ranking fields supplied by
// the caller are discarded; they start at zero until the next aggregator run.
func (s *Store) CreateUser(ctx context.Context, u *models.User, cred utils.Credential) error {
	if cred.IsZero() {
		return apperr.Constraint("user_credential", "a derived credential is required")
	}

	u.ID = 0
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Skills = models.NormalizeSkills(u.Skills)
	u.PasswordHash = cred.Hash()
	u.AvgRating, u.CompletionRate, u.OnTimeRate, u.PortfolioScore = 0, 0, 0, 0
	u.ScoresUpdatedAt = nil

	if u.Username == "" {
		return apperr.Constraint("user_username_required", "username is required")
	}
	if u.Email == "" {
		return apperr.Constraint("user_email_required", "email is required")
	}

	return s.tx(ctx, func(tx *gorm.DB) error {
		taken, err := exists(tx, &models.User{}, "username = ?", u.Username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return apperr.Constraint("user_username_unique", "username %q is taken", u.Username)
		}

		taken, err = exists(tx, &models.User{}, "email = ?", u.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return apperr.Constraint("user_email_unique", "email %q is already registered", u.Email)
		}

		if err := tx.Create(u).Error; err != nil {
			return translate(err, "user_unique")
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id uint) (models.User, error) {
	return first[models.User](s.DB.WithContext(ctx), "user", id)
}

// UpdateUser applies profile changes. A user cannot stop being a freelancer
// while they have bids or assigned projects.
func (s *Store) UpdateUser(ctx context.Context, id uint, upd models.UserUpdate) (models.User, error) {
	var out models.User
	err := s.tx(ctx, func(tx *gorm.DB) error {
		u, err := first[models.User](tx, "user", id)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		if upd.Bio != nil {
			fields["bio"] = *upd.Bio
		}
		if upd.Skills != nil {
			fields["skills"] = models.NormalizeSkills(*upd.Skills)
		}
		if upd.IsFreelancer != nil {
			if u.IsFreelancer && !*upd.IsFreelancer {
				busy, err := hasFreelanceHistory(tx, id)
				if err != nil {
					return err
				}
				if busy {
					return apperr.Constraint("user_freelancer_history", "user %d has bids or assigned projects", id)
				}
			}
			fields["is_freelancer"] = *upd.IsFreelancer
		}

		if len(fields) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("update user %d: %w", id, err)
			}
		}

		out, err = first[models.User](tx, "user", id)
		return err
	})
	return out, err
}

// SetCredential replaces the stored password hash.
func (s *Store) SetCredential(ctx context.Context, id uint, cred utils.Credential) error {
	if cred.IsZero() {
		return apperr.Constraint("user_credential", "a derived credential is required")
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", cred.Hash())
	if res.Error != nil {
		return fmt.Errorf("set credential for user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

// DeleteUser removes a user with no history. Users referenced by any project,
// bid or review are kept and the call fails with a constraint violation.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := first[models.User](tx, "user", id); err != nil {
			return err
		}

		checks := []struct {
			model any
			query string
			args  []any
			what  string
		}{
			{&models.Project{}, "client_id = ? OR freelancer_id = ?", []any{id, id}, "projects"},
			{&models.Bid{}, "freelancer_id = ?", []any{id}, "bids"},
			{&models.Review{}, "reviewer_id = ? OR reviewee_id = ?", []any{id, id}, "reviews"},
		}
		for _, c := range checks {
			found, err := exists(tx, c.model, c.query, c.args...)
			if err != nil {
				return fmt.Errorf("check user %d %s: %w", id, c.what, err)
			}
			if found {
				return apperr.Constraint("user_referenced", "user %d is referenced by %s", id, c.what)
			}
		}

		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		return nil
	})
}

// ListUserIDs returns every user id, ascending. Clients receive reviews too,
// so the aggregator recomputes all of them.
func (s *Store) ListUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

type FreelancerFilter struct {
	// Skills keeps only freelancers having at least one of these skills.
	Skills []string
	Limit  int
}

// ListFreelancers returns freelancers in id order. Skill filtering happens in
// memory because skills are stored as a delimited column.
func (s *Store) ListFreelancers(ctx context.Context, f FreelancerFilter) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).
		Where("is_freelancer = ?", true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list freelancers: %w", err)
	}

	if len(f.Skills) > 0 {
		kept := users[:0]
		for _, u := range users {
			if models.SkillOverlap(models.SplitSkills(u.Skills), f.Skills) > 0 {
				kept = append(kept, u)
			}
		}
		users = kept
	}
	if f.Limit > 0 && len(users) > f.Limit {
		users = users[:f.Limit]
	}
	return users, nil
}

// GetUserGraph loads a user, the reviews they received and every reviewer.
func (s *Store) GetUserGraph(ctx context.Context, id uint) (models.UserGraph, error) {
	var g models.UserGraph
	err := s.tx(ctx, func(tx *gorm.DB) error {
		u, err := first[models.User](tx, "user", id)
		if err != nil {
			return err
		}
		g.User = u

		if err := tx.Where("reviewee_id = ?", id).
			Order("created_at ASC, id ASC").
			Find(&g.ReviewsReceived).Error; err != nil {
			return fmt.Errorf("load reviews for user %d: %w", id, err)
		}

		ids := []uint{u.ID}
		for _, r := range g.ReviewsReceived {
			ids = append(ids, r.ReviewerID)
		}
		g.Users, err = loadUsers(tx, ids)
		return err
	})
	return g, err
}

// UpdateScores recomputes one user's ranking fields. The inputs are read and
// the result is written inside a single transaction, so a failure leaves the
// previous scores intact. It is the only writer of the ranking columns.
func (s *Store) UpdateScores(ctx context.Context, id uint, compute func(models.ScoreInputs) (models.Scores, error)) (models.Scores, error) {
	var out models.Scores
	err := s.tx(ctx, func(tx *gorm.DB) error {
		u, err := first[models.User](tx, "user", id)
		if err != nil {
			return err
		}

		in := models.ScoreInputs{User: u}
		if err := tx.Where("reviewee_id = ?", id).Order("id ASC").Find(&in.ReviewsReceived).Error; err != nil {
			return fmt.Errorf("load reviews for user %d: %w", id, err)
		}
		if err := tx.Where("freelancer_id = ?", id).Order("id ASC").Find(&in.AssignedProjects).Error; err != nil {
			return fmt.Errorf("load projects for user %d: %w", id, err)
		}

		scores, err := compute(in)
		if err != nil {
			return err
		}
		if err := checkScores(scores); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Model(&models.User{}).Where("id = ?", id).UpdateColumns(map[string]any{
			"avg_rating":        scores.AvgRating,
			"completion_rate":   scores.CompletionRate,
			"on_time_rate":      scores.OnTimeRate,
			"portfolio_score":   scores.PortfolioScore,
			"scores_updated_at": now,
		}).Error; err != nil {
			return fmt.Errorf("write scores for user %d: %w", id, err)
		}
		out = scores
		return nil
	})
	return out, err
}

func checkScores(sc models.Scores) error {
	ranges := []struct {
		name      string
		v, lo, hi float64
	}{
		{"avg_rating", sc.AvgRating, 0, 5},
		{"completion_rate", sc.CompletionRate, 0, 1},
		{"on_time_rate", sc.OnTimeRate, 0, 1},
		{"portfolio_score", sc.PortfolioScore, 0, 1},
	}
	for _, r := range ranges {
		if math.IsNaN(r.v) || r.v < r.lo || r.v > r.hi {
			return apperr.Constraint("user_"+r.name+"_range", "%s=%v outside [%v,%v]", r.name, r.v, r.lo, r.hi)
		}
	}
	return nil
}

func hasFreelanceHistory(tx *gorm.DB, id uint) (bool, error) {
	found, err := exists(tx, &models.Bid{}, "freelancer_id = ?", id)
	if err != nil || found {
		return found, err
	}
	return exists(tx, &models.Project{}, "freelancer_id = ?", id)
}
