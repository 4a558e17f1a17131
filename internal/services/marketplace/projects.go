package marketplace

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// CreateProject inserts an open, unassigned project for an existing client.
func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	p.ID = 0
	p.Title = strings.TrimSpace(p.Title)
	p.RequiredSkills = models.NormalizeSkills(p.RequiredSkills)
	p.Status = models.ProjectStatusOpen
	p.FreelancerID = nil
	p.AcceptedBidID = nil
	p.AssignedAt = nil
	p.CompletedAt = nil

	if err := checkProjectFields(p.Title, p.Description, p.Budget); err != nil {
		return err
	}

	return s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := reference[models.User](tx, "project_client_fk", "user", p.ClientID); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		return nil
	})
}

func (s *Store) GetProject(ctx context.Context, id uint) (models.Project, error) {
	return first[models.Project](s.DB.WithContext(ctx), "project", id)
}

type ProjectFilter struct {
	Status       models.ProjectStatus
	ClientID     uint
	FreelancerID uint
	Limit        int
	Offset       int
}

func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	q := s.DB.WithContext(ctx).Model(&models.Project{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.FreelancerID != 0 {
		q = q.Where("freelancer_id = ?", f.FreelancerID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.Project
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// UpdateProject edits descriptive fields of a project that is not closed yet.
// Status and assignment change only through AcceptBid, CompleteProject and
// CancelProject.
func (s *Store) UpdateProject(ctx context.Context, id uint, upd models.ProjectUpdate) (models.Project, error) {
	var out models.Project
	err := s.tx(ctx, func(tx *gorm.DB) error {
		p, err := first[models.Project](tx, "project", id)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return apperr.Constraint("project_closed", "project %d is %s", id, p.Status)
		}

		fields := map[string]any{}
		if upd.Title != nil {
			p.Title = strings.TrimSpace(*upd.Title)
			fields["title"] = p.Title
		}
		if upd.Description != nil {
			p.Description = *upd.Description
			fields["description"] = p.Description
		}
		if upd.Budget != nil {
			p.Budget = *upd.Budget
			fields["budget"] = p.Budget
		}
		if upd.RequiredSkills != nil {
			fields["required_skills"] = models.NormalizeSkills(*upd.RequiredSkills)
		}
		if upd.Deadline != nil {
			fields["deadline"] = upd.Deadline.UTC()
		}
		if err := checkProjectFields(p.Title, p.Description, p.Budget); err != nil {
			return err
		}

		if len(fields) > 0 {
			if err := tx.Model(&models.Project{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("update project %d: %w", id, err)
			}
		}
		out, err = first[models.Project](tx, "project", id)
		return err
	})
	return out, err
}

// AcceptBid assigns the bid's freelancer to the project. The open to
// in_progress transition is a compare-and-set on status, so of two concurrent
// accepts on one project exactly one succeeds.
func (s *Store) AcceptBid(ctx context.Context, projectID, bidID, clientID uint) (models.Project, error) {
	var out models.Project
	err := s.tx(ctx, func(tx *gorm.DB) error {
		p, err := first[models.Project](forUpdate(tx), "project", projectID)
		if err != nil {
			return err
		}
		bid, err := first[models.Bid](tx, "bid", bidID)
		if err != nil {
			return err
		}
		if bid.ProjectID != projectID {
			return apperr.Constraint("bid_project", "bid %d belongs to project %d", bidID, bid.ProjectID)
		}
		if p.ClientID != clientID {
			return apperr.Constraint("project_client_only", "only the project client can accept bids")
		}

		now := s.now()
		fields := map[string]any{
			"status":          models.ProjectStatusInProgress,
			"freelancer_id":   bid.FreelancerID,
			"accepted_bid_id": bid.ID,
			"assigned_at":     now,
		}
		if p.Deadline == nil && bid.ProposedTimelineDays != nil {
			fields["deadline"] = now.AddDate(0, 0, *bid.ProposedTimelineDays)
		}

		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", projectID, models.ProjectStatusOpen).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("accept bid %d: %w", bidID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Constraint("project_not_open", "project %d is no longer open", projectID)
		}

		out, err = first[models.Project](tx, "project", projectID)
		return err
	})
	return out, err
}

// CompleteProject moves an in-progress project to completed.
func (s *Store) CompleteProject(ctx context.Context, id uint) (models.Project, error) {
	now := s.now()
	return s.transition(ctx, id, models.ProjectStatusInProgress, models.ProjectStatusCompleted, map[string]any{
		"completed_at": now,
	})
}

// CancelProject moves an in-progress project to cancelled. An open project
// has no assignee and is deleted instead, keeping freelancer_id set on every
// non-open project.
func (s *Store) CancelProject(ctx context.Context, id uint) (models.Project, error) {
	return s.transition(ctx, id, models.ProjectStatusInProgress, models.ProjectStatusCancelled, nil)
}

func (s *Store) transition(ctx context.Context, id uint, from, to models.ProjectStatus, extra map[string]any) (models.Project, error) {
	var out models.Project
	err := s.tx(ctx, func(tx *gorm.DB) error {
		fields := map[string]any{"status": to}
		for k, v := range extra {
			fields[k] = v
		}

		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", id, from).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("move project %d to %s: %w", id, to, res.Error)
		}
		if res.RowsAffected == 0 {
			p, err := first[models.Project](tx, "project", id)
			if err != nil {
				return err
			}
			return apperr.Constraint("project_status", "project %d is %s, want %s", id, p.Status, from)
		}

		var err error
		out, err = first[models.Project](tx, "project", id)
		return err
	})
	return out, err
}

// DeleteProject removes a project with all of its bids and reviews.
func (s *Store) DeleteProject(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := first[models.Project](forUpdate(tx), "project", id); err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", id).Update("accepted_bid_id", nil).Error; err != nil {
			return fmt.Errorf("release accepted bid of project %d: %w", id, err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return fmt.Errorf("delete reviews of project %d: %w", id, err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Bid{}).Error; err != nil {
			return fmt.Errorf("delete bids of project %d: %w", id, err)
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return fmt.Errorf("delete project %d: %w", id, err)
		}
		return nil
	})
}

// GetProjectGraph loads a project, its bids and reviews, and every user they
// point at.
func (s *Store) GetProjectGraph(ctx context.Context, id uint) (models.ProjectGraph, error) {
	var g models.ProjectGraph
	err := s.tx(ctx, func(tx *gorm.DB) error {
		p, err := first[models.Project](tx, "project", id)
		if err != nil {
			return err
		}
		g.Project = p

		if err := tx.Where("project_id = ?", id).Order("created_at ASC, id ASC").Find(&g.Bids).Error; err != nil {
			return fmt.Errorf("load bids of project %d: %w", id, err)
		}
		if err := tx.Where("project_id = ?", id).Order("created_at ASC, id ASC").Find(&g.Reviews).Error; err != nil {
			return fmt.Errorf("load reviews of project %d: %w", id, err)
		}

		ids := projectUserIDs(p)
		for _, b := range g.Bids {
			ids = append(ids, b.FreelancerID)
		}
		for _, r := range g.Reviews {
			ids = append(ids, r.ReviewerID, r.RevieweeID)
		}
		g.Users, err = loadUsers(tx, ids)
		return err
	})
	return g, err
}

// GetProjectSummary loads a project with its client and assignee only.
func (s *Store) GetProjectSummary(ctx context.Context, id uint) (models.ProjectSummary, error) {
	var out models.ProjectSummary
	err := s.tx(ctx, func(tx *gorm.DB) error {
		p, err := first[models.Project](tx, "project", id)
		if err != nil {
			return err
		}
		out.Project = p
		out.Users, err = loadUsers(tx, projectUserIDs(p))
		return err
	})
	return out, err
}

func projectUserIDs(p models.Project) []uint {
	ids := []uint{p.ClientID}
	if p.FreelancerID != nil {
		ids = append(ids, *p.FreelancerID)
	}
	return ids
}

func checkProjectFields(title, description string, budget float64) error {
	if title == "" {
		return apperr.Constraint("project_title_required", "title is required")
	}
	if strings.TrimSpace(description) == "" {
		return apperr.Constraint("project_description_required", "description is required")
	}
	if !(budget > 0) {
		return apperr.Constraint("project_budget_positive", "budget must be positive, got %v", budget)
	}
	return nil
}
