package marketplace

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// RecordRun appends an aggregator run to the ledger.
func (s *Store) RecordRun(ctx context.Context, run *models.MetricsRun) error {
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record metrics run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started aggregator run.
func (s *Store) LatestRun(ctx context.Context) (models.MetricsRun, error) {
	var run models.MetricsRun
	err := s.DB.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return run, fmt.Errorf("no metrics run recorded: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return run, fmt.Errorf("load latest metrics run: %w", err)
	}
	return run, nil
}
