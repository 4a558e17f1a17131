// Package marketplace is the entity store for users, projects, bids, reviews
// and aggregator run records. Every exported write runs in one transaction.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

type Store struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the clock used for assignment, completion and deadline
// timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{DB: s.DB, now: now}
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(fn)
}

// first loads one row by id, turning gorm.ErrRecordNotFound into NotFound.
func first[T any](tx *gorm.DB, entity string, id uint) (T, error) {
	var row T
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, apperr.NotFound(entity, id)
		}
		return row, fmt.Errorf("load %s %d: %w", entity, id, err)
	}
	return row, nil
}

// reference loads a row that another row is about to point at. A missing
// target is a foreign-key breach, not a NotFound.
func reference[T any](tx *gorm.DB, constraint, entity string, id uint) (T, error) {
	row, err := first[T](tx, entity, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return row, apperr.Constraint(constraint, "%s %d does not exist", entity, id)
	}
	return row, err
}

// forUpdate row-locks what the next query reads until the transaction ends.
// Bid writes and AcceptBid take the project's lock first, so they serialize
// per project. SQLite drops the clause and serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func translate(err error, constraint string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Constraint(constraint, "duplicate value")
	}
	return err
}

// loadUsers resolves a set of user ids into an id-keyed arena.
func loadUsers(tx *gorm.DB, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	uniq := make([]uint, 0, len(ids))
	seen := map[uint]bool{}
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return out, nil
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	var users []models.User
	if err := tx.Where("id IN ?", uniq).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
