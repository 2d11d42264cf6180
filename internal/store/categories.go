package store

import (
	"context"
	"database/sql"
	"fmt"

	"finance-ledger-service/internal/models"

	"github.com/google/uuid"
)

// categoryCacheKey formats the cache key for a category lookup
const categoryCacheKey = "category_%s"

// CreateCategory persists a new category and invalidates its cache entry
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, type) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Type.String())
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	s.categories.Delete(fmt.Sprintf(categoryCacheKey, c.ID))
	return nil
}

// GetCategory fetches a category by id through the read cache, returning nil
// when absent
func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	key := fmt.Sprintf(categoryCacheKey, id)
	if cached, found := s.categories.Get(key); found {
		return cached.(*models.Category), nil
	}

	var (
		c     models.Category
		cType string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Name, &cType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.Type = models.TransactionType(cType)

	s.categories.SetDefault(key, &c)
	return &c, nil
}

// EnsureFallbackCategories upserts the "Other <type>" fallback categories for
// a user. It is idempotent and meant to be invoked explicitly by an operator,
// never from request-time logic.
func (s *Store) EnsureFallbackCategories(ctx context.Context, userID string) ([]*models.Category, error) {
	types := []models.TransactionType{
		models.TransactionTypeIncome,
		models.TransactionTypeExpense,
		models.TransactionTypeTransfer,
	}

	var ensured []*models.Category
	for _, t := range types {
		name := fmt.Sprintf("Other %s", t.String())

		var (
			c     models.Category
			cType string
		)
		err := s.db.QueryRowContext(ctx, `
			SELECT id, user_id, name, type FROM categories
			WHERE user_id = ? AND name = ? AND type = ?`,
			userID, name, t.String()).Scan(&c.ID, &c.UserID, &c.Name, &cType)
		if err == nil {
			c.Type = models.TransactionType(cType)
			ensured = append(ensured, &c)
			continue
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("look up fallback category: %w", err)
		}

		created := &models.Category{
			ID:     uuid.NewString(),
			UserID: userID,
			Name:   name,
			Type:   t,
		}
		if err := s.CreateCategory(ctx, created); err != nil {
			return nil, err
		}
		ensured = append(ensured, created)
	}

	return ensured, nil
}
