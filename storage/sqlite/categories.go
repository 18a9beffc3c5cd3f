package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// categoryRepository implements storage.CategoryRepository.
type categoryRepository struct {
	store *Store
}

var _ storage.CategoryRepository = (*categoryRepository)(nil)

func (r *categoryRepository) Create(ctx context.Context, category *core.Category) error {
	if category.ID == "" || category.Name == "" {
		return fmt.Errorf("%w: category requires id and name", storage.ErrInvalidQuery)
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE id = ? OR name = ?",
		category.ID, category.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking for existing category: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: category %s", storage.ErrDuplicateID, category.Name)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)",
		category.ID, category.Name, category.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting category: %w", err)
	}

	return tx.Commit()
}

func (r *categoryRepository) Get(ctx context.Context, id string) (*core.Category, error) {
	return r.queryOne(ctx, "SELECT id, name, created_at FROM categories WHERE id = ?", id)
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*core.Category, error) {
	return r.queryOne(ctx, "SELECT id, name, created_at FROM categories WHERE name = ?", name)
}

func (r *categoryRepository) List(ctx context.Context) ([]*core.Category, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*core.Category
	for rows.Next() {
		var category core.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		category.CreatedAt = category.CreatedAt.UTC()
		categories = append(categories, &category)
	}
	return categories, rows.Err()
}

func (r *categoryRepository) queryOne(ctx context.Context, query string, arg any) (*core.Category, error) {
	var category core.Category
	err := r.store.db.QueryRowContext(ctx, query, arg).
		Scan(&category.ID, &category.Name, &category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %v", storage.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	category.CreatedAt = category.CreatedAt.UTC()
	return &category, nil
}
