package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
)

const categoryColumns = `id, name, parent_id, depth, keyword, created_at, updated_at`

// CatalogRepository дерево категорий объявлений.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListRootCategories возвращает только корневые категории (без parent_id).
func (r *CatalogRepository) ListRootCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.SelectContext(ctx, &categories, `
		SELECT `+categoryColumns+`
		FROM categories WHERE parent_id IS NULL ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: list roots %w", err)
	}
	return categories, nil
}

// ListSubcategories возвращает подкатегории для указанной категории.
func (r *CatalogRepository) ListSubcategories(ctx context.Context, parentID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.SelectContext(ctx, &categories, `
		SELECT `+categoryColumns+`
		FROM categories WHERE parent_id = $1 ORDER BY name
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: list children %w", err)
	}
	return categories, nil
}

// GetCategoryByID возвращает категорию по ID.
func (r *CatalogRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return common.GetByID[models.Category](ctx, r.db, "categories", id, apperror.ErrCategoryNotFound)
}

// CreateCategory вычисляет глубину по родителю и сохраняет категорию.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (name, parent_id, depth, keyword)
		VALUES ($1, $2, COALESCE((SELECT depth + 1 FROM categories WHERE id = $2), 0), $3)
		RETURNING id, depth, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, c.Name, c.ParentID, c.Keyword).
		Scan(&c.ID, &c.Depth, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("catalog repository: create category %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $2, parent_id = $3, keyword = $4,
			depth = COALESCE((SELECT depth + 1 FROM categories WHERE id = $3), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING depth, updated_at
	`
	rows, err := r.db.QueryxContext(ctx, query, c.ID, c.Name, c.ParentID, c.Keyword)
	if err != nil {
		return fmt.Errorf("catalog repository: update category %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return apperror.ErrCategoryNotFound
	}
	if err := rows.Scan(&c.Depth, &c.UpdatedAt); err != nil {
		return fmt.Errorf("catalog repository: update category %w", err)
	}
	return rows.Err()
}

func (r *CatalogRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return common.DeleteByID(ctx, r.db, "categories", id, apperror.ErrCategoryNotFound)
}
