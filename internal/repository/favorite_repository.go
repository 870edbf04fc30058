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

type FavoriteRepository struct {
	db *sqlx.DB
}

func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add добавляет объявление в избранное, повторное добавление возвращает существующую запись.
func (r *FavoriteRepository) Add(ctx context.Context, f *models.Favourite) error {
	err := r.db.GetContext(ctx, f, `
		INSERT INTO favourites (user_id, category_id, content_type, object_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, object_id) DO UPDATE SET created_at = favourites.created_at
		RETURNING id, user_id, category_id, content_type, object_id, created_at
	`, f.UserID, f.CategoryID, f.ContentType, f.ObjectID)
	if err != nil {
		return fmt.Errorf("favorite repository: add %w", err)
	}
	return nil
}

// Remove удаляет запись избранного, принадлежащую пользователю.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favourites WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("favorite repository: remove %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrFavouriteNotFound)
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID uuid.UUID, contentType string, limit, offset int) ([]models.Favourite, int, error) {
	var args common.Args
	conds := []string{"user_id = " + args.Add(userID)}
	if contentType != "" {
		conds = append(conds, "content_type = "+args.Add(contentType))
	}
	where := common.Where(conds)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM favourites`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("favorite repository: count %w", err)
	}

	query := `SELECT id, user_id, category_id, content_type, object_id, created_at FROM favourites` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)
	}
	var favourites []models.Favourite
	if err := r.db.SelectContext(ctx, &favourites, query, args...); err != nil {
		return nil, 0, fmt.Errorf("favorite repository: list %w", err)
	}
	return favourites, total, nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, objectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM favourites WHERE user_id = $1 AND object_id = $2)
	`, userID, objectID)
	if err != nil {
		return false, fmt.Errorf("favorite repository: exists %w", err)
	}
	return exists, nil
}
