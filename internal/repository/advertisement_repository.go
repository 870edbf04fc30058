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

const advertisementColumns = `id, user_id, category_id, title, description, price, location, availability,
	content_type, details, latitude, longitude, geohash, created_at, updated_at`

// AdvertisementRepository объявления всех видов в одной таблице.
type AdvertisementRepository struct {
	db *sqlx.DB
}

func NewAdvertisementRepository(db *sqlx.DB) *AdvertisementRepository {
	return &AdvertisementRepository{db: db}
}

func advertisementFilter(f models.AdvertisementFilter, args *common.Args) []string {
	var conds []string
	if f.CategoryID != nil {
		p := args.Add(*f.CategoryID)
		conds = append(conds, "(category_id = "+p+" OR category_id IN (SELECT id FROM categories WHERE parent_id = "+p+"))")
	}
	if f.ContentType != "" {
		conds = append(conds, "content_type = "+args.Add(f.ContentType))
	}
	if f.Query != "" {
		p := args.Add("%" + f.Query + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+args.Add(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+args.Add(*f.MaxPrice))
	}
	if f.GeohashPrefix != "" {
		conds = append(conds, "geohash LIKE "+args.Add(f.GeohashPrefix+"%"))
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = "+args.Add(*f.UserID))
	}
	return conds
}

func (r *AdvertisementRepository) List(ctx context.Context, f models.AdvertisementFilter) ([]models.Advertisement, int, error) {
	var args common.Args
	where := common.Where(advertisementFilter(f, &args))

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM advertisements`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("advertisement repository: count %w", err)
	}

	query := `SELECT ` + advertisementColumns + ` FROM advertisements` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)
	}
	var out []models.Advertisement
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("advertisement repository: list %w", err)
	}
	return out, total, nil
}

func (r *AdvertisementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	var ad models.Advertisement
	if err := r.db.GetContext(ctx, &ad, `SELECT `+advertisementColumns+` FROM advertisements WHERE id = $1`, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrAdvertiseNotFound
		}
		return nil, fmt.Errorf("advertisement repository: get %w", err)
	}
	return &ad, nil
}

func (r *AdvertisementRepository) Create(ctx context.Context, ad *models.Advertisement) error {
	query := `
		INSERT INTO advertisements (user_id, category_id, title, description, price, location, availability,
			content_type, details, latitude, longitude, geohash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		ad.UserID, ad.CategoryID, ad.Title, ad.Description, ad.Price, ad.Location, ad.Availability,
		ad.ContentType, []byte(ad.Details), ad.Latitude, ad.Longitude, ad.Geohash,
	).Scan(&ad.ID, &ad.CreatedAt, &ad.UpdatedAt); err != nil {
		return fmt.Errorf("advertisement repository: create %w", err)
	}
	return nil
}

func (r *AdvertisementRepository) Update(ctx context.Context, ad *models.Advertisement) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE advertisements
		SET category_id = $2, title = $3, description = $4, price = $5, location = $6, availability = $7,
			content_type = $8, details = $9, latitude = $10, longitude = $11, geohash = $12, updated_at = NOW()
		WHERE id = $1`,
		ad.ID, ad.CategoryID, ad.Title, ad.Description, ad.Price, ad.Location, ad.Availability,
		ad.ContentType, []byte(ad.Details), ad.Latitude, ad.Longitude, ad.Geohash,
	)
	if err != nil {
		return fmt.Errorf("advertisement repository: update %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrAdvertiseNotFound)
}

func (r *AdvertisementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.DeleteByID(ctx, r.db, "advertisements", id, apperror.ErrAdvertiseNotFound)
}
