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

const ratingColumns = `id, service_request_id, rating_from, created_by, description, rating, created_at, updated_at`

// RatingFilter параметры выборки оценок.
type RatingFilter struct {
	ServiceRequestID *uuid.UUID
	CreatedByID      *uuid.UUID
	Limit            int
	Offset           int
}

type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create создаёт оценку.
func (r *RatingRepository) Create(ctx context.Context, rating *models.ServiceRequestRating) error {
	query := `
		INSERT INTO service_request_ratings (service_request_id, rating_from, created_by, description, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		rating.ServiceRequestID, rating.RatingFrom, rating.CreatedByID, rating.Description, rating.Rating,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
		return fmt.Errorf("rating repository: create %w", err)
	}
	return nil
}

// GetByID возвращает оценку по ID.
func (r *RatingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequestRating, error) {
	var rating models.ServiceRequestRating
	if err := r.db.GetContext(ctx, &rating, `SELECT `+ratingColumns+` FROM service_request_ratings WHERE id = $1`, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrRatingNotFound
		}
		return nil, fmt.Errorf("rating repository: get %w", err)
	}
	return &rating, nil
}

// ExistsByRequestAndAuthor проверяет, оценивал ли пользователь заявку.
func (r *RatingRepository) ExistsByRequestAndAuthor(ctx context.Context, requestID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM service_request_ratings WHERE service_request_id = $1 AND created_by = $2)
	`, requestID, userID)
	if err != nil {
		return false, fmt.Errorf("rating repository: exists %w", err)
	}
	return exists, nil
}

func (r *RatingRepository) List(ctx context.Context, f RatingFilter) ([]models.ServiceRequestRating, int, error) {
	var args common.Args
	var conds []string
	if f.ServiceRequestID != nil {
		conds = append(conds, "service_request_id = "+args.Add(*f.ServiceRequestID))
	}
	if f.CreatedByID != nil {
		conds = append(conds, "created_by = "+args.Add(*f.CreatedByID))
	}
	where := common.Where(conds)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM service_request_ratings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("rating repository: count %w", err)
	}

	query := `SELECT ` + ratingColumns + ` FROM service_request_ratings` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)
	}
	var ratings []models.ServiceRequestRating
	if err := r.db.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("rating repository: list %w", err)
	}
	return ratings, total, nil
}

// ProviderAverage средняя оценка клиентов по заявкам поставщика.
func (r *RatingRepository) ProviderAverage(ctx context.Context, providerID uuid.UUID) (float64, int, error) {
	var result struct {
		Avg   float64 `db:"avg"`
		Count int     `db:"count"`
	}
	err := r.db.GetContext(ctx, &result, `
		SELECT COALESCE(AVG(rt.rating), 0) AS avg, COUNT(*) AS count
		FROM service_request_ratings rt
		JOIN service_requests sr ON sr.id = rt.service_request_id
		WHERE sr.assigned_provider_id = $1 AND rt.rating_from = $2
	`, providerID, models.RoleClient)
	if err != nil {
		return 0, 0, fmt.Errorf("rating repository: provider average %w", err)
	}
	return result.Avg, result.Count, nil
}
