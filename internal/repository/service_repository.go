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

const serviceSelect = `
	SELECT s.id, s.name, s.parent_id, s.cover_photo, s.description, s.is_active, s.created_at, s.updated_at,
		EXISTS (SELECT 1 FROM services c WHERE c.parent_id = s.id) AS has_child_services
	FROM services s`

// ServiceRepository дерево услуг каталога.
type ServiceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func serviceFilter(f models.ServiceFilter, args *common.Args) []string {
	var conds []string
	if f.ActiveOnly {
		conds = append(conds, "s.is_active")
	}
	if f.Query != "" {
		conds = append(conds, "s.name ILIKE "+args.Add("%"+f.Query+"%"))
	}
	if f.ParentID != nil {
		conds = append(conds, "s.parent_id = "+args.Add(*f.ParentID))
	}
	if f.RootsOnly {
		conds = append(conds, "s.parent_id IS NULL")
	}
	if f.City != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM features f
			WHERE (f.service_id = s.id OR f.service_id IN (SELECT id FROM services WHERE parent_id = s.id))
			AND `+args.Add(f.City)+` = ANY(f.cities))`)
	}
	return conds
}

// List возвращает страницу услуг и общее количество.
func (r *ServiceRepository) List(ctx context.Context, f models.ServiceFilter) ([]models.Service, int, error) {
	var args common.Args
	where := common.Where(serviceFilter(f, &args))

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM services s`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("service repository: count %w", err)
	}

	query := serviceSelect + where + ` ORDER BY s.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)
	}
	var out []models.Service
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("service repository: list %w", err)
	}
	return out, total, nil
}

// Dropdown корневые услуги для выпадающего списка.
func (r *ServiceRepository) Dropdown(ctx context.Context, activeOnly bool) ([]models.DropdownItem, error) {
	query := `SELECT id, name FROM services WHERE parent_id IS NULL`
	if activeOnly {
		query += ` AND is_active`
	}
	var out []models.DropdownItem
	if err := r.db.SelectContext(ctx, &out, query+` ORDER BY name`); err != nil {
		return nil, fmt.Errorf("service repository: dropdown %w", err)
	}
	return out, nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var s models.Service
	if err := r.db.GetContext(ctx, &s, serviceSelect+` WHERE s.id = $1`, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, fmt.Errorf("service repository: get %w", err)
	}
	return &s, nil
}

func (r *ServiceRepository) Create(ctx context.Context, s *models.Service) error {
	query := `
		INSERT INTO services (name, parent_id, cover_photo, description, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, s.Name, s.ParentID, s.CoverPhoto, s.Description, s.IsActive).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("service repository: create %w", err)
	}
	return nil
}

func (r *ServiceRepository) Update(ctx context.Context, s *models.Service) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET name = $2, parent_id = $3, cover_photo = $4, description = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.ParentID, s.CoverPhoto, s.Description, s.IsActive,
	)
	if err != nil {
		return fmt.Errorf("service repository: update %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrServiceNotFound)
}

func (r *ServiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.DeleteByID(ctx, r.db, "services", id, apperror.ErrServiceNotFound)
}

// RootIDs оставляет из списка только существующие корневые услуги.
func (r *ServiceRepository) RootIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM services WHERE parent_id IS NULL AND id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("service repository: roots %w", err)
	}
	var out []uuid.UUID
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("service repository: roots %w", err)
	}
	return out, nil
}
