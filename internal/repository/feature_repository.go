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

const (
	featureColumns = `f.id, f.service_id, f.name, f.cover_photo, f.description, f.is_active, f.cities, f.created_at, f.updated_at`
	fieldColumns   = `id, feature_id, field_name, label, field_type, is_price_unit_field, price_per_unit, is_required, is_active, created_at, updated_at`
)

// FeatureRepository варианты услуг и их динамические поля.
type FeatureRepository struct {
	db *sqlx.DB
}

func NewFeatureRepository(db *sqlx.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

func featureFilter(f models.FeatureFilter, args *common.Args) []string {
	var conds []string
	if f.ActiveOnly {
		conds = append(conds, "f.is_active")
	}
	if f.Query != "" {
		conds = append(conds, "f.name ILIKE "+args.Add("%"+f.Query+"%"))
	}
	if f.ServiceID != nil {
		p := args.Add(*f.ServiceID)
		conds = append(conds, "(f.service_id = "+p+" OR f.service_id IN (SELECT id FROM services WHERE parent_id = "+p+"))")
	}
	if f.City != "" {
		conds = append(conds, args.Add(f.City)+" = ANY(f.cities)")
	}
	return conds
}

func (r *FeatureRepository) List(ctx context.Context, f models.FeatureFilter) ([]models.Feature, int, error) {
	var args common.Args
	where := common.Where(featureFilter(f, &args))

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM features f`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("feature repository: count %w", err)
	}

	query := `SELECT ` + featureColumns + ` FROM features f` + where + ` ORDER BY f.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)
	}
	var out []models.Feature
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("feature repository: list %w", err)
	}
	if err := r.attachFields(ctx, r.db, out, f.ActiveOnly); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// attachFields загружает поля всех вариантов одним запросом.
func (r *FeatureRepository) attachFields(ctx context.Context, q sqlx.QueryerContext, features []models.Feature, activeOnly bool) error {
	if len(features) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(features))
	index := make(map[uuid.UUID]int, len(features))
	for i := range features {
		ids[i] = features[i].ID
		index[features[i].ID] = i
		features[i].ServiceFields = []models.ServiceField{}
	}

	query := `SELECT ` + fieldColumns + ` FROM service_fields WHERE feature_id IN (?)`
	if activeOnly {
		query += ` AND is_active`
	}
	query, args, err := sqlx.In(query+` ORDER BY created_at, field_name`, ids)
	if err != nil {
		return fmt.Errorf("feature repository: fields %w", err)
	}
	var fields []models.ServiceField
	if err := sqlx.SelectContext(ctx, q, &fields, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("feature repository: fields %w", err)
	}
	for _, sf := range fields {
		i := index[sf.FeatureID]
		features[i].ServiceFields = append(features[i].ServiceFields, sf)
	}
	return nil
}

// GetByID возвращает вариант услуги со всеми полями.
func (r *FeatureRepository) GetByID(ctx context.Context, id uuid.UUID, activeFieldsOnly bool) (*models.Feature, error) {
	var f models.Feature
	if err := r.db.GetContext(ctx, &f, `SELECT `+featureColumns+` FROM features f WHERE f.id = $1`, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrFeatureNotFound
		}
		return nil, fmt.Errorf("feature repository: get %w", err)
	}
	list := []models.Feature{f}
	if err := r.attachFields(ctx, r.db, list, activeFieldsOnly); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func insertFields(ctx context.Context, tx *sqlx.Tx, featureID uuid.UUID, fields []models.ServiceField) error {
	if len(fields) == 0 {
		return nil
	}
	bi := common.NewBatchInserter(tx, `INSERT INTO service_fields (id, feature_id, field_name, label, field_type, is_price_unit_field, price_per_unit, is_required, is_active)`, 9, 100)
	for i := range fields {
		sf := &fields[i]
		if sf.ID == uuid.Nil {
			sf.ID = uuid.New()
		}
		sf.FeatureID = featureID
		if err := bi.Add(ctx, sf.ID, featureID, sf.FieldName, sf.Label, sf.FieldType, sf.IsPriceUnitField, sf.PricePerUnit, sf.IsRequired, sf.IsActive); err != nil {
			return fmt.Errorf("feature repository: fields %w", err)
		}
	}
	if err := bi.Flush(ctx); err != nil {
		return fmt.Errorf("feature repository: fields %w", err)
	}
	return nil
}

// Create сохраняет вариант услуги вместе с полями.
func (r *FeatureRepository) Create(ctx context.Context, f *models.Feature) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO features (service_id, name, cover_photo, description, is_active, cities)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query, f.ServiceID, f.Name, f.CoverPhoto, f.Description, f.IsActive, f.Cities).
			Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return fmt.Errorf("feature repository: create %w", err)
		}
		return insertFields(ctx, tx, f.ID, f.ServiceFields)
	})
}

// Update обновляет вариант услуги. У существующих полей меняются только label и
// is_active, новые поля добавляются, поля не удаляются.
func (r *FeatureRepository) Update(ctx context.Context, f *models.Feature) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE features
			SET service_id = $2, name = $3, cover_photo = $4, description = $5, is_active = $6, cities = $7, updated_at = NOW()
			WHERE id = $1`,
			f.ID, f.ServiceID, f.Name, f.CoverPhoto, f.Description, f.IsActive, f.Cities,
		)
		if err != nil {
			return fmt.Errorf("feature repository: update %w", err)
		}
		if err := common.CheckRowsAffected(res, apperror.ErrFeatureNotFound); err != nil {
			return err
		}

		var added []models.ServiceField
		for _, sf := range f.ServiceFields {
			res, err := tx.ExecContext(ctx, `
				UPDATE service_fields SET label = $3, is_active = $4, updated_at = NOW()
				WHERE feature_id = $1 AND field_name = $2`,
				f.ID, sf.FieldName, sf.Label, sf.IsActive,
			)
			if err != nil {
				return fmt.Errorf("feature repository: update field %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				added = append(added, sf)
			}
		}
		return insertFields(ctx, tx, f.ID, added)
	})
}

func (r *FeatureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM service_fields WHERE feature_id = $1`, id); err != nil {
			return fmt.Errorf("feature repository: delete fields %w", err)
		}
		return common.DeleteByID(ctx, tx, "features", id, apperror.ErrFeatureNotFound)
	})
}

// ToggleActive переключает активность варианта услуги.
func (r *FeatureRepository) ToggleActive(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE features SET is_active = NOT is_active, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("feature repository: toggle %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrFeatureNotFound)
}

// ToggleFieldActive переключает активность поля, принадлежащего варианту услуги.
func (r *FeatureRepository) ToggleFieldActive(ctx context.Context, featureID, fieldID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE service_fields SET is_active = NOT is_active, updated_at = NOW()
		WHERE id = $1 AND feature_id = $2`, fieldID, featureID)
	if err != nil {
		return fmt.Errorf("feature repository: toggle field %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrFieldNotFound)
}

// Dropdown варианты услуг с названием услуги.
func (r *FeatureRepository) Dropdown(ctx context.Context, activeOnly bool) ([]models.DropdownItem, error) {
	query := `SELECT f.id, f.name, s.name AS service_name FROM features f JOIN services s ON s.id = f.service_id`
	if activeOnly {
		query += ` WHERE f.is_active`
	}
	var out []models.DropdownItem
	if err := r.db.SelectContext(ctx, &out, query+` ORDER BY f.name`); err != nil {
		return nil, fmt.Errorf("feature repository: dropdown %w", err)
	}
	return out, nil
}
