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

// AddressRepository адресная книга пользователей и токены устройств.
type AddressRepository struct {
	db *sqlx.DB
}

func NewAddressRepository(db *sqlx.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, a *models.Address) error {
	query := `
		INSERT INTO addresses (user_id, label, city, area, street, building, apartment, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		a.UserID, a.Label, a.City, a.Area, a.Street, a.Building, a.Apartment, a.Latitude, a.Longitude,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("address repository: create %w", err)
	}
	return nil
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	query := `
		SELECT id, user_id, label, city, area, street, building, apartment, latitude, longitude, created_at, updated_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("address repository: list %w", err)
	}
	return out, nil
}

func (r *AddressRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("address repository: delete %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrAddressNotFound)
}

// SaveDeviceToken привязывает токен устройства к пользователю. Токен, ранее
// выданный другому пользователю, переходит к текущему.
func (r *AddressRepository) SaveDeviceToken(ctx context.Context, t *models.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (user_id, token, device_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, device_type = EXCLUDED.device_type
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, t.UserID, t.Token, t.DeviceType).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("address repository: save device token %w", err)
	}
	return nil
}

// DeviceTokens токены устройств пользователей для push рассылки.
func (r *AddressRepository) DeviceTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT token FROM device_tokens WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("address repository: device tokens %w", err)
	}
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("address repository: device tokens %w", err)
	}
	return tokens, nil
}

// DeleteDeviceTokens удаляет токены, отвергнутые сервисом push уведомлений.
func (r *AddressRepository) DeleteDeviceTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM device_tokens WHERE token IN (?)`, tokens)
	if err != nil {
		return fmt.Errorf("address repository: delete device tokens %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("address repository: delete device tokens %w", err)
	}
	return nil
}
