package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PartyRepository справочные запросы об участниках заявок.
type PartyRepository struct {
	db *sqlx.DB
}

func NewPartyRepository(db *sqlx.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

var _ repository.PartyReader = (*PartyRepository)(nil)

func (r *PartyRepository) provider(ctx context.Context, where string, arg interface{}) (*repository.ProviderRef, error) {
	var ref repository.ProviderRef
	err := r.db.QueryRowxContext(ctx, `SELECT id, user_id, name FROM service_providers WHERE `+where+` = $1`, arg).
		Scan(&ref.ID, &ref.UserID, &ref.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, fmt.Errorf("party repository: provider: %w", err)
	}
	return &ref, nil
}

func (r *PartyRepository) ProviderByUser(ctx context.Context, userID uuid.UUID) (*repository.ProviderRef, error) {
	return r.provider(ctx, "user_id", userID)
}

func (r *PartyRepository) ProviderByID(ctx context.Context, id uuid.UUID) (*repository.ProviderRef, error) {
	return r.provider(ctx, "id", id)
}

func (r *PartyRepository) FilterUsersByRole(ctx context.Context, ids []uuid.UUID, role string) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.SelectContext(ctx, &out, `SELECT id FROM users WHERE id = ANY($1) AND role = $2 AND is_active`, pq.Array(ids), role)
	if err != nil {
		return nil, fmt.Errorf("party repository: users by role: %w", err)
	}
	return out, nil
}

func (r *PartyRepository) AddressOwner(ctx context.Context, addressID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.db.GetContext(ctx, &owner, `SELECT user_id FROM addresses WHERE id = $1`, addressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, apperror.ErrAddressNotFound
		}
		return uuid.Nil, fmt.Errorf("party repository: address owner: %w", err)
	}
	return owner, nil
}

// ProviderUsersForFeature пользователи поставщиков, оказывающих услугу варианта.
func (r *PartyRepository) ProviderUsersForFeature(ctx context.Context, featureID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := r.db.SelectContext(ctx, &out, `
		SELECT DISTINCT sp.user_id
		FROM features f
		JOIN services s ON s.id = f.service_id
		JOIN service_provider_services ps ON ps.is_active AND (ps.service_id = s.id OR ps.service_id = s.parent_id)
		JOIN service_providers sp ON sp.id = ps.provider_id
		WHERE f.id = $1`, featureID)
	if err != nil {
		return nil, fmt.Errorf("party repository: feature providers: %w", err)
	}
	return out, nil
}
