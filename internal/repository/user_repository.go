package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
)

// ErrUserNotFound пользователь не найден.
var ErrUserNotFound = apperror.ErrUserNotFound

const (
	userColumns    = `id, email, phone, name, password_hash, role, current_city, photo, is_active, last_login_at, created_at, updated_at`
	sessionColumns = `id, user_id, refresh_token, user_agent, ip_address, expires_at, created_at`
)

// UserRepository таблицы users и user_sessions.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// insertUser вставка пользователя. Используется и в транзакциях ProviderRepository.
func insertUser(ctx context.Context, q sqlx.QueryerContext, user *models.User) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO users (email, phone, name, password_hash, role, current_city, photo, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, is_active, created_at, updated_at`,
		user.Email, user.Phone, user.Name, user.PasswordHash, user.Role, user.CurrentCity, user.Photo,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err == nil {
		return nil
	}
	if constraint, ok := common.UniqueConstraint(err); ok {
		if strings.Contains(constraint, "phone") {
			return apperror.Field("phone", "user with this phone already exists.")
		}
		return apperror.Field("email", "user with this email already exists.")
	}
	return fmt.Errorf("user repository: create %w", err)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

func (r *UserRepository) getOne(ctx context.Context, op, column string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, arg); err != nil {
		if common.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: %s %w", op, err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "get by email", "email", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "get by id", "id", id)
}

// UpdateProfile обновляет редактируемые поля профиля.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE users
		SET name = $2, phone = $3, current_city = $4, photo = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		user.ID, user.Name, user.Phone, user.CurrentCity, user.Photo,
	).Scan(&user.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case common.IsNoRows(err):
		return ErrUserNotFound
	case common.IsUniqueViolation(err):
		return apperror.Field("phone", "user with this phone already exists.")
	}
	return fmt.Errorf("user repository: update profile %w", err)
}

func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

func (r *UserRepository) CreateSession(ctx context.Context, s *models.Session) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO user_sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		s.UserID, s.RefreshToken, s.UserAgent, s.IPAddress, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// DeleteSession закрывает сессию по refresh токену. ErrSessionNotFound, если её уже нет.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrSessionNotFound)
}

// ListSessions активные сессии пользователя, новые первыми.
func (r *UserRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions := []models.Session{}
	if err := r.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+`
		FROM user_sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("user repository: list sessions %w", err)
	}
	return sessions, nil
}

func (r *UserRepository) DeleteSessionByID(ctx context.Context, sessionID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete session by id %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrSessionNotFound)
}
