package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, ok := m.sessions[refreshToken]; !ok {
		return apperror.ErrSessionNotFound
	}
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (m *mockAuthRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	for token, s := range m.sessions {
		if s.ID == sessionID && s.UserID == userID {
			delete(m.sessions, token)
			return nil
		}
	}
	return apperror.ErrSessionNotFound
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		UserInput: UserInput{
			Email:    "Test@example.com",
			Password: "Password123",
			Name:     "Test User",
		},
	}, map[string]string{"ip": "127.0.0.1"})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Role != models.RoleClient {
		t.Fatalf("по умолчанию ожидалась роль client, получили %s", res.User.Role)
	}
	if res.User.Email != "test@example.com" {
		t.Fatalf("email должен быть в нижнем регистре, получили %s", res.User.Email)
	}

	if len(repo.sessions) != 1 {
		t.Fatalf("ожидалась одна сессия, получили %d", len(repo.sessions))
	}

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "test@example.com",
		Password: "Password123",
	}, nil)
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if loginRes.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}
	if repo.usersByID[res.User.ID].LastLoginAt == nil {
		t.Fatalf("last_login_at должен обновиться")
	}
}

func TestAuthService_RegisterRejectsPrivilegedRole(t *testing.T) {
	service := NewAuthService(newMockAuthRepository(), NewTokenManager("a", "r", time.Minute, time.Hour))

	_, err := service.Register(context.Background(), RegisterInput{
		UserInput: UserInput{Email: "boss@example.com", Password: "Password123", Name: "Boss"},
		Role:      models.RoleAdmin,
	}, nil)

	appErr, ok := apperror.As(err)
	if !ok || appErr.Fields["role"] == "" {
		t.Fatalf("ожидалась ошибка поля role, получили %v", err)
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))
	in := RegisterInput{UserInput: UserInput{Email: "dup@example.com", Password: "Password123", Name: "Dup"}}

	if _, err := service.Register(context.Background(), in, nil); err != nil {
		t.Fatalf("первая регистрация: %v", err)
	}
	_, err := service.Register(context.Background(), in, nil)
	appErr, ok := apperror.As(err)
	if !ok || appErr.Fields["email"] != "user with this email already exists." {
		t.Fatalf("ожидалась ошибка дубликата email, получили %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))
	hash, _ := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash), Role: models.RoleClient, IsActive: true}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	_, err := service.Login(context.Background(), LoginInput{Email: user.Email, Password: "wrong"}, nil)
	if err != apperror.ErrInvalidCredentials {
		t.Fatalf("ожидалась ErrInvalidCredentials, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleClient,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	tokenPair, accessExp, refreshExp, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("не удалось сгенерировать токены: %v", err)
	}
	if accessExp.After(refreshExp) {
		t.Fatalf("access должен истекать раньше refresh")
	}

	repo.sessions[tokenPair.RefreshToken] = &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	newPair, err := service.Refresh(ctx, tokenPair.RefreshToken, nil)
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}

	if newPair.RefreshToken == tokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}
	if _, ok := repo.sessions[tokenPair.RefreshToken]; ok {
		t.Fatalf("старая сессия должна быть удалена")
	}

	userID, role, err := tokenManager.ParseAccess(newPair.AccessToken)
	if err != nil || userID != user.ID || role != models.RoleClient {
		t.Fatalf("access токен должен содержать пользователя и роль: %v %v %v", userID, role, err)
	}
}

func TestAuthService_EnsureAdminIsIdempotent(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	for i := 0; i < 2; i++ {
		if err := service.EnsureAdmin(context.Background(), "admin@example.com", "Password123"); err != nil {
			t.Fatalf("ensure admin: %v", err)
		}
	}
	if len(repo.usersByID) != 1 {
		t.Fatalf("ожидался один администратор, получили %d", len(repo.usersByID))
	}
	if repo.usersByEmail["admin@example.com"].Role != models.RoleAdmin {
		t.Fatalf("ожидалась роль admin")
	}
}

func TestAuthService_RefreshTokenIsSingleUse(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour))
	ctx := context.Background()

	res, err := service.Register(ctx, RegisterInput{
		UserInput: UserInput{Email: "once@example.com", Password: "Password123", Name: "Once"},
	}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.Refresh(ctx, res.TokenPair.RefreshToken, nil); err != nil {
		t.Fatalf("первый refresh: %v", err)
	}
	_, err = service.Refresh(ctx, res.TokenPair.RefreshToken, nil)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("повторный refresh должен быть отклонён, получили %v", err)
	}
}

func TestAuthService_LogoutOnlyOwnSession(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour))
	ctx := context.Background()

	res, err := service.Register(ctx, RegisterInput{
		UserInput: UserInput{Email: "leave@example.com", Password: "Password123", Name: "Leaver"},
	}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := service.Logout(ctx, uuid.New(), res.TokenPair.RefreshToken); !errors.Is(err, apperror.ErrSessionNotFound) {
		t.Fatalf("чужой токен должен давать ErrSessionNotFound, получили %v", err)
	}
	if err := service.Logout(ctx, res.User.ID, res.TokenPair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("сессия должна быть удалена")
	}
}
