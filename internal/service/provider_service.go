package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

type ProviderRepository interface {
	List(ctx context.Context, f models.ProviderFilter) ([]models.ServiceProvider, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error)
	Create(ctx context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error
	Update(ctx context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddEmployee(ctx context.Context, providerID uuid.UUID, user *models.User) error
	ListEmployees(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.ServiceProviderEmployee, int, error)
	TotalEarning(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error)
}

// RootServiceReader отбирает существующие корневые услуги.
type RootServiceReader interface {
	RootIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

// ProviderInput поля поставщика. User обязателен при создании.
type ProviderInput struct {
	User           UserInput
	Name           string
	CoverPhoto     *string
	Description    string
	Licence        *string
	Passport       *string
	LicenceStart   *time.Time
	LicenceEnd     *time.Time
	ResidencePhoto *string
	ContractInfo   *string
	Cities         []string
	Services       []uuid.UUID
}

type ProviderPage struct {
	Items []models.ServiceProvider `json:"results"`
	Count int                      `json:"count"`
}

type EmployeePage struct {
	Items []models.ServiceProviderEmployee `json:"results"`
	Count int                              `json:"count"`
}

// ProviderService поставщики услуг и их сотрудники.
type ProviderService struct {
	repo     ProviderRepository
	services RootServiceReader
}

func NewProviderService(repo ProviderRepository, services RootServiceReader) *ProviderService {
	return &ProviderService{repo: repo, services: services}
}

// manage разрешает доступ администратору и самому поставщику.
func (s *ProviderService) manage(ctx context.Context, actor Actor, providerID uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleServiceProvider {
		return apperror.ErrForbidden
	}
	own, err := s.repo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.ErrForbidden
		}
		return err
	}
	if own.ID != providerID {
		return apperror.ErrForbidden
	}
	return nil
}

func (s *ProviderService) List(ctx context.Context, f models.ProviderFilter) (*ProviderPage, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ServiceProvider{}
	}
	return &ProviderPage{Items: items, Count: total}, nil
}

func (s *ProviderService) Get(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error) {
	return s.repo.GetByID(ctx, id)
}

// validate проверяет поля поставщика и возвращает идентификаторы корневых услуг.
func (s *ProviderService) validate(ctx context.Context, in ProviderInput) ([]uuid.UUID, error) {
	fields := map[string]string{}
	if err := validation.ValidateName(in.Name); err != nil {
		fields["name"] = err.Error()
	}
	if err := validation.ValidateCities(in.Cities); err != nil {
		fields["cities"] = err.Error()
	}
	if in.LicenceStart != nil && in.LicenceEnd != nil && in.LicenceEnd.Before(*in.LicenceStart) {
		fields["licence_end"] = "Licence end must be after licence start."
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	if len(in.Services) == 0 {
		return nil, apperror.Field("services", "This fiels can not be blank.")
	}
	roots, err := s.services.RootIDs(ctx, in.Services)
	if err != nil {
		return nil, err
	}
	known := make(map[uuid.UUID]struct{}, len(roots))
	for _, id := range roots {
		known[id] = struct{}{}
	}
	for _, id := range in.Services {
		if _, ok := known[id]; !ok {
			return nil, apperror.Field("services", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", id))
		}
	}
	return dedupIDs(in.Services), nil
}

func (in ProviderInput) apply(p *models.ServiceProvider) {
	p.Name = strings.TrimSpace(in.Name)
	if in.CoverPhoto != nil {
		p.CoverPhoto = in.CoverPhoto
	}
	p.Description = in.Description
	p.Licence = in.Licence
	p.Passport = in.Passport
	p.LicenceStart = in.LicenceStart
	p.LicenceEnd = in.LicenceEnd
	if in.ResidencePhoto != nil {
		p.ResidencePhoto = in.ResidencePhoto
	}
	p.ContractInfo = in.ContractInfo
	p.Cities = pq.StringArray(in.Cities)
	if p.Cities == nil {
		p.Cities = pq.StringArray{}
	}
}

// Create создаёт пользователя с ролью service-provider и поставщика.
func (s *ProviderService) Create(ctx context.Context, in ProviderInput) (*models.ServiceProvider, error) {
	serviceIDs, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	user, err := buildUser(in.User, models.RoleServiceProvider)
	if err != nil {
		return nil, err
	}

	p := &models.ServiceProvider{User: user}
	in.apply(p)
	if err := s.repo.Create(ctx, p, serviceIDs); err != nil {
		return nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"provider_id": p.ID,
			"user_id":     p.UserID,
			"services":    len(serviceIDs),
		}).Info("provider service: поставщик создан")
	}
	return s.repo.GetByID(ctx, p.ID)
}

// Update обновляет поставщика, набор услуг заменяется целиком.
func (s *ProviderService) Update(ctx context.Context, id uuid.UUID, in ProviderInput) (*models.ServiceProvider, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	serviceIDs, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	if p.User != nil {
		fields := map[string]string{}
		if in.User.Name != "" {
			if err := validation.ValidateName(in.User.Name); err != nil {
				fields["user.name"] = err.Error()
			}
			p.User.Name = strings.TrimSpace(in.User.Name)
		}
		if in.User.Email != "" {
			if err := validation.ValidateEmail(in.User.Email); err != nil {
				fields["user.email"] = err.Error()
			}
			p.User.Email = strings.ToLower(strings.TrimSpace(in.User.Email))
		}
		if in.User.Phone != nil {
			if err := validation.ValidatePhone(in.User.Phone); err != nil {
				fields["user.phone"] = err.Error()
			}
			p.User.Phone = in.User.Phone
		}
		if len(fields) > 0 {
			return nil, apperror.Fields(fields)
		}
	}

	in.apply(p)
	if err := s.repo.Update(ctx, p, serviceIDs); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProviderService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// AddEmployee создаёт пользователя-сотрудника поставщика.
func (s *ProviderService) AddEmployee(ctx context.Context, actor Actor, providerID uuid.UUID, in UserInput) (*models.User, error) {
	if err := s.manage(ctx, actor, providerID); err != nil {
		return nil, err
	}
	user, err := buildUser(in, models.RoleServiceProviderEmployee)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddEmployee(ctx, providerID, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProviderService) Employees(ctx context.Context, actor Actor, providerID uuid.UUID, limit, offset int) (*EmployeePage, error) {
	if err := s.manage(ctx, actor, providerID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, providerID); err != nil {
		return nil, err
	}
	items, total, err := s.repo.ListEmployees(ctx, providerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ServiceProviderEmployee{}
	}
	return &EmployeePage{Items: items, Count: total}, nil
}

// TotalEarning сумма цен заявок, назначенных поставщику.
func (s *ProviderService) TotalEarning(ctx context.Context, actor Actor, providerID uuid.UUID) (decimal.Decimal, error) {
	if err := s.manage(ctx, actor, providerID); err != nil {
		return decimal.Zero, err
	}
	if _, err := s.repo.GetByID(ctx, providerID); err != nil {
		return decimal.Zero, err
	}
	return s.repo.TotalEarning(ctx, providerID)
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
