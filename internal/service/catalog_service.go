package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

// ServiceRepository хранилище дерева услуг.
type ServiceRepository interface {
	List(ctx context.Context, f models.ServiceFilter) ([]models.Service, int, error)
	Dropdown(ctx context.Context, activeOnly bool) ([]models.DropdownItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	Create(ctx context.Context, s *models.Service) error
	Update(ctx context.Context, s *models.Service) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ServiceInput поля услуги при создании и обновлении.
type ServiceInput struct {
	Name        string
	ParentID    *uuid.UUID
	CoverPhoto  *string
	Description string
	IsActive    *bool
}

// ServicePage страница списка услуг.
type ServicePage struct {
	Items []models.Service `json:"results"`
	Count int              `json:"count"`
}

// CatalogService каталог услуг. Не администраторы видят только активные услуги.
type CatalogService struct {
	repo  ServiceRepository
	cache Cache
	ttl   time.Duration
}

func NewCatalogService(repo ServiceRepository, cache Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, ttl: ttl}
}

func (s *CatalogService) List(ctx context.Context, isAdmin bool, f models.ServiceFilter) (*ServicePage, error) {
	f.ActiveOnly = !isAdmin
	key := fmt.Sprintf("%slist:%t:%s:%s:%t:%s:%d:%d",
		CachePrefixServices, f.ActiveOnly, f.Query, uuidKey(f.ParentID), f.RootsOnly, f.City, f.Limit, f.Offset)

	return cached(ctx, s.cache, key, s.ttl, func() (*ServicePage, error) {
		items, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.Service{}
		}
		return &ServicePage{Items: items, Count: total}, nil
	})
}

// Dropdown корневые услуги {id, name}.
func (s *CatalogService) Dropdown(ctx context.Context, isAdmin bool) ([]models.DropdownItem, error) {
	key := fmt.Sprintf("%sdropdown:%t", CachePrefixServices, !isAdmin)
	return cached(ctx, s.cache, key, s.ttl, func() ([]models.DropdownItem, error) {
		items, err := s.repo.Dropdown(ctx, !isAdmin)
		if items == nil {
			items = []models.DropdownItem{}
		}
		return items, err
	})
}

func (s *CatalogService) Get(ctx context.Context, isAdmin bool, id uuid.UUID) (*models.Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !svc.IsActive {
		return nil, apperror.ErrServiceNotFound
	}
	return svc, nil
}

func (s *CatalogService) validate(ctx context.Context, id uuid.UUID, in ServiceInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "This field is required."
	} else if err := validation.ValidateLength("name", in.Name, 0, validation.MaxServiceNameLength); err != nil {
		fields["name"] = err.Error()
	}
	if in.ParentID != nil {
		if *in.ParentID == id {
			fields["parent"] = "Service can not be its own parent."
		} else if _, err := s.repo.GetByID(ctx, *in.ParentID); err != nil {
			if !apperror.IsNotFound(err) {
				return err
			}
			fields["parent"] = fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", in.ParentID.String())
		}
	}
	if len(fields) > 0 {
		return apperror.Fields(fields)
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, in ServiceInput) (*models.Service, error) {
	if err := s.validate(ctx, uuid.Nil, in); err != nil {
		return nil, err
	}
	svc := &models.Service{
		Name:        strings.TrimSpace(in.Name),
		ParentID:    in.ParentID,
		CoverPhoto:  in.CoverPhoto,
		Description: in.Description,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, CachePrefixServices)
	return svc, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, in ServiceInput) (*models.Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, id, in); err != nil {
		return nil, err
	}
	svc.Name = strings.TrimSpace(in.Name)
	svc.ParentID = in.ParentID
	if in.CoverPhoto != nil {
		svc.CoverPhoto = in.CoverPhoto
	}
	svc.Description = in.Description
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, CachePrefixServices, CachePrefixFeatures)
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, CachePrefixServices, CachePrefixFeatures)
	return nil
}

func uuidKey(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}
