package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

type FeatureRepository interface {
	List(ctx context.Context, f models.FeatureFilter) ([]models.Feature, int, error)
	GetByID(ctx context.Context, id uuid.UUID, activeFieldsOnly bool) (*models.Feature, error)
	Create(ctx context.Context, f *models.Feature) error
	Update(ctx context.Context, f *models.Feature) error
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleActive(ctx context.Context, id uuid.UUID) error
	ToggleFieldActive(ctx context.Context, featureID, fieldID uuid.UUID) error
	Dropdown(ctx context.Context, activeOnly bool) ([]models.DropdownItem, error)
}

// FieldInput описание динамического поля в запросе.
type FieldInput struct {
	FieldName        string
	Label            string
	FieldType        string
	IsPriceUnitField bool
	PricePerUnit     *decimal.Decimal
	IsRequired       *bool
	IsActive         *bool
}

type FeatureInput struct {
	ServiceID   uuid.UUID
	Name        string
	CoverPhoto  *string
	Description string
	IsActive    *bool
	Cities      []string
	Fields      []FieldInput
}

type FeaturePage struct {
	Items []models.Feature `json:"results"`
	Count int              `json:"count"`
}

// FeatureService варианты услуг с динамическими полями.
type FeatureService struct {
	repo     FeatureRepository
	services ServiceRepository
	cache    Cache
	ttl      time.Duration
}

func NewFeatureService(repo FeatureRepository, services ServiceRepository, cache Cache, ttl time.Duration) *FeatureService {
	return &FeatureService{repo: repo, services: services, cache: cache, ttl: ttl}
}

// FieldTypes список поддерживаемых типов полей.
func (s *FeatureService) FieldTypes() []string {
	types := valueobject.FieldTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func (s *FeatureService) List(ctx context.Context, isAdmin bool, f models.FeatureFilter) (*FeaturePage, error) {
	f.ActiveOnly = !isAdmin
	key := fmt.Sprintf("%slist:%t:%s:%s:%s:%d:%d",
		CachePrefixFeatures, f.ActiveOnly, f.Query, uuidKey(f.ServiceID), f.City, f.Limit, f.Offset)

	return cached(ctx, s.cache, key, s.ttl, func() (*FeaturePage, error) {
		items, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.Feature{}
		}
		return &FeaturePage{Items: items, Count: total}, nil
	})
}

// Get возвращает вариант услуги. Для не администраторов только активный и с активными полями.
func (s *FeatureService) Get(ctx context.Context, isAdmin bool, id uuid.UUID) (*models.Feature, error) {
	f, err := s.repo.GetByID(ctx, id, !isAdmin)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !f.IsActive {
		return nil, apperror.ErrFeatureNotFound
	}
	return f, nil
}

func (s *FeatureService) Dropdown(ctx context.Context, isAdmin bool) ([]models.DropdownItem, error) {
	key := fmt.Sprintf("%sdropdown:%t", CachePrefixFeatures, !isAdmin)
	return cached(ctx, s.cache, key, s.ttl, func() ([]models.DropdownItem, error) {
		items, err := s.repo.Dropdown(ctx, !isAdmin)
		if items == nil {
			items = []models.DropdownItem{}
		}
		return items, err
	})
}

func (s *FeatureService) validate(ctx context.Context, in FeatureInput) ([]models.ServiceField, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "This field is required."
	}
	if in.ServiceID == uuid.Nil {
		fields["service"] = "This field is required."
	} else if _, err := s.services.GetByID(ctx, in.ServiceID); err != nil {
		if !apperror.IsNotFound(err) {
			return nil, err
		}
		fields["service"] = fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", in.ServiceID)
	}
	if err := validation.ValidateCities(in.Cities); err != nil {
		fields["cities"] = err.Error()
	}
	if len(in.Fields) == 0 {
		fields["service_fields"] = "This field is required."
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	out := make([]models.ServiceField, len(in.Fields))
	check := make([]entity.ServiceField, len(in.Fields))
	for i, fi := range in.Fields {
		out[i] = models.ServiceField{
			FieldName:        strings.TrimSpace(fi.FieldName),
			Label:            strings.TrimSpace(fi.Label),
			FieldType:        fi.FieldType,
			IsPriceUnitField: fi.IsPriceUnitField,
			PricePerUnit:     fi.PricePerUnit,
			IsRequired:       fi.IsRequired == nil || *fi.IsRequired,
			IsActive:         fi.IsActive == nil || *fi.IsActive,
		}
		check[i] = entity.ServiceField{
			Name:         out[i].FieldName,
			Label:        out[i].Label,
			Type:         valueobject.FieldType(out[i].FieldType),
			IsPriceUnit:  out[i].IsPriceUnitField,
			PricePerUnit: out[i].PricePerUnit,
			IsRequired:   out[i].IsRequired,
			IsActive:     out[i].IsActive,
		}
	}
	if err := entity.ValidateFields(check); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FeatureService) Create(ctx context.Context, in FeatureInput) (*models.Feature, error) {
	serviceFields, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	f := &models.Feature{
		ServiceID:     in.ServiceID,
		Name:          strings.TrimSpace(in.Name),
		CoverPhoto:    in.CoverPhoto,
		Description:   in.Description,
		IsActive:      in.IsActive == nil || *in.IsActive,
		Cities:        pq.StringArray(in.Cities),
		ServiceFields: serviceFields,
	}
	if f.Cities == nil {
		f.Cities = pq.StringArray{}
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, CachePrefixFeatures, CachePrefixServices)
	return s.repo.GetByID(ctx, f.ID, false)
}

// Update обновляет вариант услуги. Существующие поля меняют только label и is_active.
func (s *FeatureService) Update(ctx context.Context, id uuid.UUID, in FeatureInput) (*models.Feature, error) {
	current, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	serviceFields, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	current.ServiceID = in.ServiceID
	current.Name = strings.TrimSpace(in.Name)
	if in.CoverPhoto != nil {
		current.CoverPhoto = in.CoverPhoto
	}
	current.Description = in.Description
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	current.Cities = pq.StringArray(in.Cities)
	if current.Cities == nil {
		current.Cities = pq.StringArray{}
	}
	current.ServiceFields = serviceFields

	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, CachePrefixFeatures, CachePrefixServices)
	return s.repo.GetByID(ctx, id, false)
}

func (s *FeatureService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, CachePrefixFeatures, CachePrefixServices)
	return nil
}

// ToggleActive включает или выключает вариант услуги.
func (s *FeatureService) ToggleActive(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.ToggleActive(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, CachePrefixFeatures, CachePrefixServices)
	return nil
}

// ToggleFieldActive включает или выключает поле варианта услуги.
func (s *FeatureService) ToggleFieldActive(ctx context.Context, featureID, fieldID uuid.UUID) error {
	if err := s.repo.ToggleFieldActive(ctx, featureID, fieldID); err != nil {
		return err
	}
	invalidate(ctx, s.cache, CachePrefixFeatures)
	return nil
}
