package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type memoryServices struct {
	items     map[uuid.UUID]*models.Service
	listCalls int
}

func newMemoryServices() *memoryServices {
	return &memoryServices{items: map[uuid.UUID]*models.Service{}}
}

func (m *memoryServices) List(_ context.Context, f models.ServiceFilter) ([]models.Service, int, error) {
	m.listCalls++
	var out []models.Service
	for _, s := range m.items {
		if f.ActiveOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *memoryServices) Dropdown(_ context.Context, _ bool) ([]models.DropdownItem, error) {
	return nil, nil
}

func (m *memoryServices) GetByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperror.ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryServices) Create(_ context.Context, s *models.Service) error {
	s.ID = uuid.New()
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *memoryServices) Update(_ context.Context, s *models.Service) error {
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *memoryServices) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

type memoryFeatures struct {
	items map[uuid.UUID]*models.Feature
}

func (m *memoryFeatures) List(_ context.Context, _ models.FeatureFilter) ([]models.Feature, int, error) {
	return nil, 0, nil
}

func (m *memoryFeatures) GetByID(_ context.Context, id uuid.UUID, _ bool) (*models.Feature, error) {
	f, ok := m.items[id]
	if !ok {
		return nil, apperror.ErrFeatureNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memoryFeatures) Create(_ context.Context, f *models.Feature) error {
	f.ID = uuid.New()
	cp := *f
	m.items[f.ID] = &cp
	return nil
}

func (m *memoryFeatures) Update(_ context.Context, f *models.Feature) error {
	cp := *f
	m.items[f.ID] = &cp
	return nil
}

func (m *memoryFeatures) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *memoryFeatures) ToggleActive(_ context.Context, id uuid.UUID) error {
	f, ok := m.items[id]
	if !ok {
		return apperror.ErrFeatureNotFound
	}
	f.IsActive = !f.IsActive
	return nil
}

func (m *memoryFeatures) ToggleFieldActive(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

func (m *memoryFeatures) Dropdown(_ context.Context, _ bool) ([]models.DropdownItem, error) {
	return nil, nil
}

func newFeatureFixture(t *testing.T) (*FeatureService, *memoryFeatures, uuid.UUID) {
	t.Helper()
	services := newMemoryServices()
	svc := &models.Service{Name: "Cleaning", IsActive: true}
	require.NoError(t, services.Create(context.Background(), svc))

	features := &memoryFeatures{items: map[uuid.UUID]*models.Feature{}}
	return NewFeatureService(features, services, nil, time.Minute), features, svc.ID
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Fields
}

func TestFeatureService_CreateRequiresPriceUnitField(t *testing.T) {
	s, _, serviceID := newFeatureFixture(t)

	_, err := s.Create(context.Background(), FeatureInput{
		ServiceID: serviceID,
		Name:      "Deep cleaning",
		Fields: []FieldInput{
			{FieldName: "notes", Label: "Notes", FieldType: "TextField"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "Please mark one or more field as price unit field.", fieldErrors(t, err)["is_price_unit_field"])
}

func TestFeatureService_CreateValidatesService(t *testing.T) {
	s, _, _ := newFeatureFixture(t)

	_, err := s.Create(context.Background(), FeatureInput{
		ServiceID: uuid.New(),
		Name:      "",
		Fields:    nil,
	})
	require.Error(t, err)
	fields := fieldErrors(t, err)
	assert.Equal(t, "This field is required.", fields["name"])
	assert.Contains(t, fields["service"], "object does not exist.")
	assert.Equal(t, "This field is required.", fields["service_fields"])
}

func TestFeatureService_CreateAndToggle(t *testing.T) {
	s, features, serviceID := newFeatureFixture(t)
	ctx := context.Background()

	f, err := s.Create(ctx, FeatureInput{
		ServiceID: serviceID,
		Name:      "  Hourly cleaning ",
		Fields: []FieldInput{
			{FieldName: "hours", Label: "Hours", FieldType: "IntegerField", IsPriceUnitField: true, PricePerUnit: decPtr("35")},
			{FieldName: "supplies", Label: "Bring supplies", FieldType: "BooleanField", IsPriceUnitField: true, PricePerUnit: decPtr("20")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hourly cleaning", f.Name)
	assert.True(t, f.IsActive)
	assert.NotNil(t, f.Cities)
	require.Len(t, f.ServiceFields, 2)
	assert.True(t, f.ServiceFields[0].IsRequired)

	require.NoError(t, s.ToggleActive(ctx, f.ID))
	assert.False(t, features.items[f.ID].IsActive)

	// неактивный вариант скрыт от клиентов, но виден администратору
	_, err = s.Get(ctx, false, f.ID)
	assert.ErrorIs(t, err, apperror.ErrFeatureNotFound)
	got, err := s.Get(ctx, true, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
}

func TestFeatureService_FieldTypes(t *testing.T) {
	s, _, _ := newFeatureFixture(t)
	types := s.FieldTypes()
	assert.Len(t, types, 10)
	assert.Contains(t, types, "DurationField")
}

func TestCatalogService_ListIsCachedUntilWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newMemoryServices()
	s := NewCatalogService(repo, NewCacheService(ctx), time.Minute)

	_, err := s.Create(ctx, ServiceInput{Name: "Plumbing"})
	require.NoError(t, err)

	page, err := s.List(ctx, false, models.ServiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	_, err = s.List(ctx, false, models.ServiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	_, err = s.Create(ctx, ServiceInput{Name: "Electrical"})
	require.NoError(t, err)
	page, err = s.List(ctx, false, models.ServiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCatalogService_ParentValidation(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogService(newMemoryServices(), nil, time.Minute)

	missing := uuid.New()
	_, err := s.Create(ctx, ServiceInput{Name: "AC repair", ParentID: &missing})
	require.Error(t, err)
	assert.Contains(t, fieldErrors(t, err)["parent"], "object does not exist.")

	root, err := s.Create(ctx, ServiceInput{Name: "Maintenance"})
	require.NoError(t, err)
	_, err = s.Update(ctx, root.ID, ServiceInput{Name: "Maintenance", ParentID: &root.ID})
	require.Error(t, err)
	assert.Equal(t, "Service can not be its own parent.", fieldErrors(t, err)["parent"])
}

func TestCatalogService_InactiveHiddenFromClients(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogService(newMemoryServices(), nil, time.Minute)
	inactive := false

	svc, err := s.Create(ctx, ServiceInput{Name: "Pest control", IsActive: &inactive})
	require.NoError(t, err)

	_, err = s.Get(ctx, false, svc.ID)
	assert.ErrorIs(t, err, apperror.ErrServiceNotFound)
	_, err = s.Get(ctx, true, svc.ID)
	assert.NoError(t, err)
}
