package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type memoryCatalog struct {
	categories map[uuid.UUID]*models.Category
	ads        map[uuid.UUID]*models.Advertisement
	lastFilter models.AdvertisementFilter
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		categories: map[uuid.UUID]*models.Category{},
		ads:        map[uuid.UUID]*models.Advertisement{},
	}
}

func (m *memoryCatalog) ListRootCategories(_ context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		if c.ParentID == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryCatalog) ListSubcategories(_ context.Context, parentID uuid.UUID) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryCatalog) GetCategoryByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.ErrCategoryNotFound
	}
	return c, nil
}

func (m *memoryCatalog) CreateCategory(_ context.Context, c *models.Category) error {
	c.ID = uuid.New()
	m.categories[c.ID] = c
	return nil
}

func (m *memoryCatalog) UpdateCategory(_ context.Context, c *models.Category) error {
	m.categories[c.ID] = c
	return nil
}

func (m *memoryCatalog) DeleteCategory(_ context.Context, id uuid.UUID) error {
	delete(m.categories, id)
	return nil
}

func (m *memoryCatalog) List(_ context.Context, f models.AdvertisementFilter) ([]models.Advertisement, int, error) {
	m.lastFilter = f
	return nil, 0, nil
}

func (m *memoryCatalog) GetByID(_ context.Context, id uuid.UUID) (*models.Advertisement, error) {
	ad, ok := m.ads[id]
	if !ok {
		return nil, apperror.ErrAdvertiseNotFound
	}
	return ad, nil
}

func (m *memoryCatalog) Create(_ context.Context, ad *models.Advertisement) error {
	ad.ID = uuid.New()
	m.ads[ad.ID] = ad
	return nil
}

func (m *memoryCatalog) Update(_ context.Context, ad *models.Advertisement) error {
	m.ads[ad.ID] = ad
	return nil
}

func (m *memoryCatalog) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.ads, id)
	return nil
}

// stubDetails принимает Car с обязательным brand.
type stubDetails struct{}

func (stubDetails) Validate(kind string, details []byte) error {
	var v map[string]any
	if err := json.Unmarshal(details, &v); err != nil || v["brand"] == nil {
		return apperror.Field("details", "missing properties: 'brand'")
	}
	return nil
}

func (stubDetails) Has(kind string) bool { return kind == "Car" }

func (stubDetails) Kinds() []string { return []string{"Car"} }

func newAdvertiseFixture(t *testing.T) (*AdvertiseService, *memoryCatalog, *models.Category) {
	t.Helper()
	repo := newMemoryCatalog()
	svc := NewAdvertiseService(repo, repo, stubDetails{})

	motors, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Motors"})
	require.NoError(t, err)
	cars, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Cars", ParentID: &motors.ID, Keyword: "Car"})
	require.NoError(t, err)
	return svc, repo, cars
}

func TestAdvertiseService_CategoryKeyword(t *testing.T) {
	svc, _, _ := newAdvertiseFixture(t)

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Boats", Keyword: "Boat"})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "keyword")

	roots, err := svc.Categories(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, models.CategoryKeywordNone, roots[0].Keyword)
}

func TestAdvertiseService_CreateSetsKindAndGeohash(t *testing.T) {
	svc, _, cars := newAdvertiseFixture(t)
	lat, lng := 25.2048, 55.2708
	owner := Actor{UserID: uuid.New(), Role: models.RoleClient}

	ad, err := svc.Create(context.Background(), owner, AdvertisementInput{
		CategoryID: cars.ID,
		Title:      "Toyota Camry 2020",
		Price:      decimal.NewFromInt(55000),
		Details:    json.RawMessage(`{"brand":"Toyota"}`),
		Latitude:   &lat,
		Longitude:  &lng,
	})
	require.NoError(t, err)
	assert.Equal(t, "Car", ad.ContentType)
	assert.True(t, ad.Availability)
	require.NotNil(t, ad.Geohash)
	assert.Len(t, *ad.Geohash, geohashPrecision)

	near, err := ParseNear("25.2048,55.2708")
	require.NoError(t, err)
	assert.Equal(t, (*ad.Geohash)[:nearPrecision], near)
}

func TestAdvertiseService_CreateValidation(t *testing.T) {
	svc, repo, cars := newAdvertiseFixture(t)
	owner := Actor{UserID: uuid.New(), Role: models.RoleClient}

	var grouping uuid.UUID
	for id, c := range repo.categories {
		if c.Keyword == models.CategoryKeywordNone {
			grouping = id
		}
	}

	tests := []struct {
		name  string
		in    AdvertisementInput
		field string
	}{
		{"группирующая категория", AdvertisementInput{CategoryID: grouping, Title: "Some title"}, "category"},
		{"нет категории", AdvertisementInput{CategoryID: uuid.New(), Title: "Some title"}, "category"},
		{"отрицательная цена", AdvertisementInput{CategoryID: cars.ID, Title: "Some title", Price: decimal.NewFromInt(-1)}, "price"},
		{"детали не по схеме", AdvertisementInput{CategoryID: cars.ID, Title: "Some title", Details: json.RawMessage(`{}`)}, "details"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner, tt.in)
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestAdvertiseService_OnlyOwnerOrAdminModifies(t *testing.T) {
	svc, _, cars := newAdvertiseFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: uuid.New(), Role: models.RoleClient}
	in := AdvertisementInput{CategoryID: cars.ID, Title: "Nissan Patrol", Details: json.RawMessage(`{"brand":"Nissan"}`)}

	ad, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)

	stranger := Actor{UserID: uuid.New(), Role: models.RoleClient}
	_, err = svc.Update(ctx, ad.ID, stranger, in)
	assert.True(t, apperror.IsForbidden(err))
	assert.True(t, apperror.IsForbidden(svc.Delete(ctx, ad.ID, stranger)))

	in.Title = "Nissan Patrol V8"
	updated, err := svc.Update(ctx, ad.ID, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "Nissan Patrol V8", updated.Title)

	require.NoError(t, svc.Delete(ctx, ad.ID, Actor{UserID: uuid.New(), Role: models.RoleAdmin}))
	_, err = svc.Get(ctx, ad.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestParseNear_Invalid(t *testing.T) {
	for _, v := range []string{"", "25.2", "abc,55", "91,10"} {
		_, err := ParseNear(v)
		assert.True(t, apperror.IsValidation(err), v)
	}
}
