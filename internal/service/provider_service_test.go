package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type memoryProviders struct {
	items     map[uuid.UUID]*models.ServiceProvider
	services  map[uuid.UUID][]uuid.UUID
	employees map[uuid.UUID][]models.ServiceProviderEmployee
	earning   decimal.Decimal
}

func newMemoryProviders() *memoryProviders {
	return &memoryProviders{
		items:     map[uuid.UUID]*models.ServiceProvider{},
		services:  map[uuid.UUID][]uuid.UUID{},
		employees: map[uuid.UUID][]models.ServiceProviderEmployee{},
	}
}

func (m *memoryProviders) List(_ context.Context, _ models.ProviderFilter) ([]models.ServiceProvider, int, error) {
	var out []models.ServiceProvider
	for _, p := range m.items {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *memoryProviders) GetByID(_ context.Context, id uuid.UUID) (*models.ServiceProvider, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperror.ErrProviderNotFound
	}
	return p, nil
}

func (m *memoryProviders) GetByUserID(_ context.Context, userID uuid.UUID) (*models.ServiceProvider, error) {
	for _, p := range m.items {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperror.ErrProviderNotFound
}

func (m *memoryProviders) Create(_ context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error {
	p.ID = uuid.New()
	p.User.ID = uuid.New()
	p.UserID = p.User.ID
	m.items[p.ID] = p
	m.services[p.ID] = serviceIDs
	return nil
}

func (m *memoryProviders) Update(_ context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error {
	m.items[p.ID] = p
	m.services[p.ID] = serviceIDs
	return nil
}

func (m *memoryProviders) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *memoryProviders) AddEmployee(_ context.Context, providerID uuid.UUID, user *models.User) error {
	user.ID = uuid.New()
	m.employees[providerID] = append(m.employees[providerID], models.ServiceProviderEmployee{
		ID:         uuid.New(),
		ProviderID: providerID,
		EmployeeID: user.ID,
		IsActive:   true,
	})
	return nil
}

func (m *memoryProviders) ListEmployees(_ context.Context, providerID uuid.UUID, _, _ int) ([]models.ServiceProviderEmployee, int, error) {
	return m.employees[providerID], len(m.employees[providerID]), nil
}

func (m *memoryProviders) TotalEarning(_ context.Context, _ uuid.UUID) (decimal.Decimal, error) {
	return m.earning, nil
}

type stubRoots []uuid.UUID

func (s stubRoots) RootIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		for _, root := range s {
			if root == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func providerInput(services ...uuid.UUID) ProviderInput {
	return ProviderInput{
		User: UserInput{
			Email:    "Cleaner@Example.com",
			Password: "Secret123",
			Name:     "Ahmed",
		},
		Name:     "Sparkle Cleaning",
		Cities:   []string{models.CityDubai},
		Services: services,
	}
}

func TestProviderService_Create(t *testing.T) {
	repo := newMemoryProviders()
	root := uuid.New()
	svc := NewProviderService(repo, stubRoots{root})

	p, err := svc.Create(context.Background(), providerInput(root, root))
	require.NoError(t, err)
	assert.Equal(t, "Sparkle Cleaning", p.Name)
	assert.Equal(t, models.RoleServiceProvider, p.User.Role)
	assert.Equal(t, "cleaner@example.com", p.User.Email)
	assert.Equal(t, []uuid.UUID{root}, repo.services[p.ID])
}

func TestProviderService_ServicesValidation(t *testing.T) {
	root := uuid.New()
	svc := NewProviderService(newMemoryProviders(), stubRoots{root})

	_, err := svc.Create(context.Background(), providerInput())
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "This fiels can not be blank.", appErr.Fields["services"])

	child := uuid.New()
	_, err = svc.Create(context.Background(), providerInput(root, child))
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields["services"], child.String())
}

func TestProviderService_UpdateReplacesServices(t *testing.T) {
	repo := newMemoryProviders()
	first, second := uuid.New(), uuid.New()
	svc := NewProviderService(repo, stubRoots{first, second})

	p, err := svc.Create(context.Background(), providerInput(first))
	require.NoError(t, err)

	in := providerInput(second)
	in.User = UserInput{Name: "Omar"}
	updated, err := svc.Update(context.Background(), p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Omar", updated.User.Name)
	assert.Equal(t, []uuid.UUID{second}, repo.services[p.ID])
}

func TestProviderService_EmployeesAccess(t *testing.T) {
	repo := newMemoryProviders()
	root := uuid.New()
	svc := NewProviderService(repo, stubRoots{root})
	ctx := context.Background()

	p, err := svc.Create(ctx, providerInput(root))
	require.NoError(t, err)
	other, err := svc.Create(ctx, func() ProviderInput {
		in := providerInput(root)
		in.User.Email = "other@example.com"
		return in
	}())
	require.NoError(t, err)

	owner := Actor{UserID: p.UserID, Role: models.RoleServiceProvider}
	employee := UserInput{Email: "worker@example.com", Password: "Secret123", Name: "Worker"}

	user, err := svc.AddEmployee(ctx, owner, p.ID, employee)
	require.NoError(t, err)
	assert.Equal(t, models.RoleServiceProviderEmployee, user.Role)

	page, err := svc.Employees(ctx, owner, p.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	stranger := Actor{UserID: other.UserID, Role: models.RoleServiceProvider}
	_, err = svc.Employees(ctx, stranger, p.ID, 20, 0)
	assert.True(t, apperror.IsForbidden(err))

	client := Actor{UserID: uuid.New(), Role: models.RoleClient}
	_, err = svc.TotalEarning(ctx, client, p.ID)
	assert.True(t, apperror.IsForbidden(err))

	repo.earning = decimal.NewFromInt(350)
	total, err := svc.TotalEarning(ctx, Actor{UserID: uuid.New(), Role: models.RoleAdmin}, p.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(350)))
}
