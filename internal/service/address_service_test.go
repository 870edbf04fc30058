package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type memoryAddresses struct {
	items  map[uuid.UUID]*models.Address
	tokens map[string]*models.DeviceToken
}

func newMemoryAddresses() *memoryAddresses {
	return &memoryAddresses{
		items:  map[uuid.UUID]*models.Address{},
		tokens: map[string]*models.DeviceToken{},
	}
}

func (m *memoryAddresses) Create(_ context.Context, a *models.Address) error {
	a.ID = uuid.New()
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memoryAddresses) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	for _, a := range m.items {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memoryAddresses) Delete(_ context.Context, id, userID uuid.UUID) error {
	a, ok := m.items[id]
	if !ok || a.UserID != userID {
		return apperror.ErrAddressNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryAddresses) SaveDeviceToken(_ context.Context, t *models.DeviceToken) error {
	t.ID = uuid.New()
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func TestAddressService_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAddresses()
	s := NewAddressService(repo)
	owner, stranger := uuid.New(), uuid.New()

	empty, err := s.List(ctx, owner)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	lat, lng := 25.2048, 55.2708
	a, err := s.Create(ctx, owner, AddressInput{Label: "  Home ", City: models.CityDubai, Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, "Home", a.Label)
	assert.Equal(t, owner, a.UserID)

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	others, err := s.List(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, others)

	// чужой адрес удалить нельзя
	err = s.Delete(ctx, stranger, a.ID)
	assert.ErrorIs(t, err, apperror.ErrAddressNotFound)
	assert.Len(t, repo.items, 1)

	require.NoError(t, s.Delete(ctx, owner, a.ID))
	assert.Empty(t, repo.items)
}

func TestAddressService_CreateValidation(t *testing.T) {
	lat, badLng := 25.2, 200.0

	tests := []struct {
		name  string
		in    AddressInput
		field string
		msg   string
	}{
		{"missing label", AddressInput{Label: " ", City: models.CityDubai}, "label", "This field is required."},
		{"unknown city", AddressInput{Label: "Office", City: "Paris"}, "city", `"Paris" is not a valid choice.`},
		{"latitude without longitude", AddressInput{Label: "Office", City: models.CityDubai, Latitude: &lat}, "latitude", "Latitude and longitude must be provided together."},
		{"coordinates out of range", AddressInput{Label: "Office", City: models.CityDubai, Latitude: &lat, Longitude: &badLng}, "latitude", "Invalid coordinates."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryAddresses()
			_, err := NewAddressService(repo).Create(context.Background(), uuid.New(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.msg, fieldErrors(t, err)[tt.field])
			assert.Empty(t, repo.items)
		})
	}
}

func TestAddressService_RegisterDevice(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAddresses()
	s := NewAddressService(repo)
	userID := uuid.New()

	tok, err := s.RegisterDevice(ctx, userID, " fcm-token ", models.DeviceTypeAndroid)
	require.NoError(t, err)
	assert.Equal(t, "fcm-token", tok.Token)
	require.Contains(t, repo.tokens, "fcm-token")
	assert.Equal(t, userID, repo.tokens["fcm-token"].UserID)

	_, err = s.RegisterDevice(ctx, userID, "", "blackberry")
	require.Error(t, err)
	fields := fieldErrors(t, err)
	assert.Equal(t, "This field is required.", fields["token"])
	assert.Equal(t, `"blackberry" is not a valid choice.`, fields["device_type"])
}
