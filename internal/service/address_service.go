package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

// AddressRepository адресная книга и токены устройств.
type AddressRepository interface {
	Create(ctx context.Context, a *models.Address) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	SaveDeviceToken(ctx context.Context, t *models.DeviceToken) error
}

// AddressInput поля адреса.
type AddressInput struct {
	Label     string
	City      string
	Area      *string
	Street    *string
	Building  *string
	Apartment *string
	Latitude  *float64
	Longitude *float64
}

type AddressService struct {
	repo AddressRepository
}

func NewAddressService(repo AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	out, err := s.repo.ListByUser(ctx, userID)
	if out == nil {
		out = []models.Address{}
	}
	return out, err
}

func (s *AddressService) Create(ctx context.Context, userID uuid.UUID, in AddressInput) (*models.Address, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Label) == "" {
		fields["label"] = "This field is required."
	} else if err := validation.ValidateLength("label", in.Label, 0, validation.MaxAddressLabelLength); err != nil {
		fields["label"] = err.Error()
	}
	if err := validation.ValidateCity(in.City); err != nil {
		fields["city"] = err.Error()
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		fields["latitude"] = "Latitude and longitude must be provided together."
	} else if in.Latitude != nil && !validCoordinates(*in.Latitude, *in.Longitude) {
		fields["latitude"] = "Invalid coordinates."
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	a := &models.Address{
		UserID:    userID,
		Label:     strings.TrimSpace(in.Label),
		City:      in.City,
		Area:      in.Area,
		Street:    in.Street,
		Building:  in.Building,
		Apartment: in.Apartment,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AddressService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, userID)
}

// RegisterDevice привязывает push токен устройства к пользователю.
func (s *AddressService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, deviceType string) (*models.DeviceToken, error) {
	fields := map[string]string{}
	token = strings.TrimSpace(token)
	if token == "" {
		fields["token"] = "This field is required."
	}
	if _, ok := models.ValidDeviceTypes[deviceType]; !ok {
		fields["device_type"] = fmt.Sprintf("\"%s\" is not a valid choice.", deviceType)
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	t := &models.DeviceToken{UserID: userID, Token: token, DeviceType: deviceType}
	if err := s.repo.SaveDeviceToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
