package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

const (
	// точность хранимого geohash, около 5 метров
	geohashPrecision = 9
	// ячейка фильтра near, около 5 километров
	nearPrecision = 5
)

// CategoryRepository дерево категорий объявлений.
type CategoryRepository interface {
	ListRootCategories(ctx context.Context) ([]models.Category, error)
	ListSubcategories(ctx context.Context, parentID uuid.UUID) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// AdvertisementRepository хранилище объявлений.
type AdvertisementRepository interface {
	List(ctx context.Context, f models.AdvertisementFilter) ([]models.Advertisement, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error)
	Create(ctx context.Context, ad *models.Advertisement) error
	Update(ctx context.Context, ad *models.Advertisement) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DetailsValidator проверяет детали объявления по виду категории.
type DetailsValidator interface {
	Validate(kind string, details []byte) error
	Has(kind string) bool
	Kinds() []string
}

// CategoryInput поля категории.
type CategoryInput struct {
	Name     string
	ParentID *uuid.UUID
	Keyword  string
}

// AdvertisementInput поля объявления.
type AdvertisementInput struct {
	CategoryID   uuid.UUID
	Title        string
	Description  string
	Price        decimal.Decimal
	Location     string
	Availability *bool
	Details      json.RawMessage
	Latitude     *float64
	Longitude    *float64
}

// AdvertisementPage страница объявлений.
type AdvertisementPage struct {
	Items []models.Advertisement `json:"results"`
	Count int                    `json:"count"`
}

// Actor пользователь, выполняющий действие.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// AdvertiseService категории и объявления.
type AdvertiseService struct {
	categories CategoryRepository
	ads        AdvertisementRepository
	details    DetailsValidator
}

func NewAdvertiseService(categories CategoryRepository, ads AdvertisementRepository, details DetailsValidator) *AdvertiseService {
	return &AdvertiseService{categories: categories, ads: ads, details: details}
}

// Categories корневые категории или дети parentID.
func (s *AdvertiseService) Categories(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	var (
		out []models.Category
		err error
	)
	if parentID != nil {
		out, err = s.categories.ListSubcategories(ctx, *parentID)
	} else {
		out, err = s.categories.ListRootCategories(ctx)
	}
	if out == nil {
		out = []models.Category{}
	}
	return out, err
}

func (s *AdvertiseService) Category(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.categories.GetCategoryByID(ctx, id)
}

func (s *AdvertiseService) validateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "This field is required."
	} else if err := validation.ValidateLength("name", in.Name, 0, validation.MaxNameLength); err != nil {
		fields["name"] = err.Error()
	}
	if in.Keyword != "" && in.Keyword != models.CategoryKeywordNone && !s.details.Has(in.Keyword) {
		fields["keyword"] = fmt.Sprintf("\"%s\" is not a valid choice.", in.Keyword)
	}
	if in.ParentID != nil {
		if *in.ParentID == id {
			fields["parent"] = "Category can not be its own parent."
		} else if _, err := s.categories.GetCategoryByID(ctx, *in.ParentID); err != nil {
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

func categoryKeyword(k string) string {
	if k == "" {
		return models.CategoryKeywordNone
	}
	return k
}

func (s *AdvertiseService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	if err := s.validateCategory(ctx, uuid.Nil, in); err != nil {
		return nil, err
	}
	c := &models.Category{
		Name:     strings.TrimSpace(in.Name),
		ParentID: in.ParentID,
		Keyword:  categoryKeyword(in.Keyword),
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *AdvertiseService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateCategory(ctx, id, in); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.ParentID = in.ParentID
	c.Keyword = categoryKeyword(in.Keyword)
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *AdvertiseService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.DeleteCategory(ctx, id)
}

// Kinds виды объявлений, для которых есть форма.
func (s *AdvertiseService) Kinds() []string {
	return s.details.Kinds()
}

// ParseNear разбирает "lat,lng" в префикс geohash ячейки поиска.
func ParseNear(value string) (string, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return "", apperror.Field("near", "Expected \"lat,lng\".")
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil || !validCoordinates(lat, lng) {
		return "", apperror.Field("near", "Expected \"lat,lng\".")
	}
	return geohash.EncodeWithPrecision(lat, lng, nearPrecision), nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func (s *AdvertiseService) List(ctx context.Context, f models.AdvertisementFilter) (*AdvertisementPage, error) {
	items, total, err := s.ads.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Advertisement{}
	}
	return &AdvertisementPage{Items: items, Count: total}, nil
}

func (s *AdvertiseService) Get(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	return s.ads.GetByID(ctx, id)
}

// validateAd проверяет поля объявления и возвращает его категорию.
func (s *AdvertiseService) validateAd(ctx context.Context, in AdvertisementInput) (*models.Category, error) {
	fields := map[string]string{}
	if err := validation.ValidateAdvertTitle(in.Title); err != nil {
		fields["title"] = err.Error()
	}
	if err := validation.ValidateDescription("description", in.Description, validation.MaxAdvertDescription); err != nil {
		fields["description"] = err.Error()
	}
	if err := validation.ValidatePrice(in.Price); err != nil {
		fields["price"] = err.Error()
	}
	if err := validation.ValidateLength("location", in.Location, 0, validation.MaxLocationLength); err != nil {
		fields["location"] = err.Error()
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		fields["latitude"] = "Latitude and longitude must be provided together."
	} else if in.Latitude != nil && !validCoordinates(*in.Latitude, *in.Longitude) {
		fields["latitude"] = "Invalid coordinates."
	}

	category, err := s.categories.GetCategoryByID(ctx, in.CategoryID)
	switch {
	case apperror.IsNotFound(err):
		fields["category"] = fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", in.CategoryID.String())
	case err != nil:
		return nil, err
	case category.Keyword == models.CategoryKeywordNone:
		fields["category"] = "Advertisements can not be posted to a grouping category."
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	if err := s.details.Validate(category.Keyword, in.Details); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *AdvertiseService) apply(ad *models.Advertisement, category *models.Category, in AdvertisementInput) {
	ad.CategoryID = &category.ID
	ad.ContentType = category.Keyword
	ad.Title = strings.TrimSpace(in.Title)
	ad.Description = strings.TrimSpace(in.Description)
	ad.Price = in.Price
	ad.Location = strings.TrimSpace(in.Location)
	if in.Availability != nil {
		ad.Availability = *in.Availability
	}
	ad.Details = in.Details
	if len(ad.Details) == 0 {
		ad.Details = json.RawMessage(`{}`)
	}
	ad.Latitude, ad.Longitude, ad.Geohash = in.Latitude, in.Longitude, nil
	if in.Latitude != nil {
		h := geohash.EncodeWithPrecision(*in.Latitude, *in.Longitude, geohashPrecision)
		ad.Geohash = &h
	}
}

func (s *AdvertiseService) Create(ctx context.Context, actor Actor, in AdvertisementInput) (*models.Advertisement, error) {
	category, err := s.validateAd(ctx, in)
	if err != nil {
		return nil, err
	}
	ad := &models.Advertisement{UserID: &actor.UserID, Availability: true}
	s.apply(ad, category, in)
	if err := s.ads.Create(ctx, ad); err != nil {
		return nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"advertisement_id": ad.ID,
			"content_type":     ad.ContentType,
			"user_id":          actor.UserID,
		}).Info("Объявление создано")
	}
	return ad, nil
}

// owned возвращает объявление, если актор его владелец или администратор.
func (s *AdvertiseService) owned(ctx context.Context, id uuid.UUID, actor Actor) (*models.Advertisement, error) {
	ad, err := s.ads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || (ad.UserID != nil && *ad.UserID == actor.UserID) {
		return ad, nil
	}
	return nil, apperror.ErrForbidden
}

func (s *AdvertiseService) Update(ctx context.Context, id uuid.UUID, actor Actor, in AdvertisementInput) (*models.Advertisement, error) {
	ad, err := s.owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	category, err := s.validateAd(ctx, in)
	if err != nil {
		return nil, err
	}
	s.apply(ad, category, in)
	if err := s.ads.Update(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

func (s *AdvertiseService) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	if _, err := s.owned(ctx, id, actor); err != nil {
		return err
	}
	return s.ads.Delete(ctx, id)
}
