package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

// FavouriteRepository избранные объявления пользователей.
type FavouriteRepository interface {
	Add(ctx context.Context, f *models.Favourite) error
	Remove(ctx context.Context, userID, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, contentType string, limit, offset int) ([]models.Favourite, int, error)
}

// AdvertisementReader чтение объявления по ID.
type AdvertisementReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error)
}

// FavouritePage страница избранного.
type FavouritePage struct {
	Items []models.Favourite `json:"results"`
	Count int                `json:"count"`
}

type FavouriteService struct {
	repo FavouriteRepository
	ads  AdvertisementReader
}

func NewFavouriteService(repo FavouriteRepository, ads AdvertisementReader) *FavouriteService {
	return &FavouriteService{repo: repo, ads: ads}
}

// Add добавляет объявление в избранное. Категория и вид берутся из объявления.
func (s *FavouriteService) Add(ctx context.Context, userID, advertisementID uuid.UUID) (*models.Favourite, error) {
	ad, err := s.ads.GetByID(ctx, advertisementID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Field("object_id", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", advertisementID.String()))
		}
		return nil, err
	}

	f := &models.Favourite{
		UserID:      userID,
		CategoryID:  ad.CategoryID,
		ContentType: ad.ContentType,
		ObjectID:    ad.ID,
	}
	if err := s.repo.Add(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FavouriteService) Remove(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Remove(ctx, userID, id)
}

func (s *FavouriteService) List(ctx context.Context, userID uuid.UUID, contentType string, limit, offset int) (*FavouritePage, error) {
	items, total, err := s.repo.ListByUser(ctx, userID, contentType, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Favourite{}
	}
	return &FavouritePage{Items: items, Count: total}, nil
}
