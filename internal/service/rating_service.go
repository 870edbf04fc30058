package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

type RatingRepository interface {
	Create(ctx context.Context, rating *models.ServiceRequestRating) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequestRating, error)
	ExistsByRequestAndAuthor(ctx context.Context, requestID, userID uuid.UUID) (bool, error)
	List(ctx context.Context, f repository.RatingFilter) ([]models.ServiceRequestRating, int, error)
}

// RequestExistence проверка существования заявки.
type RequestExistence interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// RatingInput поля новой оценки.
type RatingInput struct {
	ServiceRequestID uuid.UUID
	Description      string
	Rating           int
}

// RatingPage страница оценок.
type RatingPage struct {
	Items []models.ServiceRequestRating `json:"results"`
	Count int                           `json:"count"`
}

type RatingService struct {
	repo     RatingRepository
	requests RequestExistence
}

func NewRatingService(repo RatingRepository, requests RequestExistence) *RatingService {
	return &RatingService{repo: repo, requests: requests}
}

// Create сохраняет оценку. Автор и rating_from берутся из актора, одна оценка на заявку от автора.
func (s *RatingService) Create(ctx context.Context, actor Actor, in RatingInput) (*models.ServiceRequestRating, error) {
	fields := map[string]string{}
	if err := validation.ValidateRating(in.Rating); err != nil {
		fields["rating"] = err.Error()
	}
	if err := validation.ValidateDescription("description", in.Description, validation.MaxRatingDescription); err != nil {
		fields["description"] = err.Error()
	}

	exists, err := s.requests.Exists(ctx, in.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	if !exists {
		fields["service_request"] = fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", in.ServiceRequestID.String())
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	rated, err := s.repo.ExistsByRequestAndAuthor(ctx, in.ServiceRequestID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if rated {
		return nil, apperror.Field("service_request", "You have already rated this service request.")
	}

	rating := &models.ServiceRequestRating{
		ServiceRequestID: in.ServiceRequestID,
		RatingFrom:       actor.Role,
		CreatedByID:      actor.UserID,
		Description:      strings.TrimSpace(in.Description),
		Rating:           in.Rating,
	}
	if err := s.repo.Create(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *RatingService) Get(ctx context.Context, id uuid.UUID) (*models.ServiceRequestRating, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RatingService) List(ctx context.Context, f repository.RatingFilter) (*RatingPage, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ServiceRequestRating{}
	}
	return &RatingPage{Items: items, Count: total}, nil
}
