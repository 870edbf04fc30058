package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository"
)

type mockRatingRepo struct {
	mock.Mock
}

func (m *mockRatingRepo) Create(ctx context.Context, rating *models.ServiceRequestRating) error {
	args := m.Called(ctx, rating)
	if args.Error(0) == nil {
		rating.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockRatingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequestRating, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceRequestRating), args.Error(1)
}

func (m *mockRatingRepo) ExistsByRequestAndAuthor(ctx context.Context, requestID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, requestID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRatingRepo) List(ctx context.Context, f repository.RatingFilter) ([]models.ServiceRequestRating, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.ServiceRequestRating), args.Int(1), args.Error(2)
}

type stubRequests map[uuid.UUID]bool

func (s stubRequests) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return s[id], nil
}

func TestRatingService_Create_Success(t *testing.T) {
	repo := new(mockRatingRepo)
	requestID := uuid.New()
	svc := NewRatingService(repo, stubRequests{requestID: true})
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Role: models.RoleClient}

	repo.On("ExistsByRequestAndAuthor", ctx, requestID, actor.UserID).Return(false, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.ServiceRequestRating")).Return(nil)

	rating, err := svc.Create(ctx, actor, RatingInput{ServiceRequestID: requestID, Rating: 5, Description: " Отлично "})
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, rating.RatingFrom)
	assert.Equal(t, actor.UserID, rating.CreatedByID)
	assert.Equal(t, "Отлично", rating.Description)
	repo.AssertExpectations(t)
}

func TestRatingService_Create_Validation(t *testing.T) {
	repo := new(mockRatingRepo)
	svc := NewRatingService(repo, stubRequests{})
	actor := Actor{UserID: uuid.New(), Role: models.RoleClient}

	_, err := svc.Create(context.Background(), actor, RatingInput{ServiceRequestID: uuid.New(), Rating: 6})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "rating")
	assert.Contains(t, appErr.Fields, "service_request")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRatingService_Create_OncePerAuthor(t *testing.T) {
	repo := new(mockRatingRepo)
	requestID := uuid.New()
	svc := NewRatingService(repo, stubRequests{requestID: true})
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Role: models.RoleServiceProvider}

	repo.On("ExistsByRequestAndAuthor", ctx, requestID, actor.UserID).Return(true, nil)

	_, err := svc.Create(ctx, actor, RatingInput{ServiceRequestID: requestID, Rating: 4})
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRatingService_List_EmptyIsNotNil(t *testing.T) {
	repo := new(mockRatingRepo)
	svc := NewRatingService(repo, stubRequests{})
	ctx := context.Background()

	repo.On("List", ctx, repository.RatingFilter{Limit: 20}).Return(nil, 0, nil)

	page, err := svc.List(ctx, repository.RatingFilter{Limit: 20})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.Count)
}
