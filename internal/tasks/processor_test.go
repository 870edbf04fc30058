package tasks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

type fakeRequests struct {
	requests map[uuid.UUID]*entity.ServiceRequest
	provider *repository.ProviderRef
}

func (f *fakeRequests) FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, apperror.ErrServiceRequestNotFound
	}
	return r, nil
}

func (f *fakeRequests) LoadParties(ctx context.Context, r *entity.ServiceRequest) (*repository.RequestParties, error) {
	return &repository.RequestParties{
		Requester:   repository.PartySummary{ID: r.RequesterID, Name: "Sara"},
		Provider:    f.provider,
		FeatureName: "Deep cleaning",
	}, nil
}

type fakeAudience []uuid.UUID

func (a fakeAudience) ProviderUsersForFeature(ctx context.Context, featureID uuid.UUID) ([]uuid.UUID, error) {
	return a, nil
}

type recordingSender struct {
	sent []service.NotificationMessage
}

func (s *recordingSender) Send(ctx context.Context, msg service.NotificationMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	requests  *fakeRequests
	sender    *recordingSender
	processor *Processor
	parent    *entity.ServiceRequest
	extra     *entity.ServiceRequest
	providers fakeAudience
}

func newFixture() *fixture {
	providerUser := uuid.New()
	parent := &entity.ServiceRequest{
		ID:          uuid.New(),
		Serial:      "FLGP-20240101-0001",
		FeatureID:   uuid.New(),
		RequesterID: uuid.New(),
		Status:      valueobject.RequestStatusApproved,
		AssigneeIDs: []uuid.UUID{uuid.New(), uuid.New()},
	}
	extra := &entity.ServiceRequest{
		ID:          uuid.New(),
		Serial:      "FLGP-20240101-0002",
		FeatureID:   parent.FeatureID,
		RequesterID: parent.RequesterID,
		ParentID:    &parent.ID,
		Status:      valueobject.RequestStatusInProgress,
	}
	requests := &fakeRequests{
		requests: map[uuid.UUID]*entity.ServiceRequest{parent.ID: parent, extra.ID: extra},
		provider: &repository.ProviderRef{ID: uuid.New(), UserID: providerUser, Name: "Sparkle"},
	}
	sender := &recordingSender{}
	providers := fakeAudience{uuid.New(), uuid.New()}
	return &fixture{
		requests:  requests,
		sender:    sender,
		processor: NewProcessor(requests, providers, sender),
		parent:    parent,
		extra:     extra,
		providers: providers,
	}
}

func TestProcessor_ApprovedNotifiesRequesterAndProviders(t *testing.T) {
	fx := newFixture()

	err := fx.processor.Handle(context.Background(), event.New(event.RequestApproved, fx.parent.ID, "approved"))
	require.NoError(t, err)

	require.Len(t, fx.sender.sent, 2)
	assert.Equal(t, []uuid.UUID{fx.parent.RequesterID}, fx.sender.sent[0].UserIDs)
	assert.Equal(t, "request_approved", fx.sender.sent[0].Kind)
	assert.Equal(t, fx.parent.Serial, fx.sender.sent[0].Data["serial"])
	assert.ElementsMatch(t, []uuid.UUID(fx.providers), fx.sender.sent[1].UserIDs)
}

func TestProcessor_Recipients(t *testing.T) {
	tests := []struct {
		name      string
		kind      event.Kind
		requestID func(fx *fixture) uuid.UUID
		userIDs   func(fx *fixture) []uuid.UUID
		want      func(fx *fixture) []uuid.UUID
	}{
		{
			name:      "started goes to assignees",
			kind:      event.RequestStarted,
			requestID: func(fx *fixture) uuid.UUID { return fx.parent.ID },
			want:      func(fx *fixture) []uuid.UUID { return fx.parent.AssigneeIDs },
		},
		{
			name:      "assigned goes to new assignees only",
			kind:      event.RequestAssigned,
			requestID: func(fx *fixture) uuid.UUID { return fx.parent.ID },
			userIDs:   func(fx *fixture) []uuid.UUID { return fx.parent.AssigneeIDs[:1] },
			want:      func(fx *fixture) []uuid.UUID { return fx.parent.AssigneeIDs[:1] },
		},
		{
			name:      "completion accepted goes to provider user",
			kind:      event.RequestCompletedByClient,
			requestID: func(fx *fixture) uuid.UUID { return fx.parent.ID },
			want:      func(fx *fixture) []uuid.UUID { return []uuid.UUID{fx.requests.provider.UserID} },
		},
		{
			name:      "extra hours goes to provider user",
			kind:      event.ExtraHoursServiceRequest,
			requestID: func(fx *fixture) uuid.UUID { return fx.parent.ID },
			want:      func(fx *fixture) []uuid.UUID { return []uuid.UUID{fx.requests.provider.UserID} },
		},
		{
			name:      "extra payment goes to parent assignees",
			kind:      event.ExtraServiceRequestPaymentDone,
			requestID: func(fx *fixture) uuid.UUID { return fx.extra.ID },
			want:      func(fx *fixture) []uuid.UUID { return fx.parent.AssigneeIDs },
		},
		{
			name:      "extra rejection goes to requester",
			kind:      event.RequestExtraHoursRejected,
			requestID: func(fx *fixture) uuid.UUID { return fx.extra.ID },
			want:      func(fx *fixture) []uuid.UUID { return []uuid.UUID{fx.parent.RequesterID} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			var users []uuid.UUID
			if tt.userIDs != nil {
				users = tt.userIDs(fx)
			}

			err := fx.processor.Handle(context.Background(), event.New(tt.kind, tt.requestID(fx), "", users...))
			require.NoError(t, err)
			require.Len(t, fx.sender.sent, 1)
			assert.ElementsMatch(t, tt.want(fx), fx.sender.sent[0].UserIDs)
			assert.Equal(t, string(tt.kind), fx.sender.sent[0].Kind)
		})
	}
}

func TestProcessor_SkipsMissingProvider(t *testing.T) {
	fx := newFixture()
	fx.requests.provider = nil

	require.NoError(t, fx.processor.Handle(context.Background(), event.New(event.RequestCompletedByClient, fx.parent.ID, "completed")))
	assert.Empty(t, fx.sender.sent)
}

func TestProcessTask_RoundTripsEvent(t *testing.T) {
	fx := newFixture()
	task, err := NewRequestEventTask(event.New(event.RequestAccepted, fx.parent.ID, "accepted"))
	require.NoError(t, err)

	require.NoError(t, fx.processor.ProcessTask(context.Background(), task))
	require.Len(t, fx.sender.sent, 1)
	assert.Equal(t, "request_accepted", fx.sender.sent[0].Kind)
}

func TestHandle_UnknownRequest(t *testing.T) {
	fx := newFixture()
	err := fx.processor.Handle(context.Background(), event.New(event.RequestApproved, uuid.New(), "approved"))
	assert.True(t, apperror.IsNotFound(err))
}
