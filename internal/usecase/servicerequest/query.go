package servicerequest

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/models"
)

// ListInput фильтры списка заявок.
type ListInput struct {
	Statuses             []valueobject.RequestStatus
	Query                string
	AssigneeID           *uuid.UUID
	AssignedProviderID   *uuid.UUID
	RejectedByProviderID *uuid.UUID
	Limit                int
	Offset               int
}

type QueryUseCase struct {
	deps *Deps
}

func NewQueryUseCase(deps *Deps) *QueryUseCase {
	return &QueryUseCase{deps: deps}
}

func (uc *QueryUseCase) filter(ctx context.Context, actor Actor, input ListInput) (repository.ServiceRequestFilter, error) {
	v, err := uc.deps.viewer(ctx, actor)
	if err != nil {
		return repository.ServiceRequestFilter{}, err
	}
	return repository.ServiceRequestFilter{
		Viewer:               v,
		ParentsOnly:          true,
		Statuses:             input.Statuses,
		Query:                input.Query,
		AssigneeID:           input.AssigneeID,
		AssignedProviderID:   input.AssignedProviderID,
		RejectedByProviderID: input.RejectedByProviderID,
		Limit:                input.Limit,
		Offset:               input.Offset,
	}, nil
}

// List возвращает основные заявки, видимые актору.
func (uc *QueryUseCase) List(ctx context.Context, actor Actor, input ListInput) ([]*entity.ServiceRequest, int, error) {
	f, err := uc.filter(ctx, actor, input)
	if err != nil {
		return nil, 0, err
	}
	return uc.deps.Requests.List(ctx, f)
}

// Count считает все видимые заявки, включая дополнительные.
func (uc *QueryUseCase) Count(ctx context.Context, actor Actor, input ListInput) (int, error) {
	f, err := uc.filter(ctx, actor, input)
	if err != nil {
		return 0, err
	}
	f.ParentsOnly = false
	return uc.deps.Requests.Count(ctx, f)
}

// Details полное представление заявки.
type Details struct {
	Request    *entity.ServiceRequest
	History    []entity.HistoryStep
	Payments   []entity.Payment
	Extras     []*entity.ServiceRequest
	Parties    *repository.RequestParties
	IsRejected bool
}

func (uc *QueryUseCase) Get(ctx context.Context, id uuid.UUID, actor Actor) (*Details, error) {
	v, err := uc.deps.ensureVisible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	sr, err := uc.deps.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var extras []*entity.ServiceRequest
	if !sr.IsExtra() {
		extras, err = uc.deps.Requests.FindExtras(ctx, sr.ID)
		if err != nil {
			return nil, err
		}
	}
	if actor.Role == models.RoleServiceProviderEmployee {
		extras = onlyStatus(extras, valueobject.RequestStatusInProgress)
	}

	payments, err := uc.deps.Requests.CompletedPayments(ctx, sr.ID)
	if err != nil {
		return nil, err
	}
	parties, err := uc.deps.Requests.LoadParties(ctx, sr)
	if err != nil {
		return nil, err
	}

	d := &Details{
		Request:  sr,
		History:  sr.History(extras),
		Payments: payments,
		Extras:   extras,
		Parties:  parties,
	}
	if v.ProviderID != nil {
		d.IsRejected = sr.RejectedBy(*v.ProviderID)
	}
	return d, nil
}

func onlyStatus(requests []*entity.ServiceRequest, status valueobject.RequestStatus) []*entity.ServiceRequest {
	out := make([]*entity.ServiceRequest, 0, len(requests))
	for _, r := range requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
