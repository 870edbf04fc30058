package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
)

// Viewer тот, кто смотрит на заявки. ProviderID заполнен для роли service-provider.
type Viewer struct {
	UserID     uuid.UUID
	Role       string
	ProviderID *uuid.UUID
}

type ServiceRequestFilter struct {
	Viewer               Viewer
	ParentsOnly          bool
	Statuses             []valueobject.RequestStatus
	Query                string
	AssigneeID           *uuid.UUID
	AssignedProviderID   *uuid.UUID
	RejectedByProviderID *uuid.UUID
	Limit                int
	Offset               int
}

// MutateFunc меняет заявку и её дополнительные заявки под блокировкой строк.
type MutateFunc func(r *entity.ServiceRequest, extras []*entity.ServiceRequest) error

// PaymentFunc применяет подтверждение оплаты под блокировкой платежа и заявки.
type PaymentFunc func(p *entity.Payment, r *entity.ServiceRequest) error

type ServiceRequestRepository interface {
	// Create сохраняет заявку, значения полей, вложения и платёж одной транзакцией.
	Create(ctx context.Context, r *entity.ServiceRequest, payment *entity.Payment) error
	AddPayment(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceRequest, error)
	FindExtras(ctx context.Context, parentID uuid.UUID) ([]*entity.ServiceRequest, error)
	IsVisible(ctx context.Context, id uuid.UUID, viewer Viewer) (bool, error)
	List(ctx context.Context, filter ServiceRequestFilter) ([]*entity.ServiceRequest, int, error)
	Count(ctx context.Context, filter ServiceRequestFilter) (int, error)
	// Mutate блокирует заявку (SELECT ... FOR UPDATE), вызывает fn и сохраняет изменения.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*entity.ServiceRequest, error)
	ApplyPayment(ctx context.Context, invoiceID string, fn PaymentFunc) (*entity.Payment, *entity.ServiceRequest, error)
	CompletedPayments(ctx context.Context, requestID uuid.UUID) ([]entity.Payment, error)
	LoadParties(ctx context.Context, r *entity.ServiceRequest) (*RequestParties, error)
}

type FeatureReader interface {
	FindFeature(ctx context.Context, id uuid.UUID) (*entity.Feature, error)
}

// ProviderRef краткие сведения о поставщике.
type ProviderRef struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
}

type PartySummary struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone *string
	Photo *string
}

// RequestParties участники заявки для представления.
type RequestParties struct {
	Requester   PartySummary
	Assignees   []PartySummary
	Provider    *ProviderRef
	FeatureName string
}

type PartyReader interface {
	ProviderByUser(ctx context.Context, userID uuid.UUID) (*ProviderRef, error)
	ProviderByID(ctx context.Context, id uuid.UUID) (*ProviderRef, error)
	// FilterUsersByRole возвращает те идентификаторы, у которых указанная роль.
	FilterUsersByRole(ctx context.Context, ids []uuid.UUID, role string) ([]uuid.UUID, error)
	AddressOwner(ctx context.Context, addressID uuid.UUID) (uuid.UUID, error)
}
