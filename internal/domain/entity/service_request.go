package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// DefaultRescheduleNotice минимальный запас времени до визита для переноса.
const DefaultRescheduleNotice = 2 * time.Hour

// ServiceRequest заявка на услугу. Заявка с ParentID является дополнительной (extra hours).
type ServiceRequest struct {
	ID                 uuid.UUID
	Serial             string
	FeatureID          uuid.UUID
	Status             valueobject.RequestStatus
	RequesterID        uuid.UUID
	AddressID          uuid.UUID
	PrimarySchedule    time.Time
	SecondarySchedule  *time.Time
	Description        string
	AudioNote          *string
	RejectionReason    *string
	AssignedProviderID *uuid.UUID
	ParentID           *uuid.UUID
	Price              decimal.Decimal
	TaxPercentage      decimal.Decimal
	TaxAmount          decimal.Decimal
	PriceWithTax       decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Values      []ServiceRequestValue
	Attachments []ServiceRequestAttachment
	AssigneeIDs []uuid.UUID
	Rejections  []ProviderRejection
}

type ServiceRequestValue struct {
	ID        uuid.UUID
	FieldID   uuid.UUID
	FieldName string
	FieldType valueobject.FieldType
	Label     string
	Value     string
}

type ServiceRequestAttachment struct {
	ID        uuid.UUID
	Key       string
	CreatedAt time.Time
}

// ProviderRejection отказ поставщика от заявки.
type ProviderRejection struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	ProviderName    string
	RejectionReason string
	CreatedAt       time.Time
}

// NewServiceRequest создаёт основную заявку в ожидании оплаты.
func NewServiceRequest(featureID, requesterID, addressID uuid.UUID, primary time.Time, secondary *time.Time, description string) (*ServiceRequest, error) {
	if primary.IsZero() {
		return nil, apperror.Field("primary_schedule", "This field is required.")
	}
	if secondary != nil && secondary.Before(primary) {
		return nil, apperror.Field("secondary_schedule", "Secondary schedule must be after primary schedule.")
	}

	now := time.Now()
	return &ServiceRequest{
		ID:                uuid.New(),
		FeatureID:         featureID,
		Status:            valueobject.RequestStatusPaymentPending,
		RequesterID:       requesterID,
		AddressID:         addressID,
		PrimarySchedule:   primary,
		SecondarySchedule: secondary,
		Description:       description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NewExtraRequest создаёт дополнительную заявку, наследуя адрес, вариант услуги,
// заказчика и основное время от родительской.
func NewExtraRequest(parent *ServiceRequest, description string) (*ServiceRequest, error) {
	if parent.IsExtra() {
		return nil, apperror.Field("parent", "Extra request can not have its own extra requests.")
	}

	now := time.Now()
	parentID := parent.ID
	return &ServiceRequest{
		ID:              uuid.New(),
		FeatureID:       parent.FeatureID,
		Status:          valueobject.RequestStatusPending,
		RequesterID:     parent.RequesterID,
		AddressID:       parent.AddressID,
		PrimarySchedule: parent.PrimarySchedule,
		Description:     description,
		ParentID:        &parentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (r *ServiceRequest) IsExtra() bool {
	return r.ParentID != nil
}

func (r *ServiceRequest) IsOwnedBy(userID uuid.UUID) bool {
	return r.RequesterID == userID
}

func (r *ServiceRequest) IsAssignedTo(providerID uuid.UUID) bool {
	return r.AssignedProviderID != nil && *r.AssignedProviderID == providerID
}

func (r *ServiceRequest) IsAssignee(userID uuid.UUID) bool {
	for _, id := range r.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RejectedBy сообщает, отказывался ли поставщик от заявки.
func (r *ServiceRequest) RejectedBy(providerID uuid.UUID) bool {
	for _, rej := range r.Rejections {
		if rej.ProviderID == providerID {
			return true
		}
	}
	return false
}

// SetPrice фиксирует цену и налог. Цена всегда считается на сервере.
func (r *ServiceRequest) SetPrice(price, taxPercentage decimal.Decimal) {
	tax := valueobject.ApplyTax(price, taxPercentage)
	r.Price = price
	r.TaxPercentage = tax.Percentage
	r.TaxAmount = tax.TaxAmount
	r.PriceWithTax = tax.PriceWithTax
}

func (r *ServiceRequest) transition(to valueobject.RequestStatus) {
	r.Status = to
	r.UpdatedAt = time.Now()
}

func (r *ServiceRequest) Approve() error {
	if r.Status == valueobject.RequestStatusApproved {
		return apperror.Field("status", "Already Approved")
	}
	if !r.Status.CanTransitionTo(valueobject.RequestStatusApproved) {
		return apperror.Field("status", fmt.Sprintf("Service request in %s status can not be approved.", r.Status))
	}
	r.transition(valueobject.RequestStatusApproved)
	return nil
}

func (r *ServiceRequest) Reject(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.Field("rejection_reason", "This field is required.")
	}
	if r.Status == valueobject.RequestStatusRejected {
		return apperror.Field("status", "Already Reject")
	}
	if !r.Status.CanTransitionTo(valueobject.RequestStatusRejected) {
		return apperror.Field("status", fmt.Sprintf("Service request in %s status can not be rejected.", r.Status))
	}
	r.RejectionReason = &reason
	r.transition(valueobject.RequestStatusRejected)
	return nil
}

func (r *ServiceRequest) checkOfferable() error {
	if r.Status != valueobject.RequestStatusApproved && !r.IsExtra() {
		return apperror.Field("status", "Service request is waiting for approval.")
	}
	return nil
}

// SupplierAccept назначает заявку поставщику.
func (r *ServiceRequest) SupplierAccept(providerID uuid.UUID) error {
	if err := r.checkOfferable(); err != nil {
		return err
	}
	if r.Status == valueobject.RequestStatusAccepted {
		return apperror.Field("status", "Service request already accepted by some other supplier.")
	}
	if !r.Status.CanTransitionTo(valueobject.RequestStatusAccepted) {
		return apperror.Field("status", fmt.Sprintf("Service request in %s status can not be accepted.", r.Status))
	}
	r.AssignedProviderID = &providerID
	r.transition(valueobject.RequestStatusAccepted)
	return nil
}

// SupplierReject фиксирует отказ поставщика. Дополнительная заявка при отказе
// переходит в rejected.
func (r *ServiceRequest) SupplierReject(providerID uuid.UUID, providerName, reason string) error {
	if err := r.checkOfferable(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if r.IsExtra() {
		if reason == "" {
			return apperror.Field("rejection_reason", "This field is required.")
		}
		if !r.Status.CanTransitionTo(valueobject.RequestStatusRejected) {
			return apperror.Field("status", fmt.Sprintf("Service request in %s status can not be rejected.", r.Status))
		}
	}

	r.Rejections = append(r.Rejections, ProviderRejection{
		ID:              uuid.New(),
		ProviderID:      providerID,
		ProviderName:    providerName,
		RejectionReason: reason,
		CreatedAt:       time.Now(),
	})
	if r.IsAssignedTo(providerID) {
		r.AssignedProviderID = nil
	}
	if r.IsExtra() {
		r.RejectionReason = &reason
		r.transition(valueobject.RequestStatusRejected)
		return nil
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (r *ServiceRequest) MarkInProgress() error {
	if r.Status != valueobject.RequestStatusAccepted {
		return apperror.Field("status", "Request is not approved.")
	}
	r.transition(valueobject.RequestStatusInProgress)
	return nil
}

func (r *ServiceRequest) MarkCompletedByProvider() error {
	if r.Status != valueobject.RequestStatusInProgress {
		return apperror.Field("status", "Service is not in progress.")
	}
	r.transition(valueobject.RequestStatusCompletedByProvider)
	return nil
}

func (r *ServiceRequest) AcceptCompletion() error {
	if r.Status != valueobject.RequestStatusCompletedByProvider {
		return apperror.Field("status", "Service is not marked as completed by provider.")
	}
	r.transition(valueobject.RequestStatusCompleted)
	return nil
}

// Assign добавляет сотрудников, уже назначенные не дублируются.
func (r *ServiceRequest) Assign(userIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, apperror.Field("assign", "Assign list can not be empty.")
	}
	added := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if r.IsAssignee(id) {
			continue
		}
		r.AssigneeIDs = append(r.AssigneeIDs, id)
		added = append(added, id)
	}
	r.UpdatedAt = time.Now()
	return added, nil
}

// Reschedule переносит визит. Перенос запрещён, когда и текущее, и новое время
// ближе minNotice к моменту now.
func (r *ServiceRequest) Reschedule(primary time.Time, secondary *time.Time, now time.Time, minNotice time.Duration) error {
	if primary.IsZero() {
		return apperror.Field("primary_schedule", "This field is required.")
	}
	if r.PrimarySchedule.Sub(now) < minNotice && primary.Sub(now) < minNotice {
		return apperror.Field("primary_schedule", "Only reschedule request before 2 hours.")
	}
	if secondary != nil && secondary.Before(primary) {
		return apperror.Field("secondary_schedule", "Secondary schedule must be after primary schedule.")
	}
	r.PrimarySchedule = primary
	r.SecondarySchedule = secondary
	r.UpdatedAt = time.Now()
	return nil
}

// PaymentOutcome результат подтверждения оплаты.
type PaymentOutcome int

const (
	PaymentOutcomeNone PaymentOutcome = iota
	// основная заявка ушла на одобрение
	PaymentOutcomePendingApproval
	// дополнительная заявка оплачена и начата
	PaymentOutcomeExtraStarted
)

// MarkPaid переводит заявку по факту оплаты.
func (r *ServiceRequest) MarkPaid() PaymentOutcome {
	switch {
	case !r.IsExtra() && r.Status == valueobject.RequestStatusPaymentPending:
		r.transition(valueobject.RequestStatusPending)
		return PaymentOutcomePendingApproval
	case r.IsExtra() && r.Status == valueobject.RequestStatusAccepted:
		r.transition(valueobject.RequestStatusInProgress)
		return PaymentOutcomeExtraStarted
	}
	return PaymentOutcomeNone
}

// HistoryStep шаг ленты выполнения заявки.
type HistoryStep struct {
	Type   string                    `json:"type"`
	Title  string                    `json:"title"`
	Status valueobject.RequestStatus `json:"status"`
	Done   bool                      `json:"done"`
}

var requestSteps = []HistoryStep{
	{Type: "payment-successfull", Title: "Payment done", Status: valueobject.RequestStatusPending},
	{Type: "approved", Title: "Service Request Approved", Status: valueobject.RequestStatusApproved},
	{Type: "accepted", Title: "Supplier Accepted", Status: valueobject.RequestStatusAccepted},
	{Type: "inprogress", Title: "Service Request in progress", Status: valueobject.RequestStatusInProgress},
	{Type: "completed-by-provider", Title: "Service Request Completed By Service Provider", Status: valueobject.RequestStatusCompletedByProvider},
	{Type: "completed", Title: "Service Request Completed", Status: valueobject.RequestStatusCompleted},
}

var extraRequestSteps = []HistoryStep{
	{Type: "pending", Title: "Supplier Accepted", Status: valueobject.RequestStatusPending},
	{Type: "payment-done", Title: "Extra Service Request Payment Done", Status: valueobject.RequestStatusInProgress},
}

// History строит ленту шагов. Шаги дополнительных заявок вставляются перед
// финальным шагом основной.
func (r *ServiceRequest) History(extras []*ServiceRequest) []HistoryStep {
	if r.IsExtra() {
		steps := make([]HistoryStep, len(extraRequestSteps))
		copy(steps, extraRequestSteps)
		steps[0].Done = r.Status.Reached(valueobject.RequestStatusAccepted)
		steps[1].Done = r.Status.Reached(valueobject.RequestStatusInProgress)
		return steps
	}

	steps := make([]HistoryStep, len(requestSteps))
	copy(steps, requestSteps)
	for i := range steps {
		steps[i].Done = r.Status.Reached(steps[i].Status)
	}

	out := make([]HistoryStep, 0, len(steps)+2*len(extras))
	out = append(out, steps[:len(steps)-1]...)
	for _, e := range extras {
		out = append(out, e.History(nil)...)
	}
	return append(out, steps[len(steps)-1])
}
