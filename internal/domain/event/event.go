package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	PendingForApproval             Kind = "pending_for_approval"
	RequestApproved                Kind = "request_approved"
	RequestRejected                Kind = "request_rejected"
	RequestAccepted                Kind = "request_accepted"
	RequestAssigned                Kind = "request_assigned"
	RequestStarted                 Kind = "request_started"
	ServiceRequestCompleted        Kind = "service_request_completed"
	RequestCompletedByClient       Kind = "request_completed_by_client"
	ExtraHoursServiceRequest       Kind = "extra_hours_service_request"
	RequestExtraHoursApproved      Kind = "request_extra_hours_approved"
	RequestExtraHoursRejected      Kind = "request_extra_hours_rejected"
	ExtraServiceRequestPaymentDone Kind = "extra_service_request_payment_done"
)

// RequestEvent событие жизненного цикла заявки. Получателей определяет обработчик,
// UserIDs задаётся только когда они известны заранее (назначение сотрудников).
type RequestEvent struct {
	Kind       Kind        `json:"kind"`
	RequestID  uuid.UUID   `json:"request_id"`
	Status     string      `json:"status"`
	UserIDs    []uuid.UUID `json:"user_ids,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func New(kind Kind, requestID uuid.UUID, status string, userIDs ...uuid.UUID) RequestEvent {
	return RequestEvent{
		Kind:       kind,
		RequestID:  requestID,
		Status:     status,
		UserIDs:    userIDs,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatcher доставляет событие. Ошибки доставки не должны откатывать операцию.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev RequestEvent) error
}

// Fanout рассылает событие всем получателям и возвращает первую ошибку.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, ev RequestEvent) error {
	var first error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
