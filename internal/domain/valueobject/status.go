package valueobject

import "github.com/ignatzorin/services-marketplace/internal/pkg/apperror"

type RequestStatus string

const (
	RequestStatusPaymentPending      RequestStatus = "payment-pending"
	RequestStatusPending             RequestStatus = "pending"
	RequestStatusApproved            RequestStatus = "approved"
	RequestStatusRejected            RequestStatus = "rejected"
	RequestStatusAccepted            RequestStatus = "accepted"
	RequestStatusInProgress          RequestStatus = "inprogress"
	RequestStatusCompletedByProvider RequestStatus = "completed-by-provider"
	RequestStatusCompleted           RequestStatus = "completed"
)

// порядок основной ветки, rejected в него не входит
var requestStatusRank = map[RequestStatus]int{
	RequestStatusPaymentPending:      0,
	RequestStatusPending:             1,
	RequestStatusApproved:            2,
	RequestStatusAccepted:            3,
	RequestStatusInProgress:          4,
	RequestStatusCompletedByProvider: 5,
	RequestStatusCompleted:           6,
}

// pending -> accepted допустим только для дополнительных заявок
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPaymentPending:      {RequestStatusPending},
	RequestStatusPending:             {RequestStatusApproved, RequestStatusRejected, RequestStatusAccepted},
	RequestStatusApproved:            {RequestStatusAccepted, RequestStatusRejected},
	RequestStatusRejected:            {},
	RequestStatusAccepted:            {RequestStatusInProgress, RequestStatusRejected},
	RequestStatusInProgress:          {RequestStatusCompletedByProvider},
	RequestStatusCompletedByProvider: {RequestStatusCompleted},
	RequestStatusCompleted:           {},
}

func (s RequestStatus) IsValid() bool {
	_, ok := requestTransitions[s]
	return ok
}

func (s RequestStatus) String() string {
	return string(s)
}

func (s RequestStatus) CanTransitionTo(newStatus RequestStatus) bool {
	allowed, ok := requestTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// Reached сообщает, прошла ли заявка указанный шаг основной ветки.
func (s RequestStatus) Reached(step RequestStatus) bool {
	cur, ok := requestStatusRank[s]
	if !ok {
		return false
	}
	target, ok := requestStatusRank[step]
	if !ok {
		return false
	}
	return cur >= target
}

func NewRequestStatus(status string) (RequestStatus, error) {
	s := RequestStatus(status)
	if !s.IsValid() {
		return "", apperror.Field("status", "некорректный статус заявки")
	}
	return s, nil
}

// AllRequestStatuses возвращает статусы в порядке основной ветки.
func AllRequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusPaymentPending,
		RequestStatusPending,
		RequestStatusApproved,
		RequestStatusRejected,
		RequestStatusAccepted,
		RequestStatusInProgress,
		RequestStatusCompletedByProvider,
		RequestStatusCompleted,
	}
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusComplete PaymentStatus = "complete"
	PaymentStatusFailed   PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusComplete, PaymentStatusFailed:
		return true
	}
	return false
}

func NewPaymentStatus(status string) (PaymentStatus, error) {
	s := PaymentStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус платежа")
	}
	return s, nil
}
