package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, status valueobject.RequestStatus) *entity.ServiceRequest {
	t.Helper()
	r, err := entity.NewServiceRequest(uuid.New(), uuid.New(), uuid.New(), time.Now().Add(24*time.Hour), nil, "уборка")
	require.NoError(t, err)
	r.Status = status
	return r
}

func assertFieldError(t *testing.T, err error, field, msg string) {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, msg, appErr.Fields[field])
}

func TestNewServiceRequest_StartsPaymentPending(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusPaymentPending)
	assert.Equal(t, valueobject.RequestStatusPaymentPending, r.Status)
	assert.False(t, r.IsExtra())

	_, err := entity.NewServiceRequest(uuid.New(), uuid.New(), uuid.New(), time.Time{}, nil, "")
	assertFieldError(t, err, "primary_schedule", "This field is required.")
}

func TestServiceRequest_ApproveTwice(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusPending)

	require.NoError(t, r.Approve())
	assert.Equal(t, valueobject.RequestStatusApproved, r.Status)

	err := r.Approve()
	assertFieldError(t, err, "status", "Already Approved")
}

func TestServiceRequest_Reject(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusPending)

	assertFieldError(t, r.Reject(" "), "rejection_reason", "This field is required.")

	require.NoError(t, r.Reject("нет мастеров"))
	assert.Equal(t, valueobject.RequestStatusRejected, r.Status)
	require.NotNil(t, r.RejectionReason)
	assert.Equal(t, "нет мастеров", *r.RejectionReason)

	assertFieldError(t, r.Reject("снова"), "status", "Already Reject")
}

func TestServiceRequest_SupplierAccept(t *testing.T) {
	providerID := uuid.New()

	pending := newRequest(t, valueobject.RequestStatusPending)
	assertFieldError(t, pending.SupplierAccept(providerID), "status", "Service request is waiting for approval.")

	approved := newRequest(t, valueobject.RequestStatusApproved)
	require.NoError(t, approved.SupplierAccept(providerID))
	assert.True(t, approved.IsAssignedTo(providerID))
	assert.Equal(t, valueobject.RequestStatusAccepted, approved.Status)

	err := approved.SupplierAccept(uuid.New())
	assertFieldError(t, err, "status", "Service request already accepted by some other supplier.")
}

func TestServiceRequest_SupplierAcceptExtraWithoutApproval(t *testing.T) {
	parent := newRequest(t, valueobject.RequestStatusInProgress)
	extra, err := entity.NewExtraRequest(parent, "ещё два часа")
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusPending, extra.Status)
	assert.Equal(t, parent.AddressID, extra.AddressID)
	assert.Equal(t, parent.PrimarySchedule, extra.PrimarySchedule)

	require.NoError(t, extra.SupplierAccept(uuid.New()))
	assert.Equal(t, valueobject.RequestStatusAccepted, extra.Status)
}

func TestServiceRequest_SupplierRejectClearsAssignment(t *testing.T) {
	providerID := uuid.New()
	r := newRequest(t, valueobject.RequestStatusApproved)
	require.NoError(t, r.SupplierAccept(providerID))
	r.Status = valueobject.RequestStatusApproved

	require.NoError(t, r.SupplierReject(providerID, "Acme", "занят"))
	assert.Nil(t, r.AssignedProviderID)
	assert.True(t, r.RejectedBy(providerID))
	assert.Equal(t, valueobject.RequestStatusApproved, r.Status)
}

func TestServiceRequest_SupplierRejectExtra(t *testing.T) {
	parent := newRequest(t, valueobject.RequestStatusInProgress)
	extra, err := entity.NewExtraRequest(parent, "")
	require.NoError(t, err)

	assertFieldError(t, extra.SupplierReject(uuid.New(), "Acme", ""), "rejection_reason", "This field is required.")

	require.NoError(t, extra.SupplierReject(uuid.New(), "Acme", "нет времени"))
	assert.Equal(t, valueobject.RequestStatusRejected, extra.Status)
}

func TestServiceRequest_WorkflowGuards(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusApproved)
	assertFieldError(t, r.MarkInProgress(), "status", "Request is not approved.")
	assertFieldError(t, r.MarkCompletedByProvider(), "status", "Service is not in progress.")
	assertFieldError(t, r.AcceptCompletion(), "status", "Service is not marked as completed by provider.")

	r.Status = valueobject.RequestStatusAccepted
	require.NoError(t, r.MarkInProgress())
	require.NoError(t, r.MarkCompletedByProvider())
	require.NoError(t, r.AcceptCompletion())
	assert.Equal(t, valueobject.RequestStatusCompleted, r.Status)
}

func TestServiceRequest_Assign(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusAccepted)

	_, err := r.Assign(nil)
	assertFieldError(t, err, "assign", "Assign list can not be empty.")

	a, b := uuid.New(), uuid.New()
	added, err := r.Assign([]uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Len(t, added, 2)

	added, err = r.Assign([]uuid.UUID{a})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, r.AssigneeIDs, 2)
}

func TestServiceRequest_Reschedule(t *testing.T) {
	now := time.Now()

	soon := newRequest(t, valueobject.RequestStatusApproved)
	soon.PrimarySchedule = now.Add(time.Hour)
	err := soon.Reschedule(now.Add(90*time.Minute), nil, now, entity.DefaultRescheduleNotice)
	assertFieldError(t, err, "primary_schedule", "Only reschedule request before 2 hours.")

	// новое время достаточно далеко
	require.NoError(t, soon.Reschedule(now.Add(5*time.Hour), nil, now, entity.DefaultRescheduleNotice))
	assert.Equal(t, now.Add(5*time.Hour), soon.PrimarySchedule)
}

func TestServiceRequest_MarkPaid(t *testing.T) {
	parent := newRequest(t, valueobject.RequestStatusPaymentPending)
	assert.Equal(t, entity.PaymentOutcomePendingApproval, parent.MarkPaid())
	assert.Equal(t, valueobject.RequestStatusPending, parent.Status)
	assert.Equal(t, entity.PaymentOutcomeNone, parent.MarkPaid())

	extra, err := entity.NewExtraRequest(parent, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentOutcomeNone, extra.MarkPaid())
	extra.Status = valueobject.RequestStatusAccepted
	assert.Equal(t, entity.PaymentOutcomeExtraStarted, extra.MarkPaid())
	assert.Equal(t, valueobject.RequestStatusInProgress, extra.Status)
}

func TestServiceRequest_History(t *testing.T) {
	parent := newRequest(t, valueobject.RequestStatusInProgress)
	extra, err := entity.NewExtraRequest(parent, "")
	require.NoError(t, err)
	extra.Status = valueobject.RequestStatusAccepted

	steps := parent.History([]*entity.ServiceRequest{extra})
	require.Len(t, steps, 8)

	assert.Equal(t, "payment-successfull", steps[0].Type)
	assert.True(t, steps[3].Done)
	assert.Equal(t, "inprogress", steps[3].Type)
	assert.False(t, steps[4].Done)

	assert.Equal(t, "pending", steps[5].Type)
	assert.True(t, steps[5].Done)
	assert.Equal(t, "payment-done", steps[6].Type)
	assert.False(t, steps[6].Done)

	assert.Equal(t, "completed", steps[7].Type)
	assert.False(t, steps[7].Done)
}

func TestServiceRequest_HistoryRejectedHasNoDoneSteps(t *testing.T) {
	r := newRequest(t, valueobject.RequestStatusRejected)
	for _, s := range r.History(nil) {
		assert.False(t, s.Done, s.Type)
	}
}
