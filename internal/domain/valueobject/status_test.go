package valueobject_test

import (
	"testing"

	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRequestStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from valueobject.RequestStatus
		to   valueobject.RequestStatus
		want bool
	}{
		{valueobject.RequestStatusPaymentPending, valueobject.RequestStatusPending, true},
		{valueobject.RequestStatusPaymentPending, valueobject.RequestStatusApproved, false},
		{valueobject.RequestStatusPending, valueobject.RequestStatusApproved, true},
		{valueobject.RequestStatusPending, valueobject.RequestStatusRejected, true},
		{valueobject.RequestStatusApproved, valueobject.RequestStatusApproved, false},
		{valueobject.RequestStatusApproved, valueobject.RequestStatusAccepted, true},
		{valueobject.RequestStatusAccepted, valueobject.RequestStatusInProgress, true},
		{valueobject.RequestStatusInProgress, valueobject.RequestStatusCompletedByProvider, true},
		{valueobject.RequestStatusCompletedByProvider, valueobject.RequestStatusCompleted, true},
		{valueobject.RequestStatusCompleted, valueobject.RequestStatusInProgress, false},
		{valueobject.RequestStatusRejected, valueobject.RequestStatusApproved, false},
		{valueobject.RequestStatus("unknown"), valueobject.RequestStatusPending, false},
	}

	for _, tc := range cases {
		got := tc.from.CanTransitionTo(tc.to)
		if got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestRequestStatus_Reached(t *testing.T) {
	assert.True(t, valueobject.RequestStatusInProgress.Reached(valueobject.RequestStatusAccepted))
	assert.True(t, valueobject.RequestStatusCompleted.Reached(valueobject.RequestStatusCompleted))
	assert.False(t, valueobject.RequestStatusPending.Reached(valueobject.RequestStatusApproved))
	assert.False(t, valueobject.RequestStatusRejected.Reached(valueobject.RequestStatusPending))
}

func TestNewRequestStatus(t *testing.T) {
	s, err := valueobject.NewRequestStatus("completed-by-provider")
	assert.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusCompletedByProvider, s)

	_, err = valueobject.NewRequestStatus("done")
	assert.Error(t, err)
}

func TestApplyTax(t *testing.T) {
	tax := valueobject.ApplyTax(decimal.NewFromInt(200), decimal.NewFromInt(5))
	assert.True(t, tax.TaxAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, tax.PriceWithTax.Equal(decimal.NewFromInt(210)))

	zero := valueobject.ApplyTax(decimal.RequireFromString("99.99"), decimal.Zero)
	assert.True(t, zero.TaxAmount.IsZero())
	assert.True(t, zero.PriceWithTax.Equal(decimal.RequireFromString("99.99")))
}

func TestMoney_MinorUnits(t *testing.T) {
	m, err := valueobject.NewMoney(decimal.RequireFromString("12.345"), "")
	assert.NoError(t, err)
	assert.Equal(t, "AED", m.Currency)
	assert.Equal(t, int64(1235), m.MinorUnits())

	_, err = valueobject.NewMoney(decimal.NewFromInt(-1), "AED")
	assert.Error(t, err)
}
