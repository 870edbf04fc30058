package servicerequest_test

import (
	"context"
	"testing"

	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_ListReturnsParentsOnlyCountIncludesExtras(t *testing.T) {
	fx := newFixture()
	parent := fx.assigned(fx.request(valueobject.RequestStatusInProgress))
	fx.extra(parent, valueobject.RequestStatusPending)
	uc := servicerequest.NewQueryUseCase(fx.deps)

	items, total, err := uc.List(context.Background(), fx.client, servicerequest.ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, parent.ID, items[0].ID)

	n, err := uc.Count(context.Background(), fx.admin, servicerequest.ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQuery_GetBuildsHistory(t *testing.T) {
	fx := newFixture()
	parent := fx.assigned(fx.request(valueobject.RequestStatusInProgress))
	fx.extra(parent, valueobject.RequestStatusAccepted)
	uc := servicerequest.NewQueryUseCase(fx.deps)

	d, err := uc.Get(context.Background(), parent.ID, fx.client)
	require.NoError(t, err)
	require.Len(t, d.Extras, 1)
	require.Len(t, d.History, 8)

	assert.Equal(t, "inprogress", d.History[3].Type)
	assert.True(t, d.History[3].Done)
	assert.False(t, d.History[4].Done)
	// шаги дополнительной заявки стоят перед финальным
	assert.Equal(t, "pending", d.History[5].Type)
	assert.True(t, d.History[5].Done)
	assert.Equal(t, "payment-done", d.History[6].Type)
	assert.False(t, d.History[6].Done)
	assert.Equal(t, "completed", d.History[7].Type)
	assert.False(t, d.IsRejected)
}

func TestQuery_EmployeeSeesOnlyStartedExtras(t *testing.T) {
	fx := newFixture()
	parent := fx.assigned(fx.request(valueobject.RequestStatusInProgress))
	started := fx.extra(parent, valueobject.RequestStatusInProgress)
	fx.extra(parent, valueobject.RequestStatusPending)
	uc := servicerequest.NewQueryUseCase(fx.deps)

	d, err := uc.Get(context.Background(), parent.ID, fx.employee)
	require.NoError(t, err)
	require.Len(t, d.Extras, 1)
	assert.Equal(t, started.ID, d.Extras[0].ID)
}

func TestQuery_ProviderSeesOwnRejection(t *testing.T) {
	fx := newFixture()
	sr := fx.request(valueobject.RequestStatusApproved)
	transitions := servicerequest.NewTransitionUseCase(fx.deps)
	_, err := transitions.SupplierReject(context.Background(), sr.ID, fx.provider, "busy")
	require.NoError(t, err)

	d, err := servicerequest.NewQueryUseCase(fx.deps).Get(context.Background(), sr.ID, fx.provider)
	require.NoError(t, err)
	assert.True(t, d.IsRejected)
}
