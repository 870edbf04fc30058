package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGateway_SessionIsPaid(t *testing.T) {
	g := NewSandboxGateway("http://localhost:8080/api/service-request/payments")
	ctx := context.Background()

	s, err := g.CreateSession(ctx, Checkout{RequestID: uuid.New(), Total: decimal.NewFromInt(105), Currency: "AED"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(s.URL, "invoice_id="+s.InvoiceID))

	paid, err := g.IsPaid(ctx, s.InvoiceID)
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = g.IsPaid(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, paid)
}
