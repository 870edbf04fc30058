package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway локальный шлюз для разработки: каждый счёт считается оплаченным
// после первого обращения к странице возврата.
type SandboxGateway struct {
	callbackURL string

	mu       sync.Mutex
	invoices map[string]struct{}
}

func NewSandboxGateway(callbackURL string) *SandboxGateway {
	return &SandboxGateway{
		callbackURL: callbackURL,
		invoices:    make(map[string]struct{}),
	}
}

func (g *SandboxGateway) CreateSession(ctx context.Context, c Checkout) (*Session, error) {
	id := "sbx_" + uuid.NewString()
	g.mu.Lock()
	g.invoices[id] = struct{}{}
	g.mu.Unlock()
	return &Session{InvoiceID: id, URL: g.callbackURL + "?invoice_id=" + id}, nil
}

func (g *SandboxGateway) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.invoices[invoiceID]
	return ok, nil
}
