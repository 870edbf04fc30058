package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer плательщик.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Checkout параметры платёжной сессии.
type Checkout struct {
	RequestID   uuid.UUID
	Reference   string
	Description string
	Price       decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	Customer    Customer
}

// Session созданная в шлюзе сессия: InvoiceID используется для сверки оплаты.
type Session struct {
	InvoiceID string
	URL       string
}

// Gateway платёжный шлюз.
type Gateway interface {
	CreateSession(ctx context.Context, c Checkout) (*Session, error)
	IsPaid(ctx context.Context, invoiceID string) (bool, error)
}
