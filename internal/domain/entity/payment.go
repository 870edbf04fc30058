package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/shopspring/decimal"
)

// Payment платёж по заявке. Price уже со скидкой, PriceWithTax идёт в шлюз.
type Payment struct {
	ID               uuid.UUID
	ServiceRequestID uuid.UUID
	UserID           uuid.UUID
	Price            decimal.Decimal
	InvoiceID        string
	PaymentURL       string
	Status           valueobject.PaymentStatus
	TaxAmount        decimal.Decimal
	PriceWithTax     decimal.Decimal
	AmountDiscounted decimal.Decimal
	CompletedAt      *time.Time
	CreatedAt        time.Time

	// применённый промокод, списывается вместе с созданием платежа
	PromoCodeID *uuid.UUID
	// списанные баллы лояльности
	LoyaltyPoints int64
	// баллы, начисляемые после успешной оплаты
	EarnedPoints int64
}

func (p *Payment) IsComplete() bool {
	return p.Status == valueobject.PaymentStatusComplete
}

// Complete отмечает платёж оплаченным. Повторный вызов возвращает false.
func (p *Payment) Complete(at time.Time) bool {
	if p.IsComplete() {
		return false
	}
	p.Status = valueobject.PaymentStatusComplete
	p.CompletedAt = &at
	return true
}

// CascadeStatus переводит дополнительные заявки из статуса from в to.
// Возвращает количество изменённых заявок.
func CascadeStatus(extras []*ServiceRequest, from, to valueobject.RequestStatus) int {
	n := 0
	for _, e := range extras {
		if e.Status != from {
			continue
		}
		e.transition(to)
		n++
	}
	return n
}
