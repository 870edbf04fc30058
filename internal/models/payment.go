package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceRequestPayment платёж по заявке на услугу.
type ServiceRequestPayment struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ServiceRequestID uuid.UUID       `db:"service_request_id" json:"service_request"`
	UserID           uuid.UUID       `db:"user_id" json:"user"`
	Price            decimal.Decimal `db:"price" json:"price"`
	InvoiceID        string          `db:"invoice_id" json:"invoice_id"`
	PaymentURL       string          `db:"payment_url" json:"payment_url"`
	Status           string          `db:"status" json:"status"`
	TaxAmount        decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	PriceWithTax     decimal.Decimal `db:"price_with_tax" json:"price_with_tax"`
	UserPromoCodeID  *uuid.UUID      `db:"user_promo_code_id" json:"user_promo_code,omitempty"`
	LoyaltyPoints    int64           `db:"loyalty_points" json:"loyalty_points"`
	AmountDiscounted decimal.Decimal `db:"amount_discounted" json:"amount_discounted"`
	CompletedAt      *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentSummary краткая информация о завершённом платеже.
type PaymentSummary struct {
	ID    uuid.UUID       `db:"id" json:"id"`
	Price decimal.Decimal `db:"price" json:"price"`
}

// PromoCode промокод на скидку.
type PromoCode struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	Code            string           `db:"code" json:"code"`
	DiscountPercent *decimal.Decimal `db:"discount_percent" json:"discount_percent,omitempty"`
	DiscountAmount  *decimal.Decimal `db:"discount_amount" json:"discount_amount,omitempty"`
	MaxDiscount     *decimal.Decimal `db:"max_discount" json:"max_discount,omitempty"`
	UsagePerUser    int              `db:"usage_per_user" json:"usage_per_user"`
	ValidFrom       *time.Time       `db:"valid_from" json:"valid_from,omitempty"`
	ValidTo         *time.Time       `db:"valid_to" json:"valid_to,omitempty"`
	IsActive        bool             `db:"is_active" json:"is_active"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// UserPromoCode факт применения промокода пользователем.
type UserPromoCode struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           uuid.UUID       `db:"user_id" json:"user"`
	PromoCodeID      uuid.UUID       `db:"promo_code_id" json:"promo_code"`
	DiscountedAmount decimal.Decimal `db:"discounted_amount" json:"discounted_amount"`
	PaymentID        *uuid.UUID      `db:"payment_id" json:"payment,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Причины движения баллов лояльности
const (
	LoyaltyReasonServiceRequestPayment = "service-request-payment"
	LoyaltyReasonServiceRequestEarned  = "service-request-earned"
)

// LoyaltyEntry запись журнала баллов лояльности (положительная - начисление).
type LoyaltyEntry struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	UserID           uuid.UUID  `db:"user_id" json:"user"`
	Reason           string     `db:"reason" json:"reason"`
	ServiceRequestID *uuid.UUID `db:"service_request_id" json:"service_request,omitempty"`
	Points           int64      `db:"points" json:"points"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
