package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/payment"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
)

type PaymentRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ServiceRequestPayment, error)
	LoyaltyBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	LoyaltyHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LoyaltyEntry, error)
	CreatePromo(ctx context.Context, p *models.PromoCode) error
}

type PayerReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PaymentService готовит платёжные сессии по заявкам и отдаёт историю оплат.
type PaymentService struct {
	gateway   payment.Gateway
	discounts *DiscountService
	users     PayerReader
	repo      PaymentRepository
	currency  string
}

func NewPaymentService(gateway payment.Gateway, discounts *DiscountService, users PayerReader, repo PaymentRepository, currency string) *PaymentService {
	return &PaymentService{
		gateway:   gateway,
		discounts: discounts,
		users:     users,
		repo:      repo,
		currency:  currency,
	}
}

var (
	_ servicerequest.PaymentInitiator = (*PaymentService)(nil)
	_ servicerequest.PaymentVerifier  = (*PaymentService)(nil)
)

// Initiate считает скидку, открывает сессию в шлюзе и возвращает несохранённый платёж.
// Ошибка шлюза возвращается как ErrPaymentInitiation.
func (s *PaymentService) Initiate(ctx context.Context, sr *entity.ServiceRequest, payerID uuid.UUID, in servicerequest.DiscountInput) (*entity.Payment, error) {
	d, err := s.discounts.Quote(ctx, payerID, sr.Price, in.PromoCode, in.LoyaltyPoints)
	if err != nil {
		return nil, err
	}
	total := d.Price.Add(sr.TaxAmount)

	payer, err := s.users.GetByID(ctx, payerID)
	if err != nil {
		return nil, err
	}
	customer := payment.Customer{Name: payer.Name, Email: payer.Email}
	if payer.Phone != nil {
		customer.Phone = strings.TrimPrefix(*payer.Phone, "+971")
	}

	session, err := s.gateway.CreateSession(ctx, payment.Checkout{
		RequestID:   sr.ID,
		Reference:   sr.Serial,
		Description: payer.Name,
		Price:       d.Price,
		TaxAmount:   sr.TaxAmount,
		Total:       total,
		Currency:    s.currency,
		Customer:    customer,
	})
	if err != nil {
		if logger.Log != nil {
			logger.Log.WithError(err).WithField("request_id", sr.ID).Error("payment service: не удалось создать платёжную сессию")
		}
		return nil, apperror.ErrPaymentInitiation
	}

	return &entity.Payment{
		ID:               uuid.New(),
		ServiceRequestID: sr.ID,
		UserID:           payerID,
		Price:            d.Price,
		InvoiceID:        session.InvoiceID,
		PaymentURL:       session.URL,
		Status:           valueobject.PaymentStatusPending,
		TaxAmount:        sr.TaxAmount,
		PriceWithTax:     total,
		AmountDiscounted: d.Amount,
		PromoCodeID:      d.PromoCodeID,
		LoyaltyPoints:    d.LoyaltyPoints,
		CreatedAt:        time.Now(),
	}, nil
}

func (s *PaymentService) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	return s.gateway.IsPaid(ctx, invoiceID)
}

// ListPayments платежи пользователя.
func (s *PaymentService) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ServiceRequestPayment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ServiceRequestPayment{}
	}
	return items, nil
}

// LoyaltySummary баланс и последние движения баллов.
type LoyaltySummary struct {
	Balance int64                 `json:"balance"`
	History []models.LoyaltyEntry `json:"history"`
}

func (s *PaymentService) Loyalty(ctx context.Context, userID uuid.UUID, limit, offset int) (*LoyaltySummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	balance, err := s.repo.LoyaltyBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.LoyaltyHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.LoyaltyEntry{}
	}
	return &LoyaltySummary{Balance: balance, History: history}, nil
}

// CreatePromo создаёт промокод. Задаётся либо процент, либо фиксированная сумма.
func (s *PaymentService) CreatePromo(ctx context.Context, p *models.PromoCode) (*models.PromoCode, error) {
	fields := map[string]string{}
	p.Code = strings.TrimSpace(p.Code)
	if p.Code == "" {
		fields["code"] = "This field is required."
	}
	switch {
	case p.DiscountPercent == nil && p.DiscountAmount == nil:
		fields["discount_percent"] = "Either discount_percent or discount_amount is required."
	case p.DiscountPercent != nil && p.DiscountAmount != nil:
		fields["discount_amount"] = "Only one of discount_percent and discount_amount can be set."
	case p.DiscountPercent != nil && (!p.DiscountPercent.IsPositive() || p.DiscountPercent.GreaterThan(hundred)):
		fields["discount_percent"] = "Ensure this value is between 0 and 100."
	case p.DiscountAmount != nil && !p.DiscountAmount.IsPositive():
		fields["discount_amount"] = "Ensure this value is greater than 0."
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		fields["valid_to"] = "valid_to must be after valid_from."
	}
	if p.UsagePerUser < 0 {
		fields["usage_per_user"] = "Ensure this value is greater than or equal to 0."
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}
	if err := s.repo.CreatePromo(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
