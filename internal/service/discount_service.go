package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type DiscountRepository interface {
	PromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	PromoUsage(ctx context.Context, userID, promoID uuid.UUID) (int, error)
	LoyaltyBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

var hundred = decimal.NewFromInt(100)

// Discount результат применения промокода или баллов.
type Discount struct {
	PromoCodeID   *uuid.UUID
	LoyaltyPoints int64
	Amount        decimal.Decimal
	Price         decimal.Decimal
}

// DiscountService считает скидку по промокоду или баллам лояльности.
// Промокод и баллы не суммируются, промокод имеет приоритет.
type DiscountService struct {
	repo       DiscountRepository
	pointValue decimal.Decimal
	now        func() time.Time
}

func NewDiscountService(repo DiscountRepository, pointValue decimal.Decimal) *DiscountService {
	return &DiscountService{repo: repo, pointValue: pointValue, now: time.Now}
}

// Quote ничего не списывает: списание происходит вместе с сохранением платежа.
func (s *DiscountService) Quote(ctx context.Context, userID uuid.UUID, price decimal.Decimal, promoCode string, points int64) (*Discount, error) {
	d := &Discount{Amount: decimal.Zero, Price: price}
	code := strings.TrimSpace(promoCode)
	switch {
	case code != "":
		return s.applyPromo(ctx, userID, d, code)
	case points > 0:
		return s.applyPoints(ctx, userID, d, points)
	default:
		return d, nil
	}
}

func (s *DiscountService) applyPromo(ctx context.Context, userID uuid.UUID, d *Discount, code string) (*Discount, error) {
	promo, err := s.repo.PromoByCode(ctx, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Field("promo_code", "Invalid promo code.")
		}
		return nil, err
	}
	now := s.now()
	if !promo.IsActive || (promo.ValidFrom != nil && now.Before(*promo.ValidFrom)) || (promo.ValidTo != nil && now.After(*promo.ValidTo)) {
		return nil, apperror.Field("promo_code", "Promo code is expired.")
	}
	if promo.UsagePerUser > 0 {
		used, err := s.repo.PromoUsage(ctx, userID, promo.ID)
		if err != nil {
			return nil, err
		}
		if used >= promo.UsagePerUser {
			return nil, apperror.Field("promo_code", "Promo code usage limit reached.")
		}
	}

	amount := decimal.Zero
	switch {
	case promo.DiscountPercent != nil:
		amount = d.Price.Mul(*promo.DiscountPercent).Div(hundred).Round(2)
		if promo.MaxDiscount != nil && amount.GreaterThan(*promo.MaxDiscount) {
			amount = *promo.MaxDiscount
		}
	case promo.DiscountAmount != nil:
		amount = *promo.DiscountAmount
	}
	amount = decimal.Min(amount, d.Price)

	id := promo.ID
	d.PromoCodeID = &id
	d.Amount = amount
	d.Price = d.Price.Sub(amount)
	return d, nil
}

func (s *DiscountService) applyPoints(ctx context.Context, userID uuid.UUID, d *Discount, points int64) (*Discount, error) {
	if !s.pointValue.IsPositive() {
		return nil, apperror.Field("loyalty_points", "Loyalty points are not accepted.")
	}
	balance, err := s.repo.LoyaltyBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if points > balance {
		return nil, apperror.Field("loyalty_points", "Not enough loyalty points.")
	}

	// баллы сверх цены не списываются
	if limit := d.Price.Div(s.pointValue).IntPart(); points > limit {
		points = limit
	}
	amount := s.pointValue.Mul(decimal.NewFromInt(points)).Round(2)

	d.LoyaltyPoints = points
	d.Amount = amount
	d.Price = d.Price.Sub(amount)
	return d, nil
}
