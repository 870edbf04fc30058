package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
)

const (
	paymentColumns = `id, service_request_id, user_id, price, invoice_id, payment_url, status, tax_amount,
		price_with_tax, user_promo_code_id, loyalty_points, amount_discounted, completed_at, created_at, updated_at`
	promoColumns = `id, code, discount_percent, discount_amount, max_discount, usage_per_user, valid_from, valid_to, is_active, created_at`
)

// PaymentRepository платежи по заявкам, промокоды и журнал баллов лояльности.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByInvoice возвращает платёж по идентификатору счёта шлюза.
func (r *PaymentRepository) GetByInvoice(ctx context.Context, invoiceID string) (*models.ServiceRequestPayment, error) {
	var p models.ServiceRequestPayment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM service_request_payments WHERE invoice_id = $1`, invoiceID); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by invoice %w", err)
	}
	return &p, nil
}

// ListByUser возвращает платежи пользователя, новые сверху.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ServiceRequestPayment, error) {
	var args common.Args
	query := `SELECT ` + paymentColumns + ` FROM service_request_payments WHERE user_id = ` + args.Add(userID) + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)
	}
	var out []models.ServiceRequestPayment
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("payment repository: list %w", err)
	}
	return out, nil
}

// PromoByCode возвращает промокод по коду без учёта регистра.
func (r *PaymentRepository) PromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var p models.PromoCode
	if err := r.db.GetContext(ctx, &p, `SELECT `+promoColumns+` FROM promo_codes WHERE LOWER(code) = LOWER($1)`, code); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("payment repository: promo by code %w", err)
	}
	return &p, nil
}

// CreatePromo сохраняет новый промокод.
func (r *PaymentRepository) CreatePromo(ctx context.Context, p *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, discount_percent, discount_amount, max_discount, usage_per_user, valid_from, valid_to, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.Code, p.DiscountPercent, p.DiscountAmount, p.MaxDiscount, p.UsagePerUser, p.ValidFrom, p.ValidTo, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.Field("code", "promo code with this code already exists.")
		}
		return fmt.Errorf("payment repository: create promo %w", err)
	}
	return nil
}

// PromoUsage сколько раз пользователь применил промокод.
func (r *PaymentRepository) PromoUsage(ctx context.Context, userID, promoID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM user_promo_codes WHERE user_id = $1 AND promo_code_id = $2`, userID, promoID); err != nil {
		return 0, fmt.Errorf("payment repository: promo usage %w", err)
	}
	return n, nil
}

// LoyaltyBalance текущий баланс баллов пользователя.
func (r *PaymentRepository) LoyaltyBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	if err := r.db.GetContext(ctx, &balance, `SELECT COALESCE(SUM(points), 0) FROM loyalty_points WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("payment repository: loyalty balance %w", err)
	}
	return balance, nil
}

// LoyaltyHistory журнал начислений и списаний баллов.
func (r *PaymentRepository) LoyaltyHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LoyaltyEntry, error) {
	var args common.Args
	query := `SELECT id, user_id, reason, service_request_id, points, created_at FROM loyalty_points
		WHERE user_id = ` + args.Add(userID) + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)
	}
	var out []models.LoyaltyEntry
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("payment repository: loyalty history %w", err)
	}
	return out, nil
}
