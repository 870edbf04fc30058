package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

// PaymentHandler история платежей, баллы лояльности и промокоды.
type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// ListPayments GET /payments.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.payments.ListPayments(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Loyalty GET /loyalty.
func (h *PaymentHandler) Loyalty(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	summary, err := h.payments.Loyalty(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CreatePromo POST /promo-codes.
func (h *PaymentHandler) CreatePromo(c *gin.Context) {
	var req struct {
		Code            string           `json:"code"`
		DiscountPercent *decimal.Decimal `json:"discount_percent"`
		DiscountAmount  *decimal.Decimal `json:"discount_amount"`
		MaxDiscount     *decimal.Decimal `json:"max_discount"`
		UsagePerUser    int              `json:"usage_per_user"`
		ValidFrom       *time.Time       `json:"valid_from"`
		ValidTo         *time.Time       `json:"valid_to"`
		IsActive        *bool            `json:"is_active"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	promo, err := h.payments.CreatePromo(c.Request.Context(), &models.PromoCode{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		MaxDiscount:     req.MaxDiscount,
		UsagePerUser:    req.UsagePerUser,
		ValidFrom:       req.ValidFrom,
		ValidTo:         req.ValidTo,
		IsActive:        req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}
