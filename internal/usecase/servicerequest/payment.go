package servicerequest

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

type PaymentURLUseCase struct {
	deps *Deps
}

func NewPaymentURLUseCase(deps *Deps) *PaymentURLUseCase {
	return &PaymentURLUseCase{deps: deps}
}

// Execute создаёт новую платёжную сессию для неоплаченной заявки.
func (uc *PaymentURLUseCase) Execute(ctx context.Context, id uuid.UUID, actor Actor, discount DiscountInput) (*entity.Payment, error) {
	if _, err := uc.deps.ensureVisible(ctx, id, actor); err != nil {
		return nil, err
	}
	sr, err := uc.deps.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sr.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if err := uc.checkUnpaid(ctx, sr); err != nil {
		return nil, err
	}

	payment, err := uc.deps.Payments.Initiate(ctx, sr, sr.RequesterID, discount)
	if err != nil {
		return nil, err
	}
	if err := uc.deps.Requests.AddPayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (uc *PaymentURLUseCase) checkUnpaid(ctx context.Context, sr *entity.ServiceRequest) error {
	paidErr := apperror.Field("status", "Service request is already paid.")
	if !sr.IsExtra() {
		if sr.Status != valueobject.RequestStatusPaymentPending {
			return paidErr
		}
		return nil
	}
	if sr.Status != valueobject.RequestStatusPending && sr.Status != valueobject.RequestStatusAccepted {
		return paidErr
	}
	payments, err := uc.deps.Requests.CompletedPayments(ctx, sr.ID)
	if err != nil {
		return err
	}
	if len(payments) > 0 {
		return paidErr
	}
	return nil
}

// ConfirmPaymentUseCase применяет подтверждение оплаты от платёжного шлюза.
// Повторное подтверждение того же счёта ничего не меняет.
type ConfirmPaymentUseCase struct {
	deps *Deps
}

func NewConfirmPaymentUseCase(deps *Deps) *ConfirmPaymentUseCase {
	return &ConfirmPaymentUseCase{deps: deps}
}

// Execute сверяет статус счёта со шлюзом (страница возврата после оплаты).
func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, invoiceID string) (*entity.Payment, error) {
	if invoiceID == "" {
		return nil, apperror.Field("invoice_id", "This field is required.")
	}
	paid, err := uc.deps.Verifier.IsPaid(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, apperror.Field("payment", "Payment is not completed.")
	}
	return uc.ApplyVerified(ctx, invoiceID)
}

// ApplyVerified отмечает платёж оплаченным без запроса к шлюзу. Используется
// вебхуком, подпись которого уже проверена.
func (uc *ConfirmPaymentUseCase) ApplyVerified(ctx context.Context, invoiceID string) (*entity.Payment, error) {
	outcome := entity.PaymentOutcomeNone
	completed := false
	payment, sr, err := uc.deps.Requests.ApplyPayment(ctx, invoiceID, func(p *entity.Payment, r *entity.ServiceRequest) error {
		if !p.Complete(uc.deps.now()) {
			return nil
		}
		completed = true
		p.EarnedPoints = uc.earnedPoints(p)
		outcome = r.MarkPaid()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"invoice_id": invoiceID,
			"request_id": sr.ID,
			"completed":  completed,
			"status":     sr.Status,
		}).Info("оплата заявки подтверждена")
	}

	switch outcome {
	case entity.PaymentOutcomePendingApproval:
		uc.deps.dispatch(ctx, event.New(event.PendingForApproval, sr.ID, string(sr.Status)))
	case entity.PaymentOutcomeExtraStarted:
		uc.deps.dispatch(ctx, event.New(event.ExtraServiceRequestPaymentDone, sr.ID, string(sr.Status)))
	}
	return payment, nil
}

func (uc *ConfirmPaymentUseCase) earnedPoints(p *entity.Payment) int64 {
	rate := uc.deps.Settings.LoyaltyEarnRate
	if !rate.IsPositive() {
		return 0
	}
	return p.Price.Mul(rate).IntPart()
}
