package servicerequest

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Actor пользователь, выполняющий операцию.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// DiscountInput промокод или баллы лояльности, промокод имеет приоритет.
type DiscountInput struct {
	PromoCode     string
	LoyaltyPoints int64
}

// PaymentInitiator создаёт платёжную сессию. Ничего не сохраняет.
type PaymentInitiator interface {
	Initiate(ctx context.Context, sr *entity.ServiceRequest, payerID uuid.UUID, discount DiscountInput) (*entity.Payment, error)
}

type PaymentVerifier interface {
	IsPaid(ctx context.Context, invoiceID string) (bool, error)
}

// FileStorage сохраняет загруженный файл и возвращает ключ.
type FileStorage interface {
	Save(ctx context.Context, folder, filename string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// File загруженный клиентом файл.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

type Settings struct {
	TaxPercentage    decimal.Decimal
	RescheduleNotice time.Duration
	// баллы за единицу оплаченной суммы
	LoyaltyEarnRate decimal.Decimal
}

func (s Settings) rescheduleNotice() time.Duration {
	if s.RescheduleNotice <= 0 {
		return entity.DefaultRescheduleNotice
	}
	return s.RescheduleNotice
}

// Deps общие зависимости сценариев заявок.
type Deps struct {
	Requests   repository.ServiceRequestRepository
	Features   repository.FeatureReader
	Parties    repository.PartyReader
	Payments   PaymentInitiator
	Verifier   PaymentVerifier
	Storage    FileStorage
	Dispatcher event.Dispatcher
	Settings   Settings
	Now        func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// dispatch отправляет событие, ошибка доставки только логируется.
func (d *Deps) dispatch(ctx context.Context, ev event.RequestEvent) {
	if d.Dispatcher == nil {
		return
	}
	if err := d.Dispatcher.Dispatch(ctx, ev); err != nil && logger.Log != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"kind":       ev.Kind,
			"request_id": ev.RequestID,
		}).Warn("servicerequest: не удалось отправить событие")
	}
}

// viewer строит условие видимости для актора.
func (d *Deps) viewer(ctx context.Context, actor Actor) (repository.Viewer, error) {
	v := repository.Viewer{UserID: actor.UserID, Role: actor.Role}
	if actor.Role != models.RoleServiceProvider {
		return v, nil
	}
	p, err := d.Parties.ProviderByUser(ctx, actor.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return v, nil
		}
		return v, err
	}
	v.ProviderID = &p.ID
	return v, nil
}

// ensureVisible возвращает 404, если заявка недоступна актору.
func (d *Deps) ensureVisible(ctx context.Context, id uuid.UUID, actor Actor) (repository.Viewer, error) {
	v, err := d.viewer(ctx, actor)
	if err != nil {
		return v, err
	}
	if actor.IsAdmin() {
		return v, nil
	}
	ok, err := d.Requests.IsVisible(ctx, id, v)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, apperror.ErrServiceRequestNotFound
	}
	return v, nil
}
