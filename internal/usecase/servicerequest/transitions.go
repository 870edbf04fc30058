package servicerequest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

// TransitionUseCase переходы статусов заявки. Каждый переход выполняется под
// блокировкой строки заявки, уведомление уходит после фиксации транзакции.
type TransitionUseCase struct {
	deps *Deps
}

func NewTransitionUseCase(deps *Deps) *TransitionUseCase {
	return &TransitionUseCase{deps: deps}
}

func (uc *TransitionUseCase) mutate(ctx context.Context, id uuid.UUID, actor Actor, fn func(v repository.Viewer, r *entity.ServiceRequest, extras []*entity.ServiceRequest) error) (*entity.ServiceRequest, error) {
	v, err := uc.deps.ensureVisible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	sr, err := uc.deps.Requests.Mutate(ctx, id, func(r *entity.ServiceRequest, extras []*entity.ServiceRequest) error {
		return fn(v, r, extras)
	})
	if err != nil {
		return nil, err
	}
	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": sr.ID,
			"status":     sr.Status,
			"actor_id":   actor.UserID,
		}).Info("заявка обновлена")
	}
	return sr, nil
}

func (uc *TransitionUseCase) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	sr, err := uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		return r.Approve()
	})
	if err != nil {
		return nil, err
	}
	uc.deps.dispatch(ctx, event.New(event.RequestApproved, sr.ID, string(sr.Status)))
	return sr, nil
}

func (uc *TransitionUseCase) Reject(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*entity.ServiceRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	sr, err := uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		return r.Reject(reason)
	})
	if err != nil {
		return nil, err
	}
	uc.deps.dispatch(ctx, event.New(event.RequestRejected, sr.ID, string(sr.Status)))
	return sr, nil
}

// provider возвращает поставщика, от имени которого действует актор.
func (uc *TransitionUseCase) provider(ctx context.Context, actor Actor) (*repository.ProviderRef, error) {
	if actor.Role != models.RoleServiceProvider {
		return nil, apperror.ErrForbidden
	}
	p, err := uc.deps.Parties.ProviderByUser(ctx, actor.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrForbidden
		}
		return nil, err
	}
	return p, nil
}

func (uc *TransitionUseCase) SupplierAccept(ctx context.Context, id uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	p, err := uc.provider(ctx, actor)
	if err != nil {
		return nil, err
	}
	outcome := entity.PaymentOutcomeNone
	sr, err := uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		if err := r.SupplierAccept(p.ID); err != nil {
			return err
		}
		if !r.IsExtra() {
			return nil
		}
		// оплата могла прийти раньше принятия, строка заявки уже заблокирована
		payments, err := uc.deps.Requests.CompletedPayments(ctx, r.ID)
		if err != nil {
			return err
		}
		if len(payments) > 0 {
			outcome = r.MarkPaid()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	kind := event.RequestAccepted
	if sr.IsExtra() {
		kind = event.RequestExtraHoursApproved
	}
	uc.deps.dispatch(ctx, event.New(kind, sr.ID, string(sr.Status)))
	if outcome == entity.PaymentOutcomeExtraStarted {
		uc.deps.dispatch(ctx, event.New(event.ExtraServiceRequestPaymentDone, sr.ID, string(sr.Status)))
	}
	return sr, nil
}

func (uc *TransitionUseCase) SupplierReject(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*entity.ServiceRequest, error) {
	p, err := uc.provider(ctx, actor)
	if err != nil {
		return nil, err
	}
	sr, err := uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		return r.SupplierReject(p.ID, p.Name, reason)
	})
	if err != nil {
		return nil, err
	}
	if sr.IsExtra() {
		uc.deps.dispatch(ctx, event.New(event.RequestExtraHoursRejected, sr.ID, string(sr.Status)))
	}
	return sr, nil
}

// canExecute разрешает выполнение работ администратору, назначенному поставщику
// и назначенным сотрудникам.
func canExecute(actor Actor, v repository.Viewer, r *entity.ServiceRequest) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.Role == models.RoleServiceProvider:
		return v.ProviderID != nil && r.IsAssignedTo(*v.ProviderID)
	case actor.Role == models.RoleServiceProviderEmployee:
		return r.IsAssignee(actor.UserID)
	}
	return false
}

func (uc *TransitionUseCase) MarkInProgress(ctx context.Context, id uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	sr, err := uc.mutate(ctx, id, actor, func(v repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		if !canExecute(actor, v, r) {
			return apperror.ErrForbidden
		}
		return r.MarkInProgress()
	})
	if err != nil {
		return nil, err
	}
	uc.deps.dispatch(ctx, event.New(event.RequestStarted, sr.ID, string(sr.Status)))
	return sr, nil
}

// MarkCompleted завершает заявку со стороны поставщика вместе с начатыми
// дополнительными заявками.
func (uc *TransitionUseCase) MarkCompleted(ctx context.Context, id uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	cascaded := 0
	sr, err := uc.mutate(ctx, id, actor, func(v repository.Viewer, r *entity.ServiceRequest, extras []*entity.ServiceRequest) error {
		if !canExecute(actor, v, r) {
			return apperror.ErrForbidden
		}
		if err := r.MarkCompletedByProvider(); err != nil {
			return err
		}
		cascaded = entity.CascadeStatus(extras, valueobject.RequestStatusInProgress, valueobject.RequestStatusCompletedByProvider)
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logCascade(sr.ID, cascaded)
	uc.deps.dispatch(ctx, event.New(event.ServiceRequestCompleted, sr.ID, string(sr.Status)))
	return sr, nil
}

// AcceptCompletion подтверждение выполнения заказчиком.
func (uc *TransitionUseCase) AcceptCompletion(ctx context.Context, id uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	cascaded := 0
	sr, err := uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, extras []*entity.ServiceRequest) error {
		if !r.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		if err := r.AcceptCompletion(); err != nil {
			return err
		}
		cascaded = entity.CascadeStatus(extras, valueobject.RequestStatusCompletedByProvider, valueobject.RequestStatusCompleted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logCascade(sr.ID, cascaded)
	uc.deps.dispatch(ctx, event.New(event.RequestCompletedByClient, sr.ID, string(sr.Status)))
	return sr, nil
}

func (uc *TransitionUseCase) logCascade(id uuid.UUID, n int) {
	if n == 0 || logger.Log == nil {
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"request_id": id,
		"extras":     n,
	}).Info("статус перенесён на дополнительные заявки")
}

// Assign назначает сотрудников. В списке допустимы только пользователи с ролью
// сотрудника поставщика.
func (uc *TransitionUseCase) Assign(ctx context.Context, id uuid.UUID, actor Actor, userIDs []uuid.UUID) (*entity.ServiceRequest, error) {
	if len(userIDs) == 0 {
		return nil, apperror.Field("assign", "Assign list can not be empty.")
	}
	employees, err := uc.deps.Parties.FilterUsersByRole(ctx, userIDs, models.RoleServiceProviderEmployee)
	if err != nil {
		return nil, err
	}
	allowed := make(map[uuid.UUID]struct{}, len(employees))
	for _, e := range employees {
		allowed[e] = struct{}{}
	}
	for _, uid := range userIDs {
		if _, ok := allowed[uid]; !ok {
			return nil, apperror.Field("assign", `Invalid pk "`+uid.String()+`" - object does not exist.`)
		}
	}

	var added []uuid.UUID
	sr, err := uc.mutate(ctx, id, actor, func(v repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		if !actor.IsAdmin() && (v.ProviderID == nil || !r.IsAssignedTo(*v.ProviderID)) {
			return apperror.ErrForbidden
		}
		var err error
		added, err = r.Assign(userIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		uc.deps.dispatch(ctx, event.New(event.RequestAssigned, sr.ID, string(sr.Status), added...))
	}
	return sr, nil
}

// Reschedule меняет только время визита.
func (uc *TransitionUseCase) Reschedule(ctx context.Context, id uuid.UUID, actor Actor, primary time.Time, secondary *time.Time) (*entity.ServiceRequest, error) {
	now := uc.deps.now()
	notice := uc.deps.Settings.rescheduleNotice()
	return uc.mutate(ctx, id, actor, func(_ repository.Viewer, r *entity.ServiceRequest, _ []*entity.ServiceRequest) error {
		if !r.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		return r.Reschedule(primary, secondary, now, notice)
	})
}
