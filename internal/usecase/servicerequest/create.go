package servicerequest

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

const (
	valuesFolder      = "direct_service/values"
	attachmentsFolder = "direct_service/attachments"
	audioFolder       = "direct_service/audio"
)

type CreateInput struct {
	FeatureID         uuid.UUID
	Actor             Actor
	ParentID          *uuid.UUID
	AddressID         uuid.UUID
	PrimarySchedule   time.Time
	SecondarySchedule *time.Time
	Description       string
	Values            map[string]string
	Files             map[string]File
	Attachments       []File
	AudioNote         *File
	Discount          DiscountInput
}

type CreateResult struct {
	Request *entity.ServiceRequest
	Payment *entity.Payment
}

type CreateUseCase struct {
	deps *Deps
}

func NewCreateUseCase(deps *Deps) *CreateUseCase {
	return &CreateUseCase{deps: deps}
}

// Execute создаёт основную заявку или, при заданном ParentID, дополнительную.
// Платёжная сессия создаётся до любых записей в базу.
func (uc *CreateUseCase) Execute(ctx context.Context, input CreateInput) (*CreateResult, error) {
	feature, err := uc.deps.Features.FindFeature(ctx, input.FeatureID)
	if err != nil {
		return nil, err
	}
	if !feature.IsActive && !input.Actor.IsAdmin() {
		return nil, apperror.ErrFeatureNotFound
	}

	var sr *entity.ServiceRequest
	var parent *entity.ServiceRequest
	if input.ParentID != nil {
		parent, err = uc.loadParent(ctx, *input.ParentID, feature.ID, input.Actor)
		if err != nil {
			return nil, err
		}
		sr, err = entity.NewExtraRequest(parent, input.Description)
	} else {
		if err := uc.checkAddress(ctx, input.AddressID, input.Actor); err != nil {
			return nil, err
		}
		sr, err = entity.NewServiceRequest(feature.ID, input.Actor.UserID, input.AddressID, input.PrimarySchedule, input.SecondarySchedule, input.Description)
	}
	if err != nil {
		return nil, err
	}

	values, err := resolveInput(feature.FormFields(false), input.Values, input.Files)
	if err != nil {
		return nil, err
	}
	price, err := entity.ComputePrice(values)
	if err != nil {
		return nil, fmt.Errorf("servicerequest: compute price: %w", err)
	}
	sr.SetPrice(price, uc.deps.Settings.TaxPercentage)

	payment, err := uc.deps.Payments.Initiate(ctx, sr, input.Actor.UserID, input.Discount)
	if err != nil {
		return nil, err
	}

	keys, err := uc.storeFiles(ctx, sr, values, input)
	if err != nil {
		uc.discardFiles(ctx, keys)
		return nil, err
	}

	if err := uc.deps.Requests.Create(ctx, sr, payment); err != nil {
		uc.discardFiles(ctx, keys)
		return nil, err
	}

	if parent != nil {
		uc.deps.dispatch(ctx, event.New(event.ExtraHoursServiceRequest, parent.ID, string(parent.Status)))
	}

	return &CreateResult{Request: sr, Payment: payment}, nil
}

func (uc *CreateUseCase) loadParent(ctx context.Context, parentID, featureID uuid.UUID, actor Actor) (*entity.ServiceRequest, error) {
	parent, err := uc.deps.Requests.FindByID(ctx, parentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Field("parent", "Invalid pk - object does not exist.")
		}
		return nil, err
	}
	if !parent.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.Field("parent", "Invalid pk - object does not exist.")
	}
	if parent.FeatureID != featureID {
		return nil, apperror.Field("parent", "Parent request belongs to another feature.")
	}
	if parent.AssignedProviderID == nil {
		return nil, apperror.Field("parent", "Service request has no assigned supplier yet.")
	}
	return parent, nil
}

func (uc *CreateUseCase) checkAddress(ctx context.Context, addressID uuid.UUID, actor Actor) error {
	if addressID == uuid.Nil {
		return apperror.Field("address", "This field is required.")
	}
	owner, err := uc.deps.Parties.AddressOwner(ctx, addressID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.Field("address", "Invalid pk - object does not exist.")
		}
		return err
	}
	if owner != actor.UserID {
		return apperror.Field("address", "Invalid pk - object does not exist.")
	}
	return nil
}

// storeFiles загружает файлы полей, вложения и аудиозаметку, подставляя ключи хранилища.
// Ключи уже сохранённых файлов возвращаются и при ошибке.
func (uc *CreateUseCase) storeFiles(ctx context.Context, sr *entity.ServiceRequest, values []entity.ResolvedValue, input CreateInput) ([]string, error) {
	var keys []string
	sr.Values = make([]entity.ServiceRequestValue, 0, len(values))
	for _, v := range values {
		value := v.Value
		if v.Field.Type.IsFile() {
			f, ok := input.Files[v.Field.Name]
			if !ok {
				return keys, apperror.Field(v.Field.Name, "No file was submitted.")
			}
			key, err := uc.save(ctx, valuesFolder, f)
			if err != nil {
				return keys, err
			}
			keys = append(keys, key)
			value = key
		}
		sr.Values = append(sr.Values, entity.ServiceRequestValue{
			ID:        uuid.New(),
			FieldID:   v.Field.ID,
			FieldName: v.Field.Name,
			FieldType: v.Field.Type,
			Label:     v.Field.Label,
			Value:     value,
		})
	}

	for _, f := range input.Attachments {
		key, err := uc.save(ctx, attachmentsFolder, f)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
		sr.Attachments = append(sr.Attachments, entity.ServiceRequestAttachment{ID: uuid.New(), Key: key, CreatedAt: sr.CreatedAt})
	}

	if input.AudioNote != nil {
		key, err := uc.save(ctx, audioFolder, *input.AudioNote)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
		sr.AudioNote = &key
	}
	return keys, nil
}

// discardFiles удаляет файлы заявки, которая не была сохранена. Контекст
// запроса к этому моменту может быть уже отменён.
func (uc *CreateUseCase) discardFiles(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := uc.deps.Storage.Delete(ctx, key); err != nil && logger.Log != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("не удалось удалить файл несохранённой заявки")
		}
	}
}

func (uc *CreateUseCase) save(ctx context.Context, folder string, f File) (string, error) {
	if f.Size == 0 {
		return "", apperror.Field("attachments", "The submitted file is empty.")
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("servicerequest: open upload: %w", err)
	}
	defer rc.Close()
	return uc.deps.Storage.Save(ctx, folder, path.Base(f.Name), rc, f.Size)
}

// resolveInput объединяет текстовые значения с именами загруженных файлов и проверяет форму.
func resolveInput(fields []entity.ServiceField, values map[string]string, files map[string]File) ([]entity.ResolvedValue, error) {
	input := make(map[string]string, len(values)+len(files))
	for k, v := range values {
		input[k] = v
	}
	for _, field := range fields {
		if !field.Type.IsFile() {
			continue
		}
		if f, ok := files[field.Name]; ok {
			input[field.Name] = f.Name
		}
	}
	return entity.ResolveValues(fields, input)
}

type PriceQuote struct {
	Price        decimal.Decimal `json:"price"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	PriceWithTax decimal.Decimal `json:"price_with_tax"`
}

type PriceUseCase struct {
	deps *Deps
}

func NewPriceUseCase(deps *Deps) *PriceUseCase {
	return &PriceUseCase{deps: deps}
}

// Execute считает цену только по полям с единицей цены, расписание и адрес не нужны.
func (uc *PriceUseCase) Execute(ctx context.Context, featureID uuid.UUID, actor Actor, values map[string]string) (*PriceQuote, error) {
	feature, err := uc.deps.Features.FindFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if !feature.IsActive && !actor.IsAdmin() {
		return nil, apperror.ErrFeatureNotFound
	}

	resolved, err := entity.ResolveValues(feature.FormFields(true), values)
	if err != nil {
		return nil, err
	}
	price, err := entity.ComputePrice(resolved)
	if err != nil {
		return nil, fmt.Errorf("servicerequest: compute price: %w", err)
	}
	tax := valueobject.ApplyTax(price, uc.deps.Settings.TaxPercentage)
	return &PriceQuote{Price: price, TaxAmount: tax.TaxAmount, PriceWithTax: tax.PriceWithTax}, nil
}
