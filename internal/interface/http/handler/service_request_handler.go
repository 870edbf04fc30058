package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/interface/http/dto"
	"github.com/ignatzorin/services-marketplace/internal/interface/http/response"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
)

const (
	maxMultipartMemory = 32 << 20
	maxWebhookBytes    = 1 << 20
)

// служебные поля формы заявки, остальные ключи считаются значениями динамических полей
var reservedFormKeys = map[string]struct{}{
	"address":            {},
	"primary_schedule":   {},
	"secondary_schedule": {},
	"description":        {},
	"parent":             {},
	"promo_code":         {},
	"loyalty_points":     {},
	"attachments":        {},
	"audio_note":         {},
}

// WebhookParser проверяет подпись уведомления шлюза и возвращает оплаченный счёт.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (string, error)
}

type ServiceRequestHandler struct {
	createUC     *servicerequest.CreateUseCase
	priceUC      *servicerequest.PriceUseCase
	transitionUC *servicerequest.TransitionUseCase
	paymentURLUC *servicerequest.PaymentURLUseCase
	confirmUC    *servicerequest.ConfirmPaymentUseCase
	queryUC      *servicerequest.QueryUseCase
	webhooks     WebhookParser
}

func NewServiceRequestHandler(deps *servicerequest.Deps, webhooks WebhookParser) *ServiceRequestHandler {
	return &ServiceRequestHandler{
		createUC:     servicerequest.NewCreateUseCase(deps),
		priceUC:      servicerequest.NewPriceUseCase(deps),
		transitionUC: servicerequest.NewTransitionUseCase(deps),
		paymentURLUC: servicerequest.NewPaymentURLUseCase(deps),
		confirmUC:    servicerequest.NewConfirmPaymentUseCase(deps),
		queryUC:      servicerequest.NewQueryUseCase(deps),
		webhooks:     webhooks,
	}
}

func (h *ServiceRequestHandler) listInput(c *gin.Context) (servicerequest.ListInput, error) {
	var in servicerequest.ListInput
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			status, err := valueobject.NewRequestStatus(s)
			if err != nil {
				return in, apperror.Field("status", "Select a valid choice. "+s+" is not one of the available choices.")
			}
			in.Statuses = append(in.Statuses, status)
		}
	}

	var err error
	if in.AssigneeID, err = optionalUUIDQuery(c, "assign"); err != nil {
		return in, err
	}
	if in.AssignedProviderID, err = optionalUUIDQuery(c, "assigned_service_provider"); err != nil {
		return in, err
	}
	if in.RejectedByProviderID, err = optionalUUIDQuery(c, "service_provider_rejected"); err != nil {
		return in, err
	}
	in.Query = c.Query("query")
	in.Limit = parseIntQuery(c, "limit", 20)
	in.Offset = parseIntQuery(c, "offset", 0)
	return in, nil
}

// List GET /service-requests.
func (h *ServiceRequestHandler) List(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	in, err := h.listInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.queryUC.List(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToServiceRequestList(items), total)
}

// Count GET /service-requests/count.
func (h *ServiceRequestHandler) Count(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	in, err := h.listInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	n, err := h.queryUC.Count(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.CountResponse{Count: n})
}

// Get GET /service-requests/:id.
func (h *ServiceRequestHandler) Get(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	details, err := h.queryUC.Get(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToServiceRequestDetails(details))
}

type transitionFunc func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error)

// transition общий каркас PATCH /service-requests/:id/<action>.
func (h *ServiceRequestHandler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := getActor(c)
		if !ok {
			response.Unauthorized(c, "Authentication credentials were not provided.")
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			response.Error(c, err)
			return
		}

		sr, err := fn(c, id, actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto.ToServiceRequestResponse(sr))
	}
}

func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && err != io.EOF {
		return apperror.Field("non_field_errors", "Invalid request body: "+err.Error())
	}
	return nil
}

func (h *ServiceRequestHandler) Approve() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		return h.transitionUC.Approve(c.Request.Context(), id, actor)
	})
}

func (h *ServiceRequestHandler) Reject() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		var req dto.RejectRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, err
		}
		return h.transitionUC.Reject(c.Request.Context(), id, actor, req.RejectionReason)
	})
}

func (h *ServiceRequestHandler) SupplierAccept() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		return h.transitionUC.SupplierAccept(c.Request.Context(), id, actor)
	})
}

func (h *ServiceRequestHandler) SupplierReject() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		var req dto.RejectRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, err
		}
		return h.transitionUC.SupplierReject(c.Request.Context(), id, actor, req.RejectionReason)
	})
}

func (h *ServiceRequestHandler) MarkInProgress() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		return h.transitionUC.MarkInProgress(c.Request.Context(), id, actor)
	})
}

func (h *ServiceRequestHandler) MarkCompleted() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		return h.transitionUC.MarkCompleted(c.Request.Context(), id, actor)
	})
}

func (h *ServiceRequestHandler) AcceptCompletion() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		return h.transitionUC.AcceptCompletion(c.Request.Context(), id, actor)
	})
}

func (h *ServiceRequestHandler) Reschedule() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		var req dto.RescheduleRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, err
		}
		if req.PrimarySchedule.IsZero() {
			return nil, apperror.Field("primary_schedule", "This field is required.")
		}
		return h.transitionUC.Reschedule(c.Request.Context(), id, actor, req.PrimarySchedule, req.SecondarySchedule)
	})
}

func (h *ServiceRequestHandler) Assign() gin.HandlerFunc {
	return h.transition(func(c *gin.Context, id uuid.UUID, actor servicerequest.Actor) (*entity.ServiceRequest, error) {
		var req dto.AssignRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, err
		}
		return h.transitionUC.Assign(c.Request.Context(), id, actor, req.Assign)
	})
}

// PaymentURL POST /service-requests/:id/get-payment-url.
func (h *ServiceRequestHandler) PaymentURL(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.PaymentURLRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.paymentURLUC.Execute(c.Request.Context(), id, actor, req.Discount())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(p))
}

// requestForm поля формы заявки после разбора multipart или JSON тела.
type requestForm struct {
	values      map[string]string
	files       map[string]servicerequest.File
	attachments []servicerequest.File
	audioNote   *servicerequest.File
}

type jsonRequestForm struct {
	Address           string            `json:"address"`
	PrimarySchedule   string            `json:"primary_schedule"`
	SecondarySchedule string            `json:"secondary_schedule"`
	Description       string            `json:"description"`
	Parent            string            `json:"parent"`
	PromoCode         string            `json:"promo_code"`
	LoyaltyPoints     int64             `json:"loyalty_points"`
	Values            map[string]string `json:"values"`
}

func fileFromHeader(fh *multipart.FileHeader) servicerequest.File {
	return servicerequest.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// readForm читает служебные поля в meta, динамические в values, файлы в files.
func readForm(c *gin.Context) (meta map[string]string, form requestForm, err error) {
	form.values = map[string]string{}
	form.files = map[string]servicerequest.File{}
	meta = map[string]string{}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body jsonRequestForm
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, form, apperror.Field("non_field_errors", "Invalid request body: "+err.Error())
		}
		meta["address"] = body.Address
		meta["primary_schedule"] = body.PrimarySchedule
		meta["secondary_schedule"] = body.SecondarySchedule
		meta["description"] = body.Description
		meta["parent"] = body.Parent
		meta["promo_code"] = body.PromoCode
		if body.LoyaltyPoints != 0 {
			meta["loyalty_points"] = strconv.FormatInt(body.LoyaltyPoints, 10)
		}
		for k, v := range body.Values {
			form.values[k] = v
		}
		return meta, form, nil
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, form, apperror.Field("non_field_errors", "Invalid multipart form.")
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, form, apperror.Field("non_field_errors", "Invalid form.")
	}

	for key, vals := range c.Request.PostForm {
		if len(vals) == 0 {
			continue
		}
		if _, ok := reservedFormKeys[key]; ok {
			meta[key] = vals[0]
			continue
		}
		form.values[key] = vals[0]
	}

	if mf := c.Request.MultipartForm; mf != nil {
		for key, headers := range mf.File {
			if len(headers) == 0 {
				continue
			}
			switch key {
			case "attachments":
				for _, fh := range headers {
					form.attachments = append(form.attachments, fileFromHeader(fh))
				}
			case "audio_note":
				f := fileFromHeader(headers[0])
				form.audioNote = &f
			default:
				form.files[key] = fileFromHeader(headers[0])
			}
		}
	}
	return meta, form, nil
}

func createInput(featureID uuid.UUID, actor servicerequest.Actor, meta map[string]string, form requestForm, extra bool) (servicerequest.CreateInput, error) {
	in := servicerequest.CreateInput{
		FeatureID:   featureID,
		Actor:       actor,
		Description: meta["description"],
		Values:      form.values,
		Files:       form.files,
		Attachments: form.attachments,
		AudioNote:   form.audioNote,
		Discount:    servicerequest.DiscountInput{PromoCode: meta["promo_code"]},
	}

	fields := map[string]string{}
	if raw := meta["loyalty_points"]; raw != "" {
		points, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || points < 0 {
			fields["loyalty_points"] = "A valid integer is required."
		}
		in.Discount.LoyaltyPoints = points
	}

	if extra {
		parentID, err := uuid.Parse(meta["parent"])
		if err != nil {
			fields["parent"] = "This field is required."
		} else {
			in.ParentID = &parentID
		}
	} else {
		addressID, err := uuid.Parse(meta["address"])
		if err != nil {
			fields["address"] = "This field is required."
		}
		in.AddressID = addressID

		primary, ok := parseSchedule(meta["primary_schedule"])
		switch {
		case !ok:
			fields["primary_schedule"] = scheduleFormatMessage
		case primary == nil:
			fields["primary_schedule"] = "This field is required."
		default:
			in.PrimarySchedule = *primary
		}
		secondary, ok := parseSchedule(meta["secondary_schedule"])
		if !ok {
			fields["secondary_schedule"] = scheduleFormatMessage
		}
		in.SecondarySchedule = secondary
	}

	if len(fields) > 0 {
		return in, apperror.Fields(fields)
	}
	return in, nil
}

func (h *ServiceRequestHandler) create(c *gin.Context, extra bool) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	featureID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	meta, form, err := readForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	in, err := createInput(featureID, actor, meta, form, extra)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.createUC.Execute(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToCreateServiceRequestResponse(res))
}

// Create POST /features/:id/service-request.
func (h *ServiceRequestHandler) Create(c *gin.Context) {
	h.create(c, false)
}

// CreateExtra POST /features/:id/extra-service-request.
func (h *ServiceRequestHandler) CreateExtra(c *gin.Context) {
	h.create(c, true)
}

// Price POST /features/:id/get-service-request-price.
func (h *ServiceRequestHandler) Price(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		response.Unauthorized(c, "Authentication credentials were not provided.")
		return
	}
	featureID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	_, form, err := readForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.priceUC.Execute(c.Request.Context(), featureID, actor, form.values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quote)
}

// PaymentReturn GET /service-request/payments?invoice_id=. Страница возврата из шлюза.
func (h *ServiceRequestHandler) PaymentReturn(c *gin.Context) {
	invoiceID := c.Query("invoice_id")
	if invoiceID == "" {
		response.Error(c, apperror.Field("invoice_id", "This field is required."))
		return
	}
	if c.Query("cancelled") != "" {
		response.Success(c, gin.H{"status": "cancelled", "invoice_id": invoiceID})
		return
	}

	p, err := h.confirmUC.Execute(c.Request.Context(), invoiceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(p))
}

// Webhook POST /payments/webhook.
func (h *ServiceRequestHandler) Webhook(c *gin.Context) {
	if h.webhooks == nil {
		response.NotFound(c, "Not found.")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}

	invoiceID, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if logger.Log != nil {
			logger.Log.WithError(err).Warn("payments: webhook отклонён")
		}
		response.BadRequest(c, "invalid signature")
		return
	}
	if invoiceID == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if _, err := h.confirmUC.ApplyVerified(c.Request.Context(), invoiceID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
