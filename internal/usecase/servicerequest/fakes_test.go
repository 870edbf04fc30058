package servicerequest_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
	"github.com/shopspring/decimal"
)

type fakeRequests struct {
	requests map[uuid.UUID]*entity.ServiceRequest
	payments map[string]*entity.Payment
	hidden    map[uuid.UUID]bool
	created   int
	createErr error
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{
		requests: make(map[uuid.UUID]*entity.ServiceRequest),
		payments: make(map[string]*entity.Payment),
		hidden:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeRequests) put(r *entity.ServiceRequest) *entity.ServiceRequest {
	f.requests[r.ID] = r
	return r
}

func (f *fakeRequests) Create(ctx context.Context, r *entity.ServiceRequest, p *entity.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created++
	f.requests[r.ID] = r
	if p != nil {
		f.payments[p.InvoiceID] = p
	}
	return nil
}

func (f *fakeRequests) AddPayment(ctx context.Context, p *entity.Payment) error {
	f.payments[p.InvoiceID] = p
	return nil
}

func (f *fakeRequests) FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceRequest, error) {
	if r, ok := f.requests[id]; ok {
		return r, nil
	}
	return nil, apperror.ErrServiceRequestNotFound
}

func (f *fakeRequests) FindExtras(ctx context.Context, parentID uuid.UUID) ([]*entity.ServiceRequest, error) {
	var out []*entity.ServiceRequest
	for _, r := range f.requests {
		if r.ParentID != nil && *r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRequests) IsVisible(ctx context.Context, id uuid.UUID, viewer repository.Viewer) (bool, error) {
	_, ok := f.requests[id]
	return ok && !f.hidden[id], nil
}

func (f *fakeRequests) List(ctx context.Context, filter repository.ServiceRequestFilter) ([]*entity.ServiceRequest, int, error) {
	var out []*entity.ServiceRequest
	for _, r := range f.requests {
		if filter.ParentsOnly && r.IsExtra() {
			continue
		}
		if filter.Viewer.Role != models.RoleAdmin && r.RequesterID != filter.Viewer.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeRequests) Count(ctx context.Context, filter repository.ServiceRequestFilter) (int, error) {
	_, n, err := f.List(ctx, filter)
	return n, err
}

func clone(r *entity.ServiceRequest) *entity.ServiceRequest {
	c := *r
	c.AssigneeIDs = append([]uuid.UUID(nil), r.AssigneeIDs...)
	c.Rejections = append([]entity.ProviderRejection(nil), r.Rejections...)
	return &c
}

// Mutate работает на копиях, чтобы ошибка fn не оставляла изменений.
func (f *fakeRequests) Mutate(ctx context.Context, id uuid.UUID, fn repository.MutateFunc) (*entity.ServiceRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, apperror.ErrServiceRequestNotFound
	}
	sr := clone(r)
	originals, _ := f.FindExtras(ctx, id)
	extras := make([]*entity.ServiceRequest, len(originals))
	for i, e := range originals {
		extras[i] = clone(e)
	}
	if err := fn(sr, extras); err != nil {
		return nil, err
	}
	f.requests[sr.ID] = sr
	for _, e := range extras {
		f.requests[e.ID] = e
	}
	return sr, nil
}

func (f *fakeRequests) ApplyPayment(ctx context.Context, invoiceID string, fn repository.PaymentFunc) (*entity.Payment, *entity.ServiceRequest, error) {
	p, ok := f.payments[invoiceID]
	if !ok {
		return nil, nil, apperror.ErrPaymentNotFound
	}
	r, ok := f.requests[p.ServiceRequestID]
	if !ok {
		return nil, nil, apperror.ErrServiceRequestNotFound
	}
	pc := *p
	sr := clone(r)
	if err := fn(&pc, sr); err != nil {
		return nil, nil, err
	}
	// начисленные баллы хранятся в журнале, а не в платеже
	stored := pc
	stored.EarnedPoints = 0
	f.payments[invoiceID] = &stored
	f.requests[sr.ID] = sr
	return &pc, sr, nil
}

func (f *fakeRequests) CompletedPayments(ctx context.Context, requestID uuid.UUID) ([]entity.Payment, error) {
	var out []entity.Payment
	for _, p := range f.payments {
		if p.ServiceRequestID == requestID && p.IsComplete() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRequests) LoadParties(ctx context.Context, r *entity.ServiceRequest) (*repository.RequestParties, error) {
	return &repository.RequestParties{Requester: repository.PartySummary{ID: r.RequesterID, Name: "Client"}}, nil
}

type fakeFeatures struct {
	features map[uuid.UUID]*entity.Feature
}

func (f *fakeFeatures) FindFeature(ctx context.Context, id uuid.UUID) (*entity.Feature, error) {
	if ft, ok := f.features[id]; ok {
		return ft, nil
	}
	return nil, apperror.ErrFeatureNotFound
}

type fakeParties struct {
	providers map[uuid.UUID]*repository.ProviderRef
	roles     map[uuid.UUID]string
	addresses map[uuid.UUID]uuid.UUID
}

func newFakeParties() *fakeParties {
	return &fakeParties{
		providers: make(map[uuid.UUID]*repository.ProviderRef),
		roles:     make(map[uuid.UUID]string),
		addresses: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeParties) ProviderByUser(ctx context.Context, userID uuid.UUID) (*repository.ProviderRef, error) {
	for _, p := range f.providers {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperror.ErrProviderNotFound
}

func (f *fakeParties) ProviderByID(ctx context.Context, id uuid.UUID) (*repository.ProviderRef, error) {
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return nil, apperror.ErrProviderNotFound
}

func (f *fakeParties) FilterUsersByRole(ctx context.Context, ids []uuid.UUID, role string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		if f.roles[id] == role {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeParties) AddressOwner(ctx context.Context, addressID uuid.UUID) (uuid.UUID, error) {
	if owner, ok := f.addresses[addressID]; ok {
		return owner, nil
	}
	return uuid.Nil, apperror.ErrAddressNotFound
}

type fakeGateway struct {
	fail  bool
	calls int
	paid  map[string]bool
}

func (g *fakeGateway) Initiate(ctx context.Context, sr *entity.ServiceRequest, payerID uuid.UUID, discount servicerequest.DiscountInput) (*entity.Payment, error) {
	g.calls++
	if g.fail {
		return nil, apperror.ErrPaymentInitiation
	}
	invoice := "cs_test_" + uuid.NewString()
	return &entity.Payment{
		ID:               uuid.New(),
		ServiceRequestID: sr.ID,
		UserID:           payerID,
		Price:            sr.Price,
		InvoiceID:        invoice,
		PaymentURL:       "https://checkout.stripe.com/pay/" + invoice,
		Status:           valueobject.PaymentStatusPending,
		TaxAmount:        sr.TaxAmount,
		PriceWithTax:     sr.PriceWithTax,
		AmountDiscounted: decimal.Zero,
		CreatedAt:        time.Now(),
	}, nil
}

func (g *fakeGateway) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	return g.paid[invoiceID], nil
}

type fakeStorage struct {
	saved   []string
	deleted []string
	// limit число успешных сохранений, после него Save падает; 0 без ограничений
	limit int
}

func (s *fakeStorage) Save(ctx context.Context, folder, filename string, r io.Reader, size int64) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if s.limit > 0 && len(s.saved) >= s.limit {
		return "", errors.New("storage unavailable")
	}
	key := folder + "/" + filename
	s.saved = append(s.saved, key)
	return key, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []event.RequestEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev event.RequestEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *recordingDispatcher) kinds() []event.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Kind, 0, len(d.events))
	for _, ev := range d.events {
		out = append(out, ev.Kind)
	}
	return out
}

func textFile(name, body string) servicerequest.File {
	return servicerequest.File{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

var errBoom = errors.New("boom")

type fixture struct {
	requests   *fakeRequests
	features   *fakeFeatures
	parties    *fakeParties
	gateway    *fakeGateway
	storage    *fakeStorage
	dispatcher *recordingDispatcher
	deps       *servicerequest.Deps

	feature  *entity.Feature
	client   servicerequest.Actor
	admin    servicerequest.Actor
	provider servicerequest.Actor
	employee servicerequest.Actor

	providerID uuid.UUID
	addressID  uuid.UUID
	now        time.Time
}

func newFixture() *fixture {
	fx := &fixture{
		requests:   newFakeRequests(),
		parties:    newFakeParties(),
		gateway:    &fakeGateway{paid: make(map[string]bool)},
		storage:    &fakeStorage{},
		dispatcher: &recordingDispatcher{},
		client:     servicerequest.Actor{UserID: uuid.New(), Role: models.RoleClient},
		admin:      servicerequest.Actor{UserID: uuid.New(), Role: models.RoleAdmin},
		provider:   servicerequest.Actor{UserID: uuid.New(), Role: models.RoleServiceProvider},
		employee:   servicerequest.Actor{UserID: uuid.New(), Role: models.RoleServiceProviderEmployee},
		providerID: uuid.New(),
		addressID:  uuid.New(),
		now:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	hours := decimal.RequireFromString("35")
	materials := decimal.RequireFromString("10")
	fx.feature = &entity.Feature{
		ID:       uuid.New(),
		Name:     "Home cleaning",
		IsActive: true,
		Fields: []entity.ServiceField{
			{ID: uuid.New(), Name: "hours", Label: "Hours", Type: valueobject.FieldTypeInteger, IsPriceUnit: true, PricePerUnit: &hours, IsRequired: true, IsActive: true},
			{ID: uuid.New(), Name: "materials", Label: "Materials", Type: valueobject.FieldTypeBoolean, IsPriceUnit: true, PricePerUnit: &materials, IsActive: true},
			{ID: uuid.New(), Name: "photo", Label: "Photo", Type: valueobject.FieldTypeImage, IsActive: true},
		},
	}
	fx.features = &fakeFeatures{features: map[uuid.UUID]*entity.Feature{fx.feature.ID: fx.feature}}

	fx.parties.providers[fx.providerID] = &repository.ProviderRef{ID: fx.providerID, UserID: fx.provider.UserID, Name: "Sparkle LLC"}
	fx.parties.roles[fx.employee.UserID] = models.RoleServiceProviderEmployee
	fx.parties.roles[fx.client.UserID] = models.RoleClient
	fx.parties.addresses[fx.addressID] = fx.client.UserID

	fx.deps = &servicerequest.Deps{
		Requests:   fx.requests,
		Features:   fx.features,
		Parties:    fx.parties,
		Payments:   fx.gateway,
		Verifier:   fx.gateway,
		Storage:    fx.storage,
		Dispatcher: fx.dispatcher,
		Settings: servicerequest.Settings{
			TaxPercentage:   decimal.NewFromInt(5),
			LoyaltyEarnRate: decimal.RequireFromString("0.1"),
		},
		Now: func() time.Time { return fx.now },
	}
	return fx
}

// request кладёт в хранилище заявку клиента в заданном статусе.
func (fx *fixture) request(status valueobject.RequestStatus) *entity.ServiceRequest {
	sr, err := entity.NewServiceRequest(fx.feature.ID, fx.client.UserID, fx.addressID, fx.now.Add(48*time.Hour), nil, "")
	if err != nil {
		panic(err)
	}
	sr.Status = status
	sr.SetPrice(decimal.NewFromInt(105), decimal.NewFromInt(5))
	return fx.requests.put(sr)
}

func (fx *fixture) extra(parent *entity.ServiceRequest, status valueobject.RequestStatus) *entity.ServiceRequest {
	e, err := entity.NewExtraRequest(parent, "one more hour")
	if err != nil {
		panic(err)
	}
	e.Status = status
	return fx.requests.put(e)
}

func (fx *fixture) assigned(sr *entity.ServiceRequest) *entity.ServiceRequest {
	id := fx.providerID
	sr.AssignedProviderID = &id
	return sr
}
