package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
)

type RejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type RescheduleRequest struct {
	PrimarySchedule   time.Time  `json:"primary_schedule"`
	SecondarySchedule *time.Time `json:"secondary_schedule"`
}

type AssignRequest struct {
	Assign []uuid.UUID `json:"assign"`
}

type PaymentURLRequest struct {
	PromoCode     string `json:"promo_code"`
	LoyaltyPoints int64  `json:"loyalty_points"`
}

func (r PaymentURLRequest) Discount() servicerequest.DiscountInput {
	return servicerequest.DiscountInput{PromoCode: r.PromoCode, LoyaltyPoints: r.LoyaltyPoints}
}

type ValueResponse struct {
	ID        uuid.UUID `json:"id"`
	Field     uuid.UUID `json:"field"`
	FieldName string    `json:"field_name"`
	FieldType string    `json:"field_type"`
	Label     string    `json:"label"`
	Value     string    `json:"value"`
}

type AttachmentResponse struct {
	ID        uuid.UUID `json:"id"`
	File      string    `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

type RejectionResponse struct {
	ID              uuid.UUID `json:"id"`
	ServiceProvider uuid.UUID `json:"service_provider"`
	ProviderName    string    `json:"service_provider_name"`
	RejectionReason string    `json:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at"`
}

type ServiceRequestResponse struct {
	ID                uuid.UUID            `json:"id"`
	Serial            string               `json:"serial"`
	Feature           uuid.UUID            `json:"service_feature"`
	Status            string               `json:"status"`
	Requester         uuid.UUID            `json:"user"`
	Address           uuid.UUID            `json:"address"`
	PrimarySchedule   time.Time            `json:"primary_schedule"`
	SecondarySchedule *time.Time           `json:"secondary_schedule"`
	Description       string               `json:"description"`
	AudioNote         *string              `json:"audio_note"`
	RejectionReason   *string              `json:"rejection_reason"`
	AssignedProvider  *uuid.UUID           `json:"assigned_service_provider"`
	Parent            *uuid.UUID           `json:"parent"`
	Price             decimal.Decimal      `json:"price"`
	TaxPercentage     decimal.Decimal      `json:"tax_percentage"`
	TaxAmount         decimal.Decimal      `json:"tax_amount"`
	PriceWithTax      decimal.Decimal      `json:"price_with_tax"`
	AssignedTo        []uuid.UUID          `json:"assign"`
	Values            []ValueResponse      `json:"values"`
	Attachments       []AttachmentResponse `json:"attachments"`
	Rejections        []RejectionResponse  `json:"provider_rejections"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

type PaymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	ServiceRequest   uuid.UUID       `json:"service_request"`
	Price            decimal.Decimal `json:"price"`
	InvoiceID        string          `json:"invoice_id"`
	PaymentURL       string          `json:"payment_url"`
	Status           string          `json:"status"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	PriceWithTax     decimal.Decimal `json:"price_with_tax"`
	AmountDiscounted decimal.Decimal `json:"amount_discounted"`
	LoyaltyPoints    int64           `json:"loyalty_points"`
	CompletedAt      *time.Time      `json:"completed_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

type PartyResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
	Photo *string   `json:"photo,omitempty"`
}

type ProviderResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ServiceRequestDetailsResponse карточка заявки с историей, платежами и дополнительными заявками.
type ServiceRequestDetailsResponse struct {
	ServiceRequestResponse
	FeatureName     string                   `json:"service_feature_name"`
	RequestedBy     *PartyResponse           `json:"requested_by"`
	Assignees       []PartyResponse          `json:"assignees"`
	ServiceProvider *ProviderResponse        `json:"service_provider"`
	History         []entity.HistoryStep     `json:"history"`
	Payments        []PaymentResponse        `json:"payments"`
	ExtraRequests   []ServiceRequestResponse `json:"extra_service_requests"`
	IsRejected      bool                     `json:"is_rejected"`
}

// CreateServiceRequestResponse созданная заявка и ссылка на оплату.
type CreateServiceRequestResponse struct {
	ServiceRequest ServiceRequestResponse `json:"service_request"`
	PaymentURL     string                 `json:"payment_url"`
	InvoiceID      string                 `json:"invoice_id"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func ToServiceRequestResponse(r *entity.ServiceRequest) ServiceRequestResponse {
	resp := ServiceRequestResponse{
		ID:                r.ID,
		Serial:            r.Serial,
		Feature:           r.FeatureID,
		Status:            string(r.Status),
		Requester:         r.RequesterID,
		Address:           r.AddressID,
		PrimarySchedule:   r.PrimarySchedule,
		SecondarySchedule: r.SecondarySchedule,
		Description:       r.Description,
		AudioNote:         r.AudioNote,
		RejectionReason:   r.RejectionReason,
		AssignedProvider:  r.AssignedProviderID,
		Parent:            r.ParentID,
		Price:             r.Price,
		TaxPercentage:     r.TaxPercentage,
		TaxAmount:         r.TaxAmount,
		PriceWithTax:      r.PriceWithTax,
		AssignedTo:        r.AssigneeIDs,
		Values:            make([]ValueResponse, len(r.Values)),
		Attachments:       make([]AttachmentResponse, len(r.Attachments)),
		Rejections:        make([]RejectionResponse, len(r.Rejections)),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if resp.AssignedTo == nil {
		resp.AssignedTo = []uuid.UUID{}
	}
	for i, v := range r.Values {
		resp.Values[i] = ValueResponse{
			ID:        v.ID,
			Field:     v.FieldID,
			FieldName: v.FieldName,
			FieldType: string(v.FieldType),
			Label:     v.Label,
			Value:     v.Value,
		}
	}
	for i, a := range r.Attachments {
		resp.Attachments[i] = AttachmentResponse{ID: a.ID, File: a.Key, CreatedAt: a.CreatedAt}
	}
	for i, rej := range r.Rejections {
		resp.Rejections[i] = RejectionResponse{
			ID:              rej.ID,
			ServiceProvider: rej.ProviderID,
			ProviderName:    rej.ProviderName,
			RejectionReason: rej.RejectionReason,
			CreatedAt:       rej.CreatedAt,
		}
	}
	return resp
}

func ToServiceRequestList(items []*entity.ServiceRequest) []ServiceRequestResponse {
	out := make([]ServiceRequestResponse, len(items))
	for i, r := range items {
		out[i] = ToServiceRequestResponse(r)
	}
	return out
}

func ToPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		ServiceRequest:   p.ServiceRequestID,
		Price:            p.Price,
		InvoiceID:        p.InvoiceID,
		PaymentURL:       p.PaymentURL,
		Status:           string(p.Status),
		TaxAmount:        p.TaxAmount,
		PriceWithTax:     p.PriceWithTax,
		AmountDiscounted: p.AmountDiscounted,
		LoyaltyPoints:    p.LoyaltyPoints,
		CompletedAt:      p.CompletedAt,
		CreatedAt:        p.CreatedAt,
	}
}

func toParty(p repository.PartySummary) PartyResponse {
	return PartyResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Photo: p.Photo}
}

func ToServiceRequestDetails(d *servicerequest.Details) ServiceRequestDetailsResponse {
	resp := ServiceRequestDetailsResponse{
		ServiceRequestResponse: ToServiceRequestResponse(d.Request),
		History:                d.History,
		Payments:               make([]PaymentResponse, len(d.Payments)),
		ExtraRequests:          ToServiceRequestList(d.Extras),
		Assignees:              []PartyResponse{},
		IsRejected:             d.IsRejected,
	}
	for i := range d.Payments {
		resp.Payments[i] = ToPaymentResponse(&d.Payments[i])
	}
	if d.Parties != nil {
		requester := toParty(d.Parties.Requester)
		resp.RequestedBy = &requester
		resp.FeatureName = d.Parties.FeatureName
		for _, a := range d.Parties.Assignees {
			resp.Assignees = append(resp.Assignees, toParty(a))
		}
		if d.Parties.Provider != nil {
			resp.ServiceProvider = &ProviderResponse{ID: d.Parties.Provider.ID, Name: d.Parties.Provider.Name}
		}
	}
	return resp
}

func ToCreateServiceRequestResponse(res *servicerequest.CreateResult) CreateServiceRequestResponse {
	resp := CreateServiceRequestResponse{ServiceRequest: ToServiceRequestResponse(res.Request)}
	if res.Payment != nil {
		resp.PaymentURL = res.Payment.PaymentURL
		resp.InvoiceID = res.Payment.InvoiceID
	}
	return resp
}
