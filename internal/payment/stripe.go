package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
)

const eventCheckoutCompleted = "checkout.session.completed"

// StripeGateway оплата через Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeGateway callbackURL получает session_id после оплаты или отмены.
func NewStripeGateway(secretKey, webhookSecret, callbackURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    callbackURL + "?invoice_id={CHECKOUT_SESSION_ID}",
		cancelURL:     callbackURL + "?invoice_id={CHECKOUT_SESSION_ID}&cancelled=1",
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, c Checkout) (*Session, error) {
	total, err := valueobject.NewMoney(c.Total, c.Currency)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(c.RequestID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(total.Currency)),
					UnitAmount: stripe.Int64(total.MinorUnits()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(c.Reference),
						Description: stripe.String(c.Description),
					},
				},
			},
		},
	}
	if c.Customer.Email != "" {
		params.CustomerEmail = stripe.String(c.Customer.Email)
	}
	params.Context = ctx
	params.AddMetadata("service_request_id", c.RequestID.String())
	params.AddMetadata("tax_amount", c.TaxAmount.StringFixed(2))

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create session: %w", err)
	}
	return &Session{InvoiceID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(invoiceID, params)
	if err != nil {
		return false, fmt.Errorf("stripe: get session: %w", err)
	}
	return s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

// ParseWebhook проверяет подпись и возвращает идентификатор оплаченной сессии.
// Для прочих событий возвращается пустая строка.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (string, error) {
	ev, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return "", fmt.Errorf("stripe: webhook: %w", err)
	}
	if string(ev.Type) != eventCheckoutCompleted {
		return "", nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return "", fmt.Errorf("stripe: webhook payload: %w", err)
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", nil
	}
	return s.ID, nil
}
