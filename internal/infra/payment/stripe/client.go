package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/clientproof/backend/internal/domain/payment"
)

type Config struct {
	SecretKey          string
	WebhookSecret      string
	Currency           string
	UnitAmount         int64
	ProductName        string
	ProductDescription string
}

// Client adapts Stripe Checkout to the payment.Provider and
// payment.WebhookVerifier ports. Constructed once at process start.
type Client struct {
	api *client.API
	cfg Config
}

func New(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Client{api: api, cfg: cfg}
}

func (c *Client) CreateSession(ctx context.Context, p payment.CreateSessionParams) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.AnalysisID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.cfg.Currency),
					UnitAmount: stripe.Int64(c.cfg.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(c.cfg.ProductName),
						Description: stripe.String(c.cfg.ProductDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/rapport?id=%s&session_id={CHECKOUT_SESSION_ID}", p.Origin, p.AnalysisID)),
		CancelURL:  stripe.String(p.Origin + "/app"),
	}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe session %s: %w", id, err)
	}
	return fromStripeSession(sess), nil
}

// VerifyWebhook checks the Stripe-Signature header against the signing secret
// and fails closed on any mismatch.
func (c *Client) VerifyWebhook(payload []byte, signature string) (*payment.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrBadSignature, err)
	}

	ev := &payment.Event{Type: string(event.Type)}
	if ev.Type == payment.EventCheckoutCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decoding checkout session event: %w", err)
		}
		ev.Session = fromStripeSession(&sess)
	}
	return ev, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *payment.Session {
	return &payment.Session{
		ID:                s.ID,
		URL:               s.URL,
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
	}
}
