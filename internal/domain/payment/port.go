package payment

import "context"

// SessionStatus values mirror the checkout provider's payment_status field.
const StatusPaid = "paid"

// EventCheckoutCompleted is the provider notification sent once a checkout
// session has been paid.
const EventCheckoutCompleted = "checkout.session.completed"

// Session is a provider checkout session reduced to what the core needs.
// ClientReferenceID is the correlation reference: the analysis id the
// session was created for.
type Session struct {
	ID                string
	URL               string
	PaymentStatus     string
	ClientReferenceID string
}

type CreateSessionParams struct {
	AnalysisID string
	// Origin of the calling page; success/cancel redirects are built from it.
	Origin string
}

// Provider port (interface for the hosted checkout service)
type Provider interface {
	CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

// Event is a verified provider webhook notification.
type Event struct {
	Type    string
	Session *Session
}

// WebhookVerifier checks the signed envelope pushed by the provider.
// Verification failure must fail closed.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
