package payments

import (
	"context"
	"errors"
	"math"
)

// ErrInvalidSignature is returned when a webhook payload cannot be verified.
var ErrInvalidSignature = errors.New("invalid webhook signature")

const (
	StatusPaid   = "paid"
	StatusUnpaid = "unpaid"

	EventCheckoutCompleted = "checkout.session.completed"
)

type LineItem struct {
	Name       string
	UnitAmount int64 // minor currency units
	Quantity   int64
}

// CheckoutRequest describes a hosted checkout. ClientReferenceID is the
// idempotency key of the resulting booking.
type CheckoutRequest struct {
	ClientReferenceID string
	Currency          string
	Lines             []LineItem
	Metadata          map[string]string
	SuccessURL        string
	CancelURL         string
}

type Session struct {
	ID                string
	URL               string
	ClientReferenceID string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	Metadata          map[string]string
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == StatusPaid
}

// WebhookEvent is a verified provider notification. Session is nil for
// event types that do not carry a checkout session.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *Session
}

// Gateway is the payment capability used by the booking coordinator.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// ToMinorUnits converts an amount in major units (e.g. pounds) to minor
// units, rounding to the nearest unit.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
