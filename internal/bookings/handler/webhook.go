package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tourbook/internal/bookings/service"
	"tourbook/internal/payments"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
)

const (
	WebhookPath     = "/webhook"
	signatureHeader = "Stripe-Signature"
)

// WebhookHandler receives payment provider notifications. It is mounted
// outside the client middleware stack and never requires a bearer token.
type WebhookHandler struct {
	service service.BookingService
	gateway payments.Gateway
	log     *logger.Logger
}

func NewWebhookHandler(service service.BookingService, gateway payments.Gateway, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		gateway: gateway,
		log:     log,
	}
}

type webhookAck struct {
	Received bool `json:"received"`
}

// Handle verifies the payload and confirms completed checkouts. A 5xx asks
// the provider to redeliver; everything else is acknowledged so that a
// permanently broken event is not retried forever.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httputil.WriteError(w, apperrors.InvalidInput("Could not read webhook body"))
		return
	}

	event, err := h.gateway.ParseWebhook(payload, r.Header.Get(signatureHeader))
	if err != nil {
		h.log.Warn("Rejected webhook",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		httputil.WriteError(w, apperrors.InvalidInput("Invalid webhook signature"))
		return
	}

	if event.Type != payments.EventCheckoutCompleted || event.Session == nil {
		h.log.Debug("Ignoring webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		httputil.WriteSuccess(w, webhookAck{Received: true})
		return
	}

	booking, err := h.service.ConfirmPayment(r.Context(), event.Session)
	if err != nil {
		appErr := apperrors.AsAppError(err)
		if appErr.StatusCode() >= http.StatusInternalServerError {
			h.log.Error("Webhook processing failed, provider will retry",
				"event_id", event.ID,
				"session_id", event.Session.ID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.log.Warn("Webhook event could not be applied",
			"event_id", event.ID,
			"session_id", event.Session.ID,
			"code", appErr.Code,
			"reason", appErr.Reason,
			"error", err,
		)
		httputil.WriteSuccess(w, webhookAck{Received: true})
		return
	}

	h.log.Info("Webhook applied",
		"event_id", event.ID,
		"session_id", event.Session.ID,
		"booking_id", booking.ID,
	)
	httputil.WriteSuccess(w, webhookAck{Received: true})
}
