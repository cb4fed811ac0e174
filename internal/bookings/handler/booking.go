package handler

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"tourbook/internal/bookings/service"
	"tourbook/pkg/auth"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

type BookingHandler struct {
	service            service.BookingService
	guard              *auth.Guard
	manualConfirmation bool
	log                *logger.Logger
}

// NewBookingHandler builds the bookings API. The session return URL is only
// served when manualConfirmation is set.
func NewBookingHandler(service service.BookingService, guard *auth.Guard, manualConfirmation bool, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:            service,
		guard:              guard,
		manualConfirmation: manualConfirmation,
		log:                log,
	}
}

func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h *BookingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in model.CheckoutInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), caller(r), ps.ByName("sourceId"), &in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, session)
}

// ConfirmSession serves the checkout success redirect.
func (h *BookingHandler) ConfirmSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	booking, err := h.service.ConfirmSession(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.ListBookings(r.Context(), caller(r), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, offset)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), caller(r), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

// Availability answers GET /tours/:id/availability?date=YYYY-MM-DD&group_size=N.
// group_size defaults to 1.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	groupSize := 1
	if s := query.Get("group_size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("invalid group_size parameter: "+s))
			return
		}
		groupSize = v
	}

	a, err := h.service.CheckAvailability(r.Context(), ps.ByName("id"), query.Get("date"), groupSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, a)
}
