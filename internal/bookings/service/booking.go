package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	bookingserrors "tourbook/internal/bookings/errors"
	"tourbook/internal/bookings/repository"
	"tourbook/internal/bookings/validator"
	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/internal/events"
	"tourbook/internal/payments"
	"tourbook/pkg/auth"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/locale"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"
)

type BookingService interface {
	InitiateCheckout(ctx context.Context, caller auth.Identity, sourceID string, in *model.CheckoutInput) (*CheckoutSession, error)
	ConfirmPayment(ctx context.Context, session *payments.Session) (*model.Booking, error)
	ConfirmSession(ctx context.Context, sessionID string) (*model.Booking, error)
	CheckAvailability(ctx context.Context, tourID, date string, groupSize int) (*model.Availability, error)
	GetBooking(ctx context.Context, caller auth.Identity, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.Booking, int64, error)
}

// CustomizedTourStore is the part of the customized tour repository the
// coordinator needs.
type CustomizedTourStore interface {
	FindByID(ctx context.Context, id string) (*model.CustomizedTourRequest, error)
	MarkPaid(ctx context.Context, id string) error
}

// CheckoutSession is returned to the traveler, who is redirected to URL.
type CheckoutSession struct {
	SessionID       string  `json:"session_id"`
	URL             string  `json:"url"`
	ClientReference string  `json:"client_reference"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
}

type bookingService struct {
	bookings   repository.BookingRepository
	tours      repository.TourRepository
	carts      repository.CartRepository
	customized CustomizedTourStore
	gateway    payments.Gateway
	validator  *validator.BookingValidator
	publisher  events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewBookingService(
	bookings repository.BookingRepository,
	tours repository.TourRepository,
	carts repository.CartRepository,
	customized CustomizedTourStore,
	gateway payments.Gateway,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		bookings:   bookings,
		tours:      tours,
		carts:      carts,
		customized: customized,
		gateway:    gateway,
		validator:  validator,
		publisher:  publisher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) today() time.Time {
	return locale.CalendarDay(s.now())
}

func (s *bookingService) InitiateCheckout(ctx context.Context, caller auth.Identity, sourceID string, in *model.CheckoutInput) (*CheckoutSession, error) {
	if !caller.IsUser() {
		return nil, apperrors.Forbidden("Only travelers can book tours")
	}

	sanitize(in)
	if err := s.validator.ValidateCheckout(in, s.today()); err != nil {
		s.cfg.Log.Warn("Checkout validation failed",
			"traveler_id", caller.UserID,
			"source_id", sourceID,
			"error", err,
		)
		return nil, validationError("Checkout validation failed", err)
	}
	if err := s.validator.ValidateID("source_id", sourceID); err != nil {
		return nil, validationError("Checkout validation failed", err)
	}
	in.Phone = sanitizer.NormalizePhone(in.Phone)

	source, err := model.NewSource(in.SourceType, sourceID, in.GroupSize, in.TourDate)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	quote, err := s.quote(ctx, caller, source)
	if err != nil {
		return nil, err
	}

	reference := uuid.NewString()
	total := quote.total()
	req := payments.CheckoutRequest{
		ClientReferenceID: reference,
		Currency:          s.cfg.PaymentCurrency,
		Lines:             quote.items,
		Metadata:          checkoutMetadata(caller.UserID, source, in, quote),
		SuccessURL:        s.cfg.CheckoutSuccessURL,
		CancelURL:         s.cfg.CheckoutCancelURL,
	}

	payCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	session, err := s.gateway.CreateCheckoutSession(payCtx, req)
	if err != nil {
		s.cfg.Log.Error("Failed to create checkout session",
			"traveler_id", caller.UserID,
			"source_type", source.Kind(),
			"source_id", source.ID(),
			"error", err,
		)
		return nil, apperrors.ExternalService("Payment provider", err)
	}

	contactCountry := "unknown"
	if c := locale.InferCountryFromPhone(in.Phone); c != nil {
		contactCountry = c.Code
	}
	s.cfg.Log.Info("Checkout session created",
		"session_id", session.ID,
		"client_reference", reference,
		"traveler_id", caller.UserID,
		"source_type", source.Kind(),
		"source_id", source.ID(),
		"contact_country", contactCountry,
		"total", total,
	)
	return &CheckoutSession{
		SessionID:       session.ID,
		URL:             session.URL,
		ClientReference: reference,
		Total:           total,
		Currency:        s.cfg.PaymentCurrency,
	}, nil
}

func sanitize(in *model.CheckoutInput) {
	in.FirstName = sanitizer.NormalizeName(in.FirstName)
	in.LastName = sanitizer.NormalizeName(in.LastName)
	in.Phone = sanitizer.TrimAndNormalize(in.Phone)
	in.TourDate = sanitizer.TrimAndNormalize(in.TourDate)
}

// ConfirmPayment turns a paid checkout session into a booking. Delivering the
// same session more than once yields the same booking.
func (s *bookingService) ConfirmPayment(ctx context.Context, session *payments.Session) (*model.Booking, error) {
	if session == nil {
		return nil, apperrors.InvalidInput("Checkout session is required")
	}
	if !session.Paid() {
		s.cfg.Log.Warn("Ignoring unpaid checkout session",
			"session_id", session.ID,
			"payment_status", session.PaymentStatus,
		)
		return nil, apperrors.Conflict("Checkout session is not paid")
	}

	reference := session.ClientReferenceID
	if reference == "" {
		reference = session.ID
	}

	existing, err := s.bookings.FindByReference(ctx, reference)
	switch {
	case err == nil:
		s.cfg.Log.Info("Payment already recorded",
			"booking_id", existing.ID,
			"payment_reference", reference,
		)
		return existing, nil
	case !errors.Is(err, bookingserrors.ErrNotFound):
		return nil, s.translate(err, "look up booking", reference)
	}

	meta, err := parseMetadata(session.Metadata)
	if err != nil {
		s.cfg.Log.Warn("Checkout session carries unusable metadata",
			"session_id", session.ID,
			"error", err,
		)
		return nil, apperrors.InvalidInput(err.Error())
	}

	booking := &model.Booking{
		TravelerID:       meta.travelerID,
		Contact:          meta.contact,
		SourceType:       meta.source.Kind(),
		SourceID:         meta.source.ID(),
		PaymentReference: reference,
		PaymentSessionID: session.ID,
	}

	err = s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		lines, err := s.confirmLines(txCtx, meta)
		if err != nil {
			return err
		}
		booking.Lines = lines
		booking.TotalPrice = booking.Total()

		if err := s.bookings.Create(txCtx, booking); err != nil {
			return err
		}
		return s.applySideEffects(txCtx, meta.source, lines)
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicatePayment) {
			s.cfg.Log.Info("Concurrent confirmation of the same payment",
				"payment_reference", reference,
			)
			existing, findErr := s.bookings.FindByReference(ctx, reference)
			if findErr != nil {
				return nil, s.translate(findErr, "look up booking", reference)
			}
			return existing, nil
		}
		return nil, s.translate(err, "confirm payment", reference)
	}

	if paid := payments.ToMinorUnits(booking.TotalPrice); session.AmountTotal != 0 && paid != session.AmountTotal {
		s.cfg.Log.Warn("Paid amount differs from booking total",
			"booking_id", booking.ID,
			"amount_paid", session.AmountTotal,
			"booking_total", paid,
		)
	}

	s.cfg.Log.Info("Booking confirmed",
		"booking_id", booking.ID,
		"payment_reference", reference,
		"traveler_id", booking.TravelerID,
		"source_type", booking.SourceType,
		"source_id", booking.SourceID,
		"total", booking.TotalPrice,
	)
	s.publishConfirmed(ctx, booking)
	return booking, nil
}

// ConfirmSession re-fetches a session from the provider and confirms it. It
// backs the return URL used where webhooks cannot reach the service.
func (s *bookingService) ConfirmSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	if !s.cfg.ManualPaymentConfirmation {
		return nil, apperrors.Forbidden("Manual payment confirmation is disabled")
	}
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session_id is required")
	}

	payCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	session, err := s.gateway.GetCheckoutSession(payCtx, sessionID)
	cancel()
	if err != nil {
		s.cfg.Log.Error("Failed to fetch checkout session",
			"session_id", sessionID,
			"error", err,
		)
		return nil, apperrors.ExternalService("Payment provider", err)
	}
	return s.ConfirmPayment(ctx, session)
}

func (s *bookingService) CheckAvailability(ctx context.Context, tourID, date string, groupSize int) (*model.Availability, error) {
	if err := s.validator.ValidateID("tour_id", tourID); err != nil {
		return nil, validationError("Invalid availability query", err)
	}
	day, err := model.ParseDay(date)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if groupSize < 1 {
		return nil, apperrors.InvalidInput("group_size must be at least 1")
	}

	tour, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return nil, s.translate(err, "load tour", tourID)
	}
	return s.availability(ctx, tour, day, groupSize)
}

// availability does not query bookings for days the tour does not run on.
func (s *bookingService) availability(ctx context.Context, tour *model.Tour, day time.Time, groupSize int) (*model.Availability, error) {
	a := &model.Availability{
		TourID:   tour.ID,
		Date:     day.Format(model.DayLayout),
		RunsOn:   tour.RunsOn(day),
		Capacity: tour.MaxGroupSize,
	}
	if !a.RunsOn {
		return a, nil
	}

	booked, err := s.bookings.BookedCount(ctx, tour.ID, day)
	if err != nil {
		return nil, s.translate(err, "count booked seats", tour.ID)
	}
	a.Booked = booked
	a.Remaining = max(tour.MaxGroupSize-booked, 0)
	a.Available = a.Remaining >= groupSize
	return a, nil
}

func (s *bookingService) GetBooking(ctx context.Context, caller auth.Identity, id string) (*model.Booking, error) {
	if err := s.validator.ValidateID("id", id); err != nil {
		return nil, validationError("Invalid booking ID", err)
	}
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "load booking", id)
	}

	switch {
	case caller.IsAdmin():
	case caller.IsUser() && booking.TravelerID == caller.UserID:
	case caller.IsGuide() && booking.HasGuide(caller.UserID):
	default:
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.Booking, int64, error) {
	var filter model.BookingFilter
	switch {
	case caller.IsAdmin():
	case caller.IsGuide():
		filter.GuideID = caller.UserID
	case caller.IsUser():
		filter.TravelerID = caller.UserID
	default:
		return nil, 0, apperrors.Forbidden("You cannot list bookings")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	total, err := s.bookings.Count(ctx, filter)
	if err != nil {
		return nil, 0, s.translate(err, "count bookings", caller.UserID)
	}
	bookings, err := s.bookings.FindAll(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, s.translate(err, "list bookings", caller.UserID)
	}
	return bookings, total, nil
}

func (s *bookingService) publishConfirmed(ctx context.Context, booking *model.Booking) {
	e := events.New(events.TypeBookingConfirmed)
	e.BookingID = booking.ID
	e.TravelerID = booking.TravelerID
	if booking.SourceType == model.SourceCustomized {
		e.RequestID = booking.SourceID
		if len(booking.Lines) > 0 {
			e.GuideID = booking.Lines[0].GuideID
		}
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"booking_id", booking.ID,
			"event_type", e.Type,
			"error", err,
		)
	}
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func sourceNotFound(resource, id string) error {
	return apperrors.NotFoundWithID(resource, id).WithReason(apperrors.ReasonSourceNotFound)
}

// translate maps repository errors to application errors. AppErrors pass
// through unchanged.
func (s *bookingService) translate(err error, op, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrTourNotFound):
		return sourceNotFound("Tour", id)
	case errors.Is(err, bookingserrors.ErrCartNotFound):
		return sourceNotFound("Cart", id)
	case errors.Is(err, customtourserrors.ErrNotFound):
		return sourceNotFound("Customized tour", id)
	case errors.Is(err, customtourserrors.ErrConditionFailed):
		return apperrors.Conflict("Customized tour is no longer payable").
			WithReason(apperrors.ReasonRequestClosed)
	case errors.Is(err, bookingserrors.ErrInvalidID), errors.Is(err, customtourserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid ID format")
	}
	s.cfg.Log.Error("Booking operation failed",
		"operation", op,
		"id", id,
		"error", err,
	)
	return apperrors.Internal(fmt.Sprintf("Failed to %s", op), err)
}
