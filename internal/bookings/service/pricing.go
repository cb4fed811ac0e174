package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"tourbook/internal/payments"
	"tourbook/pkg/auth"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
)

// Checkout session metadata keys. The provider hands them back untouched on
// the completed session.
const (
	metaSourceType = "source_type"
	metaSourceID   = "source_id"
	metaTravelerID = "traveler_id"
	metaFirstName  = "first_name"
	metaLastName   = "last_name"
	metaPhone      = "phone"
	metaGroupSize  = "group_size"
	metaTourDate   = "tour_date"
	metaUnitPrice  = "unit_price"
	metaTotal      = "total"
)

// quote is the server-side price breakdown of a checkout.
type quote struct {
	lines []model.BookingLine
	items []payments.LineItem
}

func (q *quote) add(line model.BookingLine, name string) {
	q.lines = append(q.lines, line)
	quantity := int64(line.GroupSize)
	if quantity == 0 {
		quantity = 1
	}
	q.items = append(q.items, payments.LineItem{
		Name:       name,
		UnitAmount: payments.ToMinorUnits(line.UnitPrice),
		Quantity:   quantity,
	})
}

func (q *quote) total() float64 {
	var total float64
	for _, l := range q.lines {
		total += l.Price
	}
	return total
}

func standardLine(tour *model.Tour, source model.StandardSource, unitPrice float64) model.BookingLine {
	return model.BookingLine{
		TourType:  model.TourTypeStandard,
		TourID:    tour.ID,
		GroupSize: source.GroupSize,
		UnitPrice: unitPrice,
		Price:     unitPrice * float64(source.GroupSize),
		TourDate:  source.TourDate,
		GuideID:   tour.GuideID,
		Status:    model.LineBooked,
	}
}

func customizedLine(req *model.CustomizedTourRequest) model.BookingLine {
	return model.BookingLine{
		TourType:         model.TourTypeCustomized,
		CustomizedTourID: req.ID,
		UnitPrice:        req.Price,
		Price:            req.Price,
		TourDate:         req.StartDate,
		GuideID:          req.AcceptedGuide,
		Status:           model.LineBooked,
	}
}

func checkGroupSize(tour *model.Tour, groupSize int) error {
	if groupSize < 1 || groupSize > tour.MaxGroupSize {
		return apperrors.Validation(
			fmt.Sprintf("Group size must be between 1 and %d for this tour", tour.MaxGroupSize),
			map[string]any{
				"tour_id":        tour.ID,
				"group_size":     groupSize,
				"max_group_size": tour.MaxGroupSize,
			},
		).WithReason(apperrors.ReasonInvalidGroupSize)
	}
	return nil
}

// quote prices source for caller and checks it can still be booked.
func (s *bookingService) quote(ctx context.Context, caller auth.Identity, source model.BookingSource) (*quote, error) {
	q := &quote{}

	switch src := source.(type) {
	case model.StandardSource:
		tour, err := s.bookable(ctx, src, 0)
		if err != nil {
			return nil, err
		}
		q.add(standardLine(tour, src, tour.Price), tour.Name)

	case model.CartSource:
		cart, err := s.carts.FindByID(ctx, src.CartID)
		if err != nil {
			return nil, s.translate(err, "load cart", src.CartID)
		}
		if cart.TravelerID != caller.UserID {
			return nil, apperrors.Forbidden("You do not own this cart")
		}
		if len(cart.Items) == 0 {
			return nil, apperrors.Validation("Cart is empty", map[string]any{"cart_id": cart.ID})
		}
		claimed := make(map[seatKey]int, len(cart.Items))
		for i, item := range cart.Items {
			item, err := cartItemSource(item)
			if err != nil {
				return nil, apperrors.Validation(fmt.Sprintf("Cart item %d is invalid", i+1), map[string]any{"error": err.Error()})
			}
			key := seatKey{tourID: item.TourID, day: item.TourDate.Format(model.DayLayout)}
			tour, err := s.bookable(ctx, item, claimed[key])
			if err != nil {
				return nil, err
			}
			claimed[key] += item.GroupSize
			q.add(standardLine(tour, item, tour.Price), tour.Name)
		}

	case model.CustomizedSource:
		req, err := s.payableRequest(ctx, src.RequestID)
		if err != nil {
			return nil, err
		}
		if req.TravelerID != caller.UserID {
			return nil, apperrors.Forbidden("You do not own this customized tour")
		}
		q.add(customizedLine(req), fmt.Sprintf("Customized tour in %s", req.Governorate))

	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unsupported booking source %q", source.Kind()))
	}

	return q, nil
}

// bookable loads the tour of src and checks group size and capacity.
// seatKey identifies one departure of a tour.
type seatKey struct {
	tourID string
	day    string
}

// bookable loads the tour behind src and checks that src.GroupSize seats are
// still free on its date once claimed seats from the same checkout are counted.
func (s *bookingService) bookable(ctx context.Context, src model.StandardSource, claimed int) (*model.Tour, error) {
	tour, err := s.tours.FindByID(ctx, src.TourID)
	if err != nil {
		return nil, s.translate(err, "load tour", src.TourID)
	}
	if err := checkGroupSize(tour, src.GroupSize); err != nil {
		return nil, err
	}
	if src.TourDate.Before(s.today()) {
		return nil, apperrors.Validation("Tour date cannot be in the past", map[string]any{
			"tour_id":   tour.ID,
			"tour_date": src.TourDate.Format(model.DayLayout),
		})
	}

	a, err := s.availability(ctx, tour, src.TourDate, claimed+src.GroupSize)
	if err != nil {
		return nil, err
	}
	if !a.Available {
		msg := fmt.Sprintf("Only %d places left on %s", max(a.Remaining-claimed, 0), a.Date)
		if !a.RunsOn {
			msg = fmt.Sprintf("Tour does not start on %s", src.TourDate.Weekday())
		}
		return nil, apperrors.Conflict(msg).
			WithReason(apperrors.ReasonUnavailable).
			WithDetails(map[string]any{
				"tour_id":   tour.ID,
				"date":      a.Date,
				"remaining": a.Remaining,
			})
	}
	return tour, nil
}

func (s *bookingService) payableRequest(ctx context.Context, id string) (*model.CustomizedTourRequest, error) {
	req, err := s.customized.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "load customized tour", id)
	}
	if req.Status != model.StatusConfirmed || req.AcceptedGuide == "" {
		return nil, apperrors.Conflict(fmt.Sprintf("Customized tour is %s and cannot be paid", req.Status)).
			WithReason(apperrors.ReasonRequestClosed)
	}
	if req.PaymentStatus == model.PaymentPaid {
		return nil, apperrors.Conflict("Customized tour is already paid")
	}
	return req, nil
}

func cartItemSource(item model.CartItem) (model.StandardSource, error) {
	day, err := model.ParseDay(item.TourDate)
	if err != nil {
		return model.StandardSource{}, err
	}
	return model.StandardSource{TourID: item.TourID, GroupSize: item.GroupSize, TourDate: day}, nil
}

func checkoutMetadata(travelerID string, source model.BookingSource, in *model.CheckoutInput, q *quote) map[string]string {
	meta := map[string]string{
		metaSourceType: string(source.Kind()),
		metaSourceID:   source.ID(),
		metaTravelerID: travelerID,
		metaFirstName:  in.FirstName,
		metaLastName:   in.LastName,
		metaPhone:      in.Phone,
		metaTotal:      strconv.FormatFloat(q.total(), 'f', 2, 64),
	}
	if src, ok := source.(model.StandardSource); ok {
		meta[metaGroupSize] = strconv.Itoa(src.GroupSize)
		meta[metaTourDate] = src.TourDate.Format(model.DayLayout)
		meta[metaUnitPrice] = strconv.FormatFloat(q.lines[0].UnitPrice, 'f', 2, 64)
	}
	return meta
}

// sessionMeta is the checkout recovered from a completed session.
type sessionMeta struct {
	source     model.BookingSource
	travelerID string
	contact    model.Contact
	unitPrice  float64
}

func parseMetadata(meta map[string]string) (*sessionMeta, error) {
	kind := model.SourceKind(meta[metaSourceType])
	if !kind.Valid() || meta[metaSourceID] == "" || meta[metaTravelerID] == "" {
		return nil, errors.New("checkout session does not describe a booking")
	}

	var groupSize int
	var unitPrice float64
	if kind == model.SourceStandard {
		var err error
		if groupSize, err = strconv.Atoi(meta[metaGroupSize]); err != nil {
			return nil, fmt.Errorf("invalid group_size metadata: %w", err)
		}
		if unitPrice, err = strconv.ParseFloat(meta[metaUnitPrice], 64); err != nil {
			return nil, fmt.Errorf("invalid unit_price metadata: %w", err)
		}
	}

	source, err := model.NewSource(kind, meta[metaSourceID], groupSize, meta[metaTourDate])
	if err != nil {
		return nil, err
	}
	return &sessionMeta{
		source:     source,
		travelerID: meta[metaTravelerID],
		contact: model.Contact{
			FirstName: meta[metaFirstName],
			LastName:  meta[metaLastName],
			Phone:     meta[metaPhone],
		},
		unitPrice: unitPrice,
	}, nil
}

// confirmLines rebuilds the booking lines of a paid checkout. Group sizes are
// checked again because tours may have changed since the session was created.
func (s *bookingService) confirmLines(ctx context.Context, meta *sessionMeta) ([]model.BookingLine, error) {
	switch src := meta.source.(type) {
	case model.StandardSource:
		tour, err := s.tours.FindByID(ctx, src.TourID)
		if err != nil {
			return nil, s.translate(err, "load tour", src.TourID)
		}
		if err := checkGroupSize(tour, src.GroupSize); err != nil {
			return nil, err
		}
		return []model.BookingLine{standardLine(tour, src, meta.unitPrice)}, nil

	case model.CartSource:
		cart, err := s.carts.FindByID(ctx, src.CartID)
		if err != nil {
			return nil, s.translate(err, "load cart", src.CartID)
		}
		if cart.TravelerID != meta.travelerID {
			return nil, apperrors.Forbidden("Cart belongs to another traveler")
		}
		lines := make([]model.BookingLine, 0, len(cart.Items))
		for _, item := range cart.Items {
			item, err := cartItemSource(item)
			if err != nil {
				return nil, apperrors.InvalidInput(err.Error())
			}
			tour, err := s.tours.FindByID(ctx, item.TourID)
			if err != nil {
				return nil, s.translate(err, "load tour", item.TourID)
			}
			if err := checkGroupSize(tour, item.GroupSize); err != nil {
				return nil, err
			}
			lines = append(lines, standardLine(tour, item, tour.Price))
		}
		return lines, nil

	case model.CustomizedSource:
		req, err := s.payableRequest(ctx, src.RequestID)
		if err != nil {
			return nil, err
		}
		if req.TravelerID != meta.travelerID {
			return nil, apperrors.Forbidden("Customized tour belongs to another traveler")
		}
		return []model.BookingLine{customizedLine(req)}, nil
	}
	return nil, apperrors.InvalidInput(fmt.Sprintf("Unsupported booking source %q", meta.source.Kind()))
}

// applySideEffects runs inside the booking transaction.
func (s *bookingService) applySideEffects(ctx context.Context, source model.BookingSource, lines []model.BookingLine) error {
	switch src := source.(type) {
	case model.StandardSource, model.CartSource:
		for _, line := range lines {
			if err := s.tours.IncrementBookings(ctx, line.TourID, line.GroupSize); err != nil {
				return err
			}
		}
		if cart, ok := src.(model.CartSource); ok {
			return s.carts.Delete(ctx, cart.CartID)
		}
	case model.CustomizedSource:
		return s.customized.MarkPaid(ctx, src.RequestID)
	}
	return nil
}
