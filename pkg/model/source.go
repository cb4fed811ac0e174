package model

import (
	"fmt"
	"time"
)

type SourceKind string

const (
	SourceStandard   SourceKind = "standard"
	SourceCart       SourceKind = "cart"
	SourceCustomized SourceKind = "customized"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceStandard, SourceCart, SourceCustomized:
		return true
	}
	return false
}

// BookingSource is what a checkout pays for. The set of implementations is
// closed: StandardSource, CartSource and CustomizedSource.
type BookingSource interface {
	Kind() SourceKind
	ID() string
	isBookingSource()
}

// StandardSource books one catalog tour for a group on a given day.
type StandardSource struct {
	TourID    string
	GroupSize int
	TourDate  time.Time
}

func (StandardSource) Kind() SourceKind { return SourceStandard }
func (s StandardSource) ID() string     { return s.TourID }
func (StandardSource) isBookingSource() {}

// CartSource books every item of a traveler's cart.
type CartSource struct {
	CartID string
}

func (CartSource) Kind() SourceKind { return SourceCart }
func (s CartSource) ID() string     { return s.CartID }
func (CartSource) isBookingSource() {}

// CustomizedSource books a confirmed customized tour at its negotiated price.
type CustomizedSource struct {
	RequestID string
}

func (CustomizedSource) Kind() SourceKind { return SourceCustomized }
func (s CustomizedSource) ID() string     { return s.RequestID }
func (CustomizedSource) isBookingSource() {}

// NewSource builds the source variant for kind. groupSize and tourDate are
// only used for standard sources; tourDate must be YYYY-MM-DD.
func NewSource(kind SourceKind, id string, groupSize int, tourDate string) (BookingSource, error) {
	switch kind {
	case SourceStandard:
		day, err := ParseDay(tourDate)
		if err != nil {
			return nil, err
		}
		return StandardSource{TourID: id, GroupSize: groupSize, TourDate: day}, nil
	case SourceCart:
		return CartSource{CartID: id}, nil
	case SourceCustomized:
		return CustomizedSource{RequestID: id}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", kind)
	}
}

// DayLayout is the calendar-day format used on the wire.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD string as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
