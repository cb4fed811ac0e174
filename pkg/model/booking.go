package model

import (
	"time"
)

type TourType string

const (
	TourTypeStandard   TourType = "standard"
	TourTypeCustomized TourType = "customized"
)

type LineStatus string

const (
	LineBooked    LineStatus = "booked"
	LineCancelled LineStatus = "cancelled"
)

type Contact struct {
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`
	Phone     string `json:"phone" bson:"phone"`
}

// BookingLine is one paid tour inside a Booking. Exactly one of TourID and
// CustomizedTourID is set, matching TourType.
type BookingLine struct {
	TourType         TourType   `json:"tour_type" bson:"tour_type"`
	TourID           string     `json:"tour_id,omitempty" bson:"tour_id,omitempty"`
	CustomizedTourID string     `json:"customized_tour_id,omitempty" bson:"customized_tour_id,omitempty"`
	GroupSize        int        `json:"group_size" bson:"group_size"`
	UnitPrice        float64    `json:"unit_price" bson:"unit_price"`
	Price            float64    `json:"price" bson:"price"`
	TourDate         time.Time  `json:"tour_date" bson:"tour_date"`
	GuideID          string     `json:"guide_id,omitempty" bson:"guide_id,omitempty"`
	Status           LineStatus `json:"status" bson:"status"`
}

// Booking is created only after the payment provider confirms a checkout.
// PaymentReference is unique across the collection.
type Booking struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty"`
	TravelerID       string        `json:"traveler_id" bson:"traveler_id"`
	Contact          Contact       `json:"contact" bson:"contact"`
	SourceType       SourceKind    `json:"source_type" bson:"source_type"`
	SourceID         string        `json:"source_id" bson:"source_id"`
	PaymentReference string        `json:"payment_reference" bson:"payment_reference"`
	PaymentSessionID string        `json:"payment_session_id,omitempty" bson:"payment_session_id,omitempty"`
	Lines            []BookingLine `json:"lines" bson:"lines"`
	TotalPrice       float64       `json:"total_price" bson:"total_price"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
}

// Total sums the line prices.
func (b *Booking) Total() float64 {
	var total float64
	for _, l := range b.Lines {
		total += l.Price
	}
	return total
}

// HasGuide reports whether any line of the booking is led by guideID.
func (b *Booking) HasGuide(guideID string) bool {
	for _, l := range b.Lines {
		if l.GuideID == guideID {
			return true
		}
	}
	return false
}

// CheckoutInput is the body of a checkout-session request. GroupSize and
// TourDate are only read for standard tours.
type CheckoutInput struct {
	SourceType SourceKind `json:"source_type" validate:"required,oneof=standard cart customized"`
	GroupSize  int        `json:"group_size" validate:"required_if=SourceType standard,omitempty,min=1,max=100"`
	TourDate   string     `json:"tour_date" validate:"required_if=SourceType standard,omitempty,datetime=2006-01-02"`
	FirstName  string     `json:"first_name" validate:"required,min=1,max=50"`
	LastName   string     `json:"last_name" validate:"required,min=1,max=50"`
	Phone      string     `json:"phone" validate:"required,max=20,phone"`
}

// BookingFilter narrows list queries. Zero values mean "any".
type BookingFilter struct {
	TravelerID string
	GuideID    string
	TourID     string
}

// Availability is the answer to a capacity query for one tour and day.
type Availability struct {
	TourID    string `json:"tour_id"`
	Date      string `json:"date"`
	RunsOn    bool   `json:"runs_on"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Available bool   `json:"available"`
}
