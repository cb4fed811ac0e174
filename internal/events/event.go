package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBidAccepted      Type = "customized_tour.bid_accepted"
	TypeBidRejected      Type = "customized_tour.bid_rejected"
	TypeTourCancelled    Type = "customized_tour.cancelled"
	TypeTourCompleted    Type = "customized_tour.completed"
	TypeBookingConfirmed Type = "booking.confirmed"
)

// SchemaVersion is bumped on incompatible payload changes.
const SchemaVersion = "1"

// Event describes a state change of a customized tour or booking.
// ReleasedGuides lists guides whose tour_requests entry for RequestID must
// be removed; consumers may apply the removal any number of times.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	RequestID      string    `json:"request_id,omitempty"`
	BookingID      string    `json:"booking_id,omitempty"`
	TravelerID     string    `json:"traveler_id,omitempty"`
	GuideID        string    `json:"guide_id,omitempty"`
	ReleasedGuides []string  `json:"released_guides,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func New(t Type) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partition key: events of one request stay ordered.
func (e Event) Key() string {
	if e.RequestID != "" {
		return e.RequestID
	}
	return e.BookingID
}
