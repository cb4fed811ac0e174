package model

import (
	"slices"
	"time"
)

type CustomizedTourStatus string

const (
	StatusPending   CustomizedTourStatus = "pending"
	StatusConfirmed CustomizedTourStatus = "confirmed"
	StatusCompleted CustomizedTourStatus = "completed"
	StatusCancelled CustomizedTourStatus = "cancelled"
)

func (s CustomizedTourStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// GroupSize is a band, not a head count.
type GroupSize string

const (
	GroupSizeSmall  GroupSize = "1-4"
	GroupSizeMedium GroupSize = "5-10"
	GroupSizeLarge  GroupSize = "More than 10"
)

func (g GroupSize) Valid() bool {
	switch g {
	case GroupSizeSmall, GroupSizeMedium, GroupSizeLarge:
		return true
	}
	return false
}

// Min is the smallest head count in the band.
func (g GroupSize) Min() int {
	switch g {
	case GroupSizeMedium:
		return 5
	case GroupSizeLarge:
		return 11
	default:
		return 1
	}
}

// Max is the largest head count in the band, 0 when unbounded.
func (g GroupSize) Max() int {
	switch g {
	case GroupSizeSmall:
		return 4
	case GroupSizeMedium:
		return 10
	default:
		return 0
	}
}

type GuideBid struct {
	GuideID     string    `json:"guide_id" bson:"guide_id"`
	Price       float64   `json:"price" bson:"price"`
	SubmittedAt time.Time `json:"submitted_at" bson:"submitted_at"`
}

// CustomizedTourRequest is a traveler-authored tour specification open for
// guide bids. SentRequests and RespondingGuides are the source of truth for
// which guides are involved; Guide.TourRequests is derived from them.
type CustomizedTourRequest struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	TravelerID  string    `json:"traveler_id" bson:"traveler_id"`
	Governorate string    `json:"governorate" bson:"governorate"`
	Languages   []string  `json:"languages" bson:"languages"`
	GroupSize   GroupSize `json:"group_size" bson:"group_size"`
	Landmarks   []string  `json:"landmarks,omitempty" bson:"landmarks,omitempty"`
	StartDate   time.Time `json:"start_date" bson:"start_date"`
	EndDate     time.Time `json:"end_date" bson:"end_date"`
	Note        string    `json:"note,omitempty" bson:"note,omitempty"`

	Status           CustomizedTourStatus `json:"status" bson:"status"`
	SentRequests     []string             `json:"sent_requests" bson:"sent_requests"`
	RespondingGuides []GuideBid           `json:"responding_guides" bson:"responding_guides"`
	AcceptedGuide    string               `json:"accepted_guide,omitempty" bson:"accepted_guide,omitempty"`
	Price            float64              `json:"price,omitempty" bson:"price,omitempty"`
	PaymentStatus    PaymentStatus        `json:"payment_status" bson:"payment_status"`

	GuideConfirmCompletion bool `json:"guide_confirm_completion" bson:"guide_confirm_completion"`
	UserConfirmCompletion  bool `json:"user_confirm_completion" bson:"user_confirm_completion"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

func (r *CustomizedTourRequest) IsInvited(guideID string) bool {
	return slices.Contains(r.SentRequests, guideID)
}

func (r *CustomizedTourRequest) BidBy(guideID string) (GuideBid, bool) {
	for _, bid := range r.RespondingGuides {
		if bid.GuideID == guideID {
			return bid, true
		}
	}
	return GuideBid{}, false
}

// InvolvedGuides returns every guide that was invited or has bid, without
// duplicates, in first-seen order.
func (r *CustomizedTourRequest) InvolvedGuides() []string {
	seen := make(map[string]struct{}, len(r.SentRequests)+len(r.RespondingGuides))
	out := make([]string, 0, len(r.SentRequests)+len(r.RespondingGuides))
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range r.SentRequests {
		add(id)
	}
	for _, bid := range r.RespondingGuides {
		add(bid.GuideID)
	}
	return out
}

// CustomizedTourInput is the traveler-supplied body for a new request.
// Dates are calendar days (YYYY-MM-DD).
type CustomizedTourInput struct {
	Governorate string    `json:"governorate" validate:"required,min=2,max=60"`
	Languages   []string  `json:"languages" validate:"required,min=1,max=10,dive,required,min=2,max=30"`
	GroupSize   GroupSize `json:"group_size" validate:"required,group_size_band"`
	Landmarks   []string  `json:"landmarks" validate:"omitempty,max=20,dive,required,max=100"`
	StartDate   string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string    `json:"end_date" validate:"required,datetime=2006-01-02"`
	Note        string    `json:"note" validate:"omitempty,max=1000"`
}

type BidInput struct {
	Price float64 `json:"price" validate:"required,gt=0,lte=10000000"`
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type DecisionInput struct {
	Decision Decision `json:"decision" validate:"required,oneof=accept reject"`
}

// CustomizedTourFilter narrows list queries. Zero values mean "any".
type CustomizedTourFilter struct {
	TravelerID string
	Status     CustomizedTourStatus
	// InvolvedGuide matches requests where the guide is invited or has bid.
	InvolvedGuide string
}
