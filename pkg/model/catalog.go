package model

import (
	"strings"
	"time"
)

type Guide struct {
	ID              string   `json:"id,omitempty" bson:"_id,omitempty"`
	Name            string   `json:"name" bson:"name"`
	Languages       []string `json:"languages" bson:"languages"`
	Governorates    []string `json:"governorates" bson:"governorates"`
	Rating          float64  `json:"rating" bson:"rating"`
	RatingsQuantity int      `json:"ratings_quantity" bson:"ratings_quantity"`
	IsVerified      bool     `json:"is_verified" bson:"is_verified"`
	// TourRequests is a derived back-reference, never authoritative.
	TourRequests []string `json:"-" bson:"tour_requests"`
}

// Matches reports whether the guide speaks every language and covers the
// governorate of req.
func (g *Guide) Matches(req *CustomizedTourRequest) bool {
	if !containsFold(g.Governorates, req.Governorate) {
		return false
	}
	for _, lang := range req.Languages {
		if !containsFold(g.Languages, lang) {
			return false
		}
	}
	return true
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

type Tour struct {
	ID           string   `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string   `json:"name" bson:"name"`
	Price        float64  `json:"price" bson:"price"`
	Duration     int      `json:"duration" bson:"duration"`
	MaxGroupSize int      `json:"max_group_size" bson:"max_group_size"`
	StartDays    []string `json:"start_days" bson:"start_days"`
	GuideID      string   `json:"guide_id,omitempty" bson:"guide_id,omitempty"`
	Bookings     int      `json:"bookings" bson:"bookings"`
}

// RunsOn reports whether the tour departs on the weekday of date.
func (t *Tour) RunsOn(date time.Time) bool {
	return containsFold(t.StartDays, date.Weekday().String())
}

type CartItem struct {
	TourID    string  `json:"tour_id" bson:"tour_id"`
	GroupSize int     `json:"group_size" bson:"group_size"`
	ItemPrice float64 `json:"item_price" bson:"item_price"`
	TourDate  string  `json:"tour_date" bson:"tour_date"`
}

type Cart struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty"`
	TravelerID string     `json:"traveler_id" bson:"traveler_id"`
	Items      []CartItem `json:"items" bson:"items"`
	TotalPrice float64    `json:"total_price" bson:"total_price"`
}
