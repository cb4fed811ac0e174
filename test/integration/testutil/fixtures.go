//go:build integration

package testutil

import (
	"time"

	"tourbook/pkg/model"
)

type CustomizedTourBuilder struct {
	in model.CustomizedTourInput
}

// NewCustomizedTourBuilder starts from a valid small-group Luxor request a
// month ahead.
func NewCustomizedTourBuilder() *CustomizedTourBuilder {
	start := time.Now().UTC().AddDate(0, 1, 0)
	return &CustomizedTourBuilder{
		in: model.CustomizedTourInput{
			Governorate: "Luxor",
			Languages:   []string{"English"},
			GroupSize:   model.GroupSizeSmall,
			Landmarks:   []string{"Karnak Temple"},
			StartDate:   start.Format(model.DayLayout),
			EndDate:     start.AddDate(0, 0, 2).Format(model.DayLayout),
		},
	}
}

func (b *CustomizedTourBuilder) WithGovernorate(g string) *CustomizedTourBuilder {
	b.in.Governorate = g
	return b
}

func (b *CustomizedTourBuilder) WithLanguages(langs ...string) *CustomizedTourBuilder {
	b.in.Languages = langs
	return b
}

func (b *CustomizedTourBuilder) WithDates(start, end string) *CustomizedTourBuilder {
	b.in.StartDate = start
	b.in.EndDate = end
	return b
}

func (b *CustomizedTourBuilder) Build() *model.CustomizedTourInput {
	in := b.in
	return &in
}

func LuxorGuide(name string, rating float64) model.Guide {
	return model.Guide{
		Name:            name,
		Languages:       []string{"English", "Arabic"},
		Governorates:    []string{"Luxor"},
		Rating:          rating,
		RatingsQuantity: 10,
		IsVerified:      true,
	}
}

// NextWeekday returns the first date strictly after today that falls on day.
func NextWeekday(day time.Weekday) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
