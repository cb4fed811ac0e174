//go:build integration

package integrationtests

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	bookingsrepo "tourbook/internal/bookings/repository"
	"tourbook/pkg/auth"
	"tourbook/pkg/client"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/test/integration/testutil"
)

const (
	travelerID = "traveler-integration-1"
	unknownID  = "65f1c0e2a1b2c3d4e5f6ffff"
)

type fixture struct {
	mongo    *testutil.MongoHelper
	api      *client.BookingClient
	traveler *client.BookingClient
	stranger *client.BookingClient
	guide    *client.BookingClient

	tourID string
	monday time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	env := testutil.NewTestEnv()
	mongo, httpClient := env.Setup(t, env.BookingsURL)
	t.Cleanup(func() { env.Cleanup(t, mongo) })

	api := client.NewBookingClient(httpClient)
	f := &fixture{
		mongo:    mongo,
		api:      api,
		traveler: api.As(env.Token(t, travelerID, auth.RoleUser)),
		stranger: api.As(env.Token(t, "traveler-integration-2", auth.RoleUser)),
		guide:    api.As(env.Token(t, "guide-integration", auth.RoleGuide)),
		monday:   testutil.NextWeekday(time.Monday),
	}
	f.tourID = mongo.SeedTour(t, model.Tour{
		Name:         "Karnak at Dawn",
		Price:        500,
		Duration:     1,
		MaxGroupSize: 4,
		StartDays:    []string{"Monday", "Saturday"},
		GuideID:      "guide-integration",
	})
	return f
}

func checkout(groupSize int, day time.Time) *model.CheckoutInput {
	return &model.CheckoutInput{
		SourceType: model.SourceStandard,
		GroupSize:  groupSize,
		TourDate:   day.Format(model.DayLayout),
		FirstName:  "Nour",
		LastName:   "Hassan",
		Phone:      "+201012345678",
	}
}

func TestAvailability(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	must := testutil.Must(t)

	resp := must(f.api.Availability(ctx, f.tourID, f.monday.Format(model.DayLayout), 3))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	a, err := f.api.DecodeAvailability(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !a.RunsOn || !a.Available || a.Capacity != 4 || a.Remaining != 4 {
		t.Errorf("availability on a start day = %+v", a)
	}

	tuesday := f.monday.AddDate(0, 0, 1)
	resp = must(f.api.Availability(ctx, f.tourID, tuesday.Format(model.DayLayout), 1))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if a, err := f.api.DecodeAvailability(resp); err != nil {
		t.Fatal(err)
	} else if a.RunsOn || a.Available {
		t.Errorf("tour must not be available on a non-start day: %+v", a)
	}

	resp = must(f.api.Availability(ctx, f.tourID, "next monday", 1))
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

	resp = must(f.api.Availability(ctx, unknownID, f.monday.Format(model.DayLayout), 1))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestCheckoutRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cartID := f.mongo.SeedCart(t, model.Cart{
		TravelerID: "traveler-integration-2",
		Items: []model.CartItem{
			{TourID: f.tourID, GroupSize: 2, ItemPrice: 500, TourDate: f.monday.Format(model.DayLayout)},
		},
		TotalPrice: 1000,
	})
	pendingID := f.mongo.SeedCustomizedTour(t, model.CustomizedTourRequest{
		TravelerID:       travelerID,
		Governorate:      "Luxor",
		Languages:        []string{"English"},
		GroupSize:        model.GroupSizeSmall,
		StartDate:        f.monday,
		EndDate:          f.monday.AddDate(0, 0, 1),
		Status:           model.StatusPending,
		SentRequests:     []string{},
		RespondingGuides: []model.GuideBid{},
		PaymentStatus:    model.PaymentPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	})
	lastWeek := f.monday.AddDate(0, 0, -14)
	tuesday := f.monday.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		caller   *client.BookingClient
		sourceID string
		in       *model.CheckoutInput
		status   int
		reason   string
	}{
		{
			name:     "no token",
			caller:   f.api,
			sourceID: f.tourID,
			in:       checkout(2, f.monday),
			status:   http.StatusUnauthorized,
		},
		{
			name:     "guides cannot book",
			caller:   f.guide,
			sourceID: f.tourID,
			in:       checkout(2, f.monday),
			status:   http.StatusForbidden,
		},
		{
			name:     "group above tour maximum",
			caller:   f.traveler,
			sourceID: f.tourID,
			in:       checkout(5, f.monday),
			status:   http.StatusUnprocessableEntity,
			reason:   apperrors.ReasonInvalidGroupSize,
		},
		{
			name:     "date in the past",
			caller:   f.traveler,
			sourceID: f.tourID,
			in:       checkout(2, lastWeek),
			status:   http.StatusUnprocessableEntity,
		},
		{
			name:     "tour does not start that day",
			caller:   f.traveler,
			sourceID: f.tourID,
			in:       checkout(2, tuesday),
			status:   http.StatusConflict,
			reason:   apperrors.ReasonUnavailable,
		},
		{
			name:     "unknown tour",
			caller:   f.traveler,
			sourceID: unknownID,
			in:       checkout(2, f.monday),
			status:   http.StatusNotFound,
			reason:   apperrors.ReasonSourceNotFound,
		},
		{
			name:     "someone else's cart",
			caller:   f.traveler,
			sourceID: cartID,
			in:       &model.CheckoutInput{SourceType: model.SourceCart, FirstName: "Nour", LastName: "Hassan", Phone: "+201012345678"},
			status:   http.StatusForbidden,
		},
		{
			name:     "customized tour still negotiating",
			caller:   f.traveler,
			sourceID: pendingID,
			in:       &model.CheckoutInput{SourceType: model.SourceCustomized, FirstName: "Nour", LastName: "Hassan", Phone: "+201012345678"},
			status:   http.StatusConflict,
			reason:   apperrors.ReasonRequestClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Must(t)(tt.caller.CreateCheckoutSession(ctx, tt.sourceID, tt.in))
			testutil.AssertError(t, resp, tt.status, tt.reason)
		})
	}

	if n := f.mongo.CountDocuments(t, bookingsrepo.CollectionName); n != 0 {
		t.Errorf("%d bookings stored after rejected checkouts", n)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := setup(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test"}}}`)
	resp := testutil.Must(t)(f.api.Webhook(context.Background(), payload, "t=1,v1=forged"))
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

	if n := f.mongo.CountDocuments(t, bookingsrepo.CollectionName); n != 0 {
		t.Errorf("forged webhook created %d bookings", n)
	}
}

func TestListBookingsEmpty(t *testing.T) {
	f := setup(t)
	must := testutil.Must(t)

	resp := must(f.traveler.GetAll(context.Background(), 10, 0))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	bookings, meta, err := f.api.DecodeBookings(resp)
	if err != nil {
		t.Fatal(err)
	}
	if len(bookings) != 0 || meta.TotalCount != 0 {
		t.Errorf("fresh traveler sees %d bookings (total %d)", len(bookings), meta.TotalCount)
	}

	resp = must(f.stranger.GetByID(context.Background(), unknownID))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

// TestCheckoutSession talks to the Stripe test environment and only runs
// when the bookings service was started with a test key.
func TestCheckoutSession(t *testing.T) {
	if os.Getenv("TEST_STRIPE_ENABLED") == "" {
		t.Skip("TEST_STRIPE_ENABLED not set")
	}
	f := setup(t)

	resp := testutil.Must(t)(f.traveler.CreateCheckoutSession(context.Background(), f.tourID, checkout(2, f.monday)))
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	session, err := f.api.DecodeCheckoutSession(resp)
	if err != nil {
		t.Fatal(err)
	}
	if session.SessionID == "" || session.URL == "" || session.Total != 1000 {
		t.Errorf("checkout session = %+v", session)
	}
	if n := f.mongo.CountDocuments(t, bookingsrepo.CollectionName); n != 0 {
		t.Errorf("checkout must not create a booking before payment, found %d", n)
	}
}
