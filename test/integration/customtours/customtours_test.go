//go:build integration

package integrationtests

import (
	"context"
	"net/http"
	"slices"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	customtoursrepo "tourbook/internal/customtours/repository"
	"tourbook/pkg/auth"
	"tourbook/pkg/client"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/test/integration/testutil"
)

const (
	travelerID = "traveler-integration-1"
	strangerID = "traveler-integration-2"
)

type fixture struct {
	env      *testutil.TestEnv
	mongo    *testutil.MongoHelper
	api      *client.CustomizedTourClient
	traveler *client.CustomizedTourClient
	stranger *client.CustomizedTourClient
	admin    *client.CustomizedTourClient

	guideA, guideB, guideC, aswan string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	env := testutil.NewTestEnv()
	mongo, httpClient := env.Setup(t, env.CustomToursURL)
	t.Cleanup(func() { env.Cleanup(t, mongo) })

	api := client.NewCustomizedTourClient(httpClient)
	f := &fixture{
		env:      env,
		mongo:    mongo,
		api:      api,
		traveler: api.As(env.Token(t, travelerID, auth.RoleUser)),
		stranger: api.As(env.Token(t, strangerID, auth.RoleUser)),
		admin:    api.As(env.Token(t, "admin-integration", auth.RoleAdmin)),
	}
	f.guideA = mongo.SeedGuide(t, testutil.LuxorGuide("Amira", 4.9))
	f.guideB = mongo.SeedGuide(t, testutil.LuxorGuide("Bassem", 4.5))
	f.guideC = mongo.SeedGuide(t, testutil.LuxorGuide("Camelia", 3.2))

	aswan := testutil.LuxorGuide("Dalia", 5.0)
	aswan.Governorates = []string{"Aswan"}
	f.aswan = mongo.SeedGuide(t, aswan)
	return f
}

func (f *fixture) guide(t *testing.T, id string) *client.CustomizedTourClient {
	return f.api.As(f.env.Token(t, id, auth.RoleGuide))
}

func (f *fixture) create(t *testing.T) *model.CustomizedTourRequest {
	t.Helper()
	resp := testutil.Must(t)(f.traveler.Create(context.Background(), testutil.NewCustomizedTourBuilder().Build()))
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	return decodeRequest(t, f.api, resp)
}

func decodeRequest(t *testing.T, c *client.CustomizedTourClient, resp *client.Response) *model.CustomizedTourRequest {
	t.Helper()
	req, err := c.DecodeRequest(resp)
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	return req
}

func TestNegotiationLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.create(t)
	if req.Status != model.StatusPending || req.PaymentStatus != model.PaymentPending {
		t.Fatalf("new request = %s/%s, want pending/pending", req.Status, req.PaymentStatus)
	}

	resp := testutil.Must(t)(f.traveler.BrowseGuides(ctx, req.ID, "-rating", 10, 0))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	guides, meta, err := f.api.DecodeGuides(resp)
	if err != nil {
		t.Fatal(err)
	}
	if meta.TotalCount != 3 || len(guides) != 3 {
		t.Fatalf("eligible guides = %d (total %d), want 3", len(guides), meta.TotalCount)
	}
	if guides[0].ID != f.guideA || guides[2].ID != f.guideC {
		t.Errorf("guides not sorted by rating descending: %s, %s, %s", guides[0].Name, guides[1].Name, guides[2].Name)
	}

	for _, g := range []string{f.guideA, f.guideB} {
		resp = testutil.Must(t)(f.traveler.SendInvitation(ctx, req.ID, g))
		testutil.AssertStatusCode(t, resp, http.StatusOK)
	}
	resp = testutil.Must(t)(f.traveler.SendInvitation(ctx, req.ID, f.guideA))
	testutil.AssertError(t, resp, http.StatusConflict, apperrors.ReasonAlreadyInvited)
	resp = testutil.Must(t)(f.traveler.SendInvitation(ctx, req.ID, f.aswan))
	testutil.AssertError(t, resp, http.StatusForbidden, apperrors.ReasonIneligibleGuide)
	resp = testutil.Must(t)(f.stranger.SendInvitation(ctx, req.ID, f.guideC))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	if got := f.mongo.Guide(t, f.guideA).TourRequests; !slices.Contains(got, req.ID) {
		t.Errorf("guide A tour_requests = %v, want to contain %s", got, req.ID)
	}

	resp = testutil.Must(t)(f.guide(t, f.guideA).ListGuideRequests(ctx, 10, 0))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	requests, _, err := f.api.DecodeRequests(resp)
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 1 || requests[0].ID != req.ID {
		t.Fatalf("guide A sees %d requests, want the invited one", len(requests))
	}

	resp = testutil.Must(t)(f.guide(t, f.guideA).SubmitBid(ctx, req.ID, 500))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp = testutil.Must(t)(f.guide(t, f.guideB).SubmitBid(ctx, req.ID, 450))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp = testutil.Must(t)(f.guide(t, f.guideA).SubmitBid(ctx, req.ID, 480))
	testutil.AssertError(t, resp, http.StatusConflict, apperrors.ReasonDuplicateBid)

	resp = testutil.Must(t)(f.traveler.RespondToBid(ctx, req.ID, f.guideC, model.DecisionAccept))
	testutil.AssertError(t, resp, http.StatusNotFound, apperrors.ReasonNoSuchBid)

	resp = testutil.Must(t)(f.traveler.RespondToBid(ctx, req.ID, f.guideB, model.DecisionReject))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	rejected := decodeRequest(t, f.api, resp)
	if _, ok := rejected.BidBy(f.guideB); ok || rejected.Status != model.StatusPending {
		t.Errorf("after reject: bid still present or status %s", rejected.Status)
	}

	resp = testutil.Must(t)(f.traveler.RespondToBid(ctx, req.ID, f.guideA, model.DecisionAccept))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	accepted := decodeRequest(t, f.api, resp)
	if accepted.Status != model.StatusConfirmed || accepted.AcceptedGuide != f.guideA || accepted.Price != 500 {
		t.Fatalf("after accept = %s, guide %s, price %.0f", accepted.Status, accepted.AcceptedGuide, accepted.Price)
	}

	resp = testutil.Must(t)(f.guide(t, f.guideC).SubmitBid(ctx, req.ID, 300))
	testutil.AssertError(t, resp, http.StatusConflict, apperrors.ReasonRequestClosed)

	// Guide release is asynchronous when Kafka is enabled.
	eventually(t, func() bool {
		return !slices.Contains(f.mongo.Guide(t, f.guideB).TourRequests, req.ID)
	})
}

func TestCancelPendingRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.create(t)
	testutil.Must(t)(f.traveler.SendInvitation(ctx, req.ID, f.guideA))

	resp := testutil.Must(t)(f.stranger.Cancel(ctx, req.ID))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	resp = testutil.Must(t)(f.traveler.Cancel(ctx, req.ID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if got := decodeRequest(t, f.api, resp); got.Status != model.StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("cancelled request = %s, cancelled_at %v", got.Status, got.CancelledAt)
	}

	resp = testutil.Must(t)(f.traveler.Cancel(ctx, req.ID))
	testutil.AssertError(t, resp, http.StatusConflict, apperrors.ReasonCannotCancel)

	resp = testutil.Must(t)(f.admin.ListCancelled(ctx, 10, 0))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	cancelled, _, err := f.api.DecodeRequests(resp)
	if err != nil {
		t.Fatal(err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != req.ID {
		t.Errorf("admin sees %d cancelled requests, want 1", len(cancelled))
	}

	eventually(t, func() bool {
		return !slices.Contains(f.mongo.Guide(t, f.guideA).TourRequests, req.ID)
	})
}

func TestConfirmCompletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.create(t)
	testutil.Must(t)(f.traveler.SendInvitation(ctx, req.ID, f.guideA))
	testutil.Must(t)(f.guide(t, f.guideA).SubmitBid(ctx, req.ID, 500))
	resp := testutil.Must(t)(f.traveler.RespondToBid(ctx, req.ID, f.guideA, model.DecisionAccept))
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp = testutil.Must(t)(f.traveler.ConfirmCompletion(ctx, req.ID, "user"))
	testutil.AssertError(t, resp, http.StatusConflict, apperrors.ReasonNotCompletable)

	past := time.Now().UTC().AddDate(0, 0, -3)
	f.mongo.SetRequestFields(t, req.ID, bson.M{
		"payment_status": model.PaymentPaid,
		"start_date":     past.AddDate(0, 0, -2),
		"end_date":       past,
	})

	resp = testutil.Must(t)(f.guide(t, f.guideB).ConfirmCompletion(ctx, req.ID, "guide"))
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)

	resp = testutil.Must(t)(f.guide(t, f.guideA).ConfirmCompletion(ctx, req.ID, "guide"))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if got := decodeRequest(t, f.api, resp); got.Status != model.StatusConfirmed || !got.GuideConfirmCompletion {
		t.Fatalf("after guide confirmation = %s, guide flag %v", got.Status, got.GuideConfirmCompletion)
	}

	resp = testutil.Must(t)(f.traveler.ConfirmCompletion(ctx, req.ID, "user"))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	done := decodeRequest(t, f.api, resp)
	if done.Status != model.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("after both confirmations = %s, completed_at %v", done.Status, done.CompletedAt)
	}

	resp = testutil.Must(t)(f.traveler.ConfirmCompletion(ctx, req.ID, "user"))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
}

func TestAccessControl(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := f.create(t)

	tests := []struct {
		name   string
		call   func() (*client.Response, error)
		status int
	}{
		{
			name:   "no token",
			call:   func() (*client.Response, error) { return f.api.ListMine(ctx, "", 10, 0) },
			status: http.StatusUnauthorized,
		},
		{
			name: "guide cannot create",
			call: func() (*client.Response, error) {
				return f.guide(t, f.guideA).Create(ctx, testutil.NewCustomizedTourBuilder().Build())
			},
			status: http.StatusForbidden,
		},
		{
			name:   "stranger cannot read",
			call:   func() (*client.Response, error) { return f.stranger.GetMine(ctx, req.ID) },
			status: http.StatusNotFound,
		},
		{
			name:   "traveler cannot delete",
			call:   func() (*client.Response, error) { return f.traveler.Delete(ctx, req.ID) },
			status: http.StatusForbidden,
		},
		{
			name:   "admin deletes",
			call:   func() (*client.Response, error) { return f.admin.Delete(ctx, req.ID) },
			status: http.StatusNoContent,
		},
		{
			name:   "gone after delete",
			call:   func() (*client.Response, error) { return f.admin.GetByID(ctx, req.ID) },
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Must(t)(tt.call())
			testutil.AssertStatusCode(t, resp, tt.status)
		})
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(model.DayLayout)
	nextWeek := time.Now().UTC().AddDate(0, 0, 7).Format(model.DayLayout)

	tests := []struct {
		name string
		in   *model.CustomizedTourInput
	}{
		{"start in the past", testutil.NewCustomizedTourBuilder().WithDates(yesterday, nextWeek).Build()},
		{"end before start", testutil.NewCustomizedTourBuilder().WithDates(nextWeek, yesterday).Build()},
		{"no languages", testutil.NewCustomizedTourBuilder().WithLanguages().Build()},
		{"no governorate", testutil.NewCustomizedTourBuilder().WithGovernorate("").Build()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Must(t)(f.traveler.Create(ctx, tt.in))
			testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)
		})
	}
	if n := f.mongo.CountDocuments(t, customtoursrepo.CollectionName); n != 0 {
		t.Errorf("%d requests stored after rejected creates", n)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatal("condition not met within 10s")
}
