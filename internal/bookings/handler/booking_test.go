package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"tourbook/internal/bookings/service"
	"tourbook/internal/payments"
	"tourbook/pkg/auth"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

// mockService implements only what a test sets; other calls panic through
// the nil embedded interface.
type mockService struct {
	service.BookingService

	checkoutFunc     func(ctx context.Context, caller auth.Identity, sourceID string, in *model.CheckoutInput) (*service.CheckoutSession, error)
	confirmFunc      func(ctx context.Context, session *payments.Session) (*model.Booking, error)
	confirmSessionFn func(ctx context.Context, sessionID string) (*model.Booking, error)
	availabilityFunc func(ctx context.Context, tourID, date string, groupSize int) (*model.Availability, error)
	listFunc         func(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.Booking, int64, error)
}

func (m *mockService) InitiateCheckout(ctx context.Context, caller auth.Identity, sourceID string, in *model.CheckoutInput) (*service.CheckoutSession, error) {
	return m.checkoutFunc(ctx, caller, sourceID, in)
}

func (m *mockService) ConfirmPayment(ctx context.Context, session *payments.Session) (*model.Booking, error) {
	return m.confirmFunc(ctx, session)
}

func (m *mockService) ConfirmSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	return m.confirmSessionFn(ctx, sessionID)
}

func (m *mockService) CheckAvailability(ctx context.Context, tourID, date string, groupSize int) (*model.Availability, error) {
	return m.availabilityFunc(ctx, tourID, date, groupSize)
}

func (m *mockService) ListBookings(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, caller, limit, offset)
}

// stubGateway only verifies webhooks: the signature must equal "valid".
type stubGateway struct {
	payments.Gateway
	event *payments.WebhookEvent
}

func (g *stubGateway) ParseWebhook(_ []byte, signature string) (*payments.WebhookEvent, error) {
	if signature != "valid" {
		return nil, payments.ErrInvalidSignature
	}
	return g.event, nil
}

var tokens = auth.NewJWT("test-secret", time.Hour)

var (
	traveler = auth.Identity{UserID: "traveler-1", Role: auth.RoleUser}
	guideA   = auth.Identity{UserID: "guide-a", Role: auth.RoleGuide}
)

func newRouter(svc service.BookingService, gateway payments.Gateway, manual bool) *httprouter.Router {
	rt := NewRouter(
		NewBookingHandler(svc, auth.NewGuard(tokens), manual, logger.Discard()),
		NewWebhookHandler(svc, gateway, logger.Discard()),
	)
	router := httprouter.New()
	rt.RegisterRoutes(router)
	rt.RegisterWebhooks(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string, as *auth.Identity, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if as != nil {
		token, err := tokens.Sign(*as)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var env httputil.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid error body %q: %v", rec.Body.String(), err)
	}
	return env.Error
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotSource string
	var gotInput model.CheckoutInput
	svc := &mockService{
		checkoutFunc: func(_ context.Context, caller auth.Identity, sourceID string, in *model.CheckoutInput) (*service.CheckoutSession, error) {
			if caller != traveler {
				t.Errorf("caller = %+v", caller)
			}
			gotSource = sourceID
			gotInput = *in
			return &service.CheckoutSession{SessionID: "cs_1", URL: "https://checkout.test/cs_1", Total: 1500, Currency: "egp"}, nil
		},
	}
	router := newRouter(svc, &stubGateway{}, false)
	body := `{"source_type":"standard","group_size":3,"tour_date":"2030-03-04","first_name":"Mona","last_name":"Adel","phone":"01012345678"}`

	rec := do(t, router, http.MethodPost, "/api/v1/bookings/checkout-session/tour-1", body, &traveler, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotSource != "tour-1" || gotInput.GroupSize != 3 || gotInput.SourceType != model.SourceStandard {
		t.Errorf("source = %s, input = %+v", gotSource, gotInput)
	}
	if !strings.Contains(rec.Body.String(), `"url":"https://checkout.test/cs_1"`) {
		t.Errorf("body = %s", rec.Body)
	}

	t.Run("requires a traveler", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/v1/bookings/checkout-session/tour-1", body, &guideA, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		rec = do(t, router, http.MethodPost, "/api/v1/bookings/checkout-session/tour-1", body, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("provider failure is retryable", func(t *testing.T) {
		svc.checkoutFunc = func(context.Context, auth.Identity, string, *model.CheckoutInput) (*service.CheckoutSession, error) {
			return nil, apperrors.ExternalService("Payment provider", errors.New("timeout"))
		}
		rec := do(t, router, http.MethodPost, "/api/v1/bookings/checkout-session/tour-1", body, &traveler, nil)
		if rec.Code != http.StatusBadGateway || rec.Header().Get("Retry-After") == "" {
			t.Errorf("status = %d, headers = %v", rec.Code, rec.Header())
		}
		if !errorBody(t, rec).Retryable {
			t.Error("error body not marked retryable")
		}
	})
}

func TestWebhook(t *testing.T) {
	paid := &payments.Session{ID: "cs_1", PaymentStatus: payments.StatusPaid}

	tests := []struct {
		name       string
		signature  string
		event      *payments.WebhookEvent
		confirmErr error
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "bad signature",
			signature:  "forged",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unrelated event is acknowledged",
			signature:  "valid",
			event:      &payments.WebhookEvent{ID: "evt_1", Type: "charge.refunded"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "completed checkout is confirmed",
			signature:  "valid",
			event:      &payments.WebhookEvent{ID: "evt_2", Type: payments.EventCheckoutCompleted, Session: paid},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "unprocessable event is acknowledged",
			signature:  "valid",
			event:      &payments.WebhookEvent{ID: "evt_3", Type: payments.EventCheckoutCompleted, Session: paid},
			confirmErr: apperrors.NotFound("Tour").WithReason(apperrors.ReasonSourceNotFound),
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "internal failure asks for redelivery",
			signature:  "valid",
			event:      &payments.WebhookEvent{ID: "evt_4", Type: payments.EventCheckoutCompleted, Session: paid},
			confirmErr: apperrors.Internal("Failed to confirm payment", errors.New("no primary")),
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			svc := &mockService{
				confirmFunc: func(_ context.Context, s *payments.Session) (*model.Booking, error) {
					calls++
					if s.ID != paid.ID {
						t.Errorf("session = %s", s.ID)
					}
					if tt.confirmErr != nil {
						return nil, tt.confirmErr
					}
					return &model.Booking{ID: "b-1"}, nil
				},
			}
			router := newRouter(svc, &stubGateway{event: tt.event}, false)

			rec := do(t, router, http.MethodPost, WebhookPath, `{"id":"evt"}`, nil, map[string]string{"Stripe-Signature": tt.signature})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if calls != tt.wantCalls {
				t.Errorf("ConfirmPayment calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestConfirmSessionRoute(t *testing.T) {
	svc := &mockService{
		confirmSessionFn: func(_ context.Context, sessionID string) (*model.Booking, error) {
			if sessionID != "cs_42" {
				t.Errorf("session id = %q", sessionID)
			}
			return &model.Booking{ID: "b-1", PaymentSessionID: sessionID}, nil
		},
	}

	rec := do(t, newRouter(svc, &stubGateway{}, true), http.MethodGet, "/api/v1/bookings/create?session_id=cs_42", "", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = do(t, newRouter(svc, &stubGateway{}, false), http.MethodGet, "/api/v1/bookings/create?session_id=cs_42", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when manual confirmation is off", rec.Code)
	}
}

func TestAvailability(t *testing.T) {
	var gotSize int
	svc := &mockService{
		availabilityFunc: func(_ context.Context, tourID, date string, groupSize int) (*model.Availability, error) {
			gotSize = groupSize
			return &model.Availability{TourID: tourID, Date: date, RunsOn: true, Capacity: 4, Remaining: 4, Available: true}, nil
		},
	}
	router := newRouter(svc, &stubGateway{}, false)

	rec := do(t, router, http.MethodGet, "/api/v1/tours/tour-1/availability?date=2030-03-04", "", nil, nil)
	if rec.Code != http.StatusOK || gotSize != 1 {
		t.Errorf("status = %d, group size = %d", rec.Code, gotSize)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/tours/tour-1/availability?date=2030-03-04&group_size=3", "", nil, nil)
	if rec.Code != http.StatusOK || gotSize != 3 {
		t.Errorf("status = %d, group size = %d", rec.Code, gotSize)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/tours/tour-1/availability?date=2030-03-04&group_size=many", "", nil, nil)
	if rec.Code != http.StatusBadRequest || errorBody(t, rec).Code != apperrors.CodeInvalidInput {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestList_Pagination(t *testing.T) {
	svc := &mockService{
		listFunc: func(_ context.Context, caller auth.Identity, limit int, offset int64) ([]*model.Booking, int64, error) {
			if caller != guideA || limit != 20 || offset != 40 {
				t.Errorf("caller = %+v, limit = %d, offset = %d", caller, limit, offset)
			}
			return []*model.Booking{{ID: "b-1"}}, 41, nil
		},
	}

	rec := do(t, newRouter(svc, &stubGateway{}, false), http.MethodGet, "/api/v1/bookings?limit=20&offset=40", "", &guideA, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var page httputil.PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 41 || page.Limit != 20 || page.Offset != 40 {
		t.Errorf("page = %+v", page)
	}
}
