package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "tourbook/pkg/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	return env.Error
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{
			name:       "conflict with reason",
			err:        apperrors.Conflict("guide already placed a bid").WithReason(apperrors.ReasonDuplicateBid),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
			wantReason: apperrors.ReasonDuplicateBid,
		},
		{
			name:       "forbidden ineligible guide",
			err:        apperrors.Forbidden("guide does not match").WithReason(apperrors.ReasonIneligibleGuide),
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.CodeForbidden,
			wantReason: apperrors.ReasonIneligibleGuide,
		},
		{
			name:       "plain error becomes internal",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeEnvelope(t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
			if body.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", body.Reason, tt.wantReason)
			}
		})
	}
}

func TestWriteError_RetryableSetsHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.ExternalService("Payment provider", errors.New("timeout")))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on retryable error")
	}
	if !decodeEnvelope(t, rec).Retryable {
		t.Error("expected retryable flag in body")
	}
}

func TestWriteError_CauseHiddenUnlessExposed(t *testing.T) {
	err := apperrors.Internal("failed to save", errors.New("socket closed"))

	rec := httptest.NewRecorder()
	WriteError(rec, err)
	if strings.Contains(rec.Body.String(), "socket closed") {
		t.Error("cause leaked with exposure disabled")
	}

	ExposeErrorCause(true)
	defer ExposeErrorCause(false)

	rec = httptest.NewRecorder()
	WriteError(rec, err)
	if !strings.Contains(rec.Body.String(), "socket closed") {
		t.Error("cause missing with exposure enabled")
	}
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"", 10, 0, false},
		{"limit=5&offset=20", 5, 20, false},
		{"limit=100000", 100, 0, false},
		{"offset=-3", 10, 0, false},
		{"limit=abc", 0, 0, true},
		{"offset=x", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got (%d, %d), want (%d, %d)", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Price float64 `json:"price"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"price": 500}`))
	if err := DecodeJSON(r, &dst); err != nil || dst.Price != 500 {
		t.Fatalf("DecodeJSON() = %v, price %v", err, dst.Price)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": 1}`))
	if err := DecodeJSON(r, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("unknown field should be invalid input, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(r, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("empty body should be invalid input, got %v", err)
	}
}
