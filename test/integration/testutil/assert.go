//go:build integration

package testutil

import (
	"strings"
	"testing"

	"tourbook/pkg/client"
)

// Must returns a function that unwraps a client call and fails the test on
// transport errors: must := testutil.Must(t); resp := must(c.GetByID(ctx, id)).
func Must(t *testing.T) func(*client.Response, error) *client.Response {
	return func(resp *client.Response, err error) *client.Response {
		t.Helper()
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp
	}
}

func AssertStatusCode(t *testing.T, resp *client.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertError checks the status and the machine-readable reason of an
// error response. An empty reason only checks the status.
func AssertError(t *testing.T, resp *client.Response, status int, reason string) {
	t.Helper()
	AssertStatusCode(t, resp, status)
	if reason == "" {
		return
	}
	apiErr, err := client.DecodeError(resp)
	if err != nil {
		t.Fatal(err)
	}
	if apiErr.Reason != reason {
		t.Fatalf("expected reason %q, got %q (%s)", reason, apiErr.Reason, apiErr.Message)
	}
}

func AssertContains(t *testing.T, resp *client.Response, substr string) {
	t.Helper()
	if !strings.Contains(string(resp.Body), substr) {
		t.Fatalf("response body does not contain %q. Body: %s", substr, string(resp.Body))
	}
}
