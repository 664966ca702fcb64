package handles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Frozenguru/stk/mpesa"
)

var errMockGateway = errors.New("gateway unavailable")

// mockPusher implements Pusher for testing.
type mockPusher struct {
	pushFunc func(ctx context.Context, p mpesa.PushParams) ([]byte, error)
	calls    int
}

func (m *mockPusher) STKPush(ctx context.Context, p mpesa.PushParams) ([]byte, error) {
	m.calls++
	if m.pushFunc != nil {
		return m.pushFunc(ctx, p)
	}
	return []byte(`{}`), nil
}

func newTestApp(gateway Pusher) *fiber.App {
	handler := New(gateway, zap.NewNop())
	app := fiber.New()
	app.Post("/stkpush", handler.StkPush)
	app.Post("/callback", handler.Callback)
	app.Get("/health", handler.Health)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

func TestStkPushSuccess(t *testing.T) {
	var got mpesa.PushParams
	mock := &mockPusher{
		pushFunc: func(ctx context.Context, p mpesa.PushParams) ([]byte, error) {
			got = p
			return []byte(`{"CheckoutRequestID":"ws_1"}`), nil
		},
	}
	app := newTestApp(mock)

	resp := postJSON(t, app, "/stkpush", `{"phone":"254712345678","amount":100,"reference":"INV001","description":"Test"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, []byte(`{"CheckoutRequestID":"ws_1"}`)) {
		t.Errorf("body = %s, want gateway response relayed verbatim", body)
	}
	if got.Phone != "254712345678" || got.Amount != 100 || got.Reference != "INV001" || got.Description != "Test" {
		t.Errorf("gateway received %+v, want request fields passed through", got)
	}
}

func TestStkPushMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no phone", `{"amount":100,"reference":"INV001","description":"Test"}`},
		{"no amount", `{"phone":"254712345678","reference":"INV001","description":"Test"}`},
		{"no reference", `{"phone":"254712345678","amount":100,"description":"Test"}`},
		{"no description", `{"phone":"254712345678","amount":100,"reference":"INV001"}`},
		{"zero amount", `{"phone":"254712345678","amount":0,"reference":"INV001","description":"Test"}`},
		{"empty body", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockPusher{}
			app := newTestApp(mock)

			resp := postJSON(t, app, "/stkpush", tc.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if mock.calls != 0 {
				t.Errorf("gateway called %d times, want 0", mock.calls)
			}
		})
	}
}

func TestStkPushMalformedJSON(t *testing.T) {
	mock := &mockPusher{}
	app := newTestApp(mock)

	resp := postJSON(t, app, "/stkpush", `{not json`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if mock.calls != 0 {
		t.Errorf("gateway called %d times, want 0", mock.calls)
	}
}

func TestStkPushGatewayFailure(t *testing.T) {
	mock := &mockPusher{
		pushFunc: func(ctx context.Context, p mpesa.PushParams) ([]byte, error) {
			return nil, errMockGateway
		},
	}
	app := newTestApp(mock)

	resp := postJSON(t, app, "/stkpush", `{"phone":"254712345678","amount":100,"reference":"INV001","description":"Test"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["error"] == "" {
		t.Error("expected an error message in the response body")
	}
}

func TestCallbackAlwaysAcknowledges(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"full envelope", `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"ws_1","ResultCode":0,"ResultDesc":"Success"}}}`},
		{"failed transaction", `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_2","ResultCode":1032,"ResultDesc":"Cancelled by user"}}}`},
		{"unrelated object", `{"foo":"bar"}`},
		{"array", `[1,2,3]`},
		{"not json", `not json at all`},
		{"empty", ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&mockPusher{})

			resp := postJSON(t, app, "/callback", tc.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(&mockPusher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
