package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Mode:         "sandbox",
		BaseURL:      baseURL,
		HTTPTimeout:  2 * time.Second,
	})
}

func writeToken(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": token,
		"expires_in":   3600,
	})
}

func TestCreateOrderSendsPayloadAndParsesResponse(t *testing.T) {
	var capturedAuth string
	var capturedBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeToken(w, "token-1")
		case "/v2/checkout/orders":
			capturedAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&capturedBody)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"ORDER1","status":"CREATED","links":[{"href":"https://paypal.example/approve","rel":"approve","method":"GET"}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	order, err := client.CreateOrder(context.Background(), CreateOrderInput{
		Value:       "10.00",
		Currency:    "USD",
		Description: "test order",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if capturedAuth != "Bearer token-1" {
		t.Fatalf("expected bearer token, got %q", capturedAuth)
	}
	if capturedBody["intent"] != "CAPTURE" {
		t.Fatalf("expected CAPTURE intent, got %v", capturedBody["intent"])
	}
	if order.ID != "ORDER1" || order.Status != "CREATED" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(order.Links) != 1 || order.Links[0].Rel != "approve" {
		t.Fatalf("unexpected links: %+v", order.Links)
	}
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	tokenCalls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls++
			writeToken(w, "token-1")
		default:
			_, _ = w.Write([]byte(`{"id":"ORDER1","status":"CREATED"}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.GetOrder(context.Background(), "ORDER1"); err != nil {
			t.Fatalf("get order failed: %v", err)
		}
	}

	if tokenCalls != 1 {
		t.Fatalf("expected a single token fetch, got %d", tokenCalls)
	}
}

func TestExpiredTokenRefreshedOnceAndRequestReissued(t *testing.T) {
	tokenCalls := 0
	captureCalls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls++
			writeToken(w, "token-"+string(rune('0'+tokenCalls)))
		case "/v2/checkout/orders/ORDER1/capture":
			captureCalls++
			if r.Header.Get("Authorization") == "Bearer token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":"ORDER1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP1","status":"COMPLETED"}]}}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	order, err := client.CaptureOrder(context.Background(), "ORDER1")
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}

	if tokenCalls != 2 {
		t.Fatalf("expected one refresh after 401, got %d token fetches", tokenCalls)
	}
	if captureCalls != 2 {
		t.Fatalf("expected capture reissued exactly once, got %d calls", captureCalls)
	}
	if order.FirstCaptureID() != "CAP1" {
		t.Fatalf("expected capture id CAP1, got %q", order.FirstCaptureID())
	}
}

func TestCaptureIDEmptyWhenResponseOmitsCaptures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			writeToken(w, "token-1")
			return
		}
		_, _ = w.Write([]byte(`{"id":"ORDER1","status":"COMPLETED","purchase_units":[{}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	order, err := client.CaptureOrder(context.Background(), "ORDER1")
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}
	if order.FirstCaptureID() != "" {
		t.Fatalf("expected empty capture id, got %q", order.FirstCaptureID())
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"bad request", http.StatusUnprocessableEntity, KindBadRequest},
		{"unavailable", http.StatusServiceUnavailable, KindUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/oauth2/token" {
					writeToken(w, "token-1")
					return
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"name":"ERROR"}`))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL)
			_, err := client.GetOrder(context.Background(), "ORDER1")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, apiErr.Kind)
			}
			if apiErr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, apiErr.StatusCode)
			}
		})
	}
}

func TestTransportFailureClassifiedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "token-1")
	}))
	baseURL := srv.URL
	srv.Close()

	client := newTestClient(baseURL)
	_, err := client.GetOrder(context.Background(), "ORDER1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Kind != KindUnavailable {
		t.Fatalf("expected unavailable, got %s", apiErr.Kind)
	}
}

func TestRefundCaptureFullRefundOmitsAmount(t *testing.T) {
	var refundBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			writeToken(w, "token-1")
		case "/v2/payments/captures/CAP1/refund":
			_ = json.NewDecoder(r.Body).Decode(&refundBody)
			_, _ = w.Write([]byte(`{"id":"REF1","status":"COMPLETED"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	refund, err := client.RefundCapture(context.Background(), RefundInput{CaptureID: "CAP1", Currency: "USD"})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if refund.ID != "REF1" || refund.Status != "COMPLETED" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
	if _, ok := refundBody["amount"]; ok {
		t.Fatalf("expected full refund to omit amount, got %v", refundBody)
	}
}

func TestRefundCapturePartialAmountSent(t *testing.T) {
	var refundBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			writeToken(w, "token-1")
		case "/v2/payments/captures/CAP1/refund":
			_ = json.NewDecoder(r.Body).Decode(&refundBody)
			_, _ = w.Write([]byte(`{"id":"REF1","status":"COMPLETED"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.RefundCapture(context.Background(), RefundInput{CaptureID: "CAP1", Value: "4.50", Currency: "USD"}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	amount, ok := refundBody["amount"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected amount object, got %v", refundBody)
	}
	if amount["value"] != "4.50" || amount["currency_code"] != "USD" {
		t.Fatalf("unexpected amount payload: %v", amount)
	}
}
