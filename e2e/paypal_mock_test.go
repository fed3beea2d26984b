//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
)

const (
	paypalMockAddr        = "0.0.0.0:38085"
	defaultPayPalMockBase = "http://localhost:38085"
)

// paypalMock is an in-memory stand-in for the PayPal REST API. It issues
// bearer tokens, tracks order state across create/capture/refund, and
// rejects requests without a valid token the way the real API does.
type paypalMock struct {
	mu     sync.Mutex
	orders map[string]*paypalMockOrder
	seq    int
	token  string
}

type paypalMockOrder struct {
	ID        string
	Status    string
	Value     string
	Currency  string
	CaptureID string
	Refunded  bool
}

func newPayPalMock() *paypalMock {
	return &paypalMock{
		orders: map[string]*paypalMockOrder{},
		token:  "e2e-access-token",
	}
}

func (m *paypalMock) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", m.handleToken)
	mux.HandleFunc("/v2/checkout/orders", m.handleCreateOrder)
	mux.HandleFunc("/v2/checkout/orders/", m.handleOrderByID)
	mux.HandleFunc("/v2/payments/captures/", m.handleRefund)
	return mux
}

func (m *paypalMock) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": m.token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (m *paypalMock) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+m.token
}

func (m *paypalMock) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body struct {
		PurchaseUnits []struct {
			Amount struct {
				Value        string `json:"value"`
				CurrencyCode string `json:"currency_code"`
			} `json:"amount"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.PurchaseUnits) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.seq++
	order := &paypalMockOrder{
		ID:       fmt.Sprintf("E2E-ORDER-%d", m.seq),
		Status:   "CREATED",
		Value:    body.PurchaseUnits[0].Amount.Value,
		Currency: body.PurchaseUnits[0].Amount.CurrencyCode,
	}
	m.orders[order.ID] = order
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     order.ID,
		"status": order.Status,
		"links": []map[string]string{
			{"href": defaultPayPalMockBase + "/checkoutnow?token=" + order.ID, "rel": "approve", "method": "GET"},
		},
	})
}

func (m *paypalMock) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/")
	if strings.HasSuffix(rest, "/capture") && r.Method == http.MethodPost {
		m.capture(w, strings.TrimSuffix(rest, "/capture"))
		return
	}
	if r.Method == http.MethodGet {
		m.getOrder(w, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (m *paypalMock) capture(w http.ResponseWriter, orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "RESOURCE_NOT_FOUND"})
		return
	}
	if order.Status == "COMPLETED" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "ORDER_ALREADY_CAPTURED"})
		return
	}
	order.Status = "COMPLETED"
	order.CaptureID = "E2E-CAP-" + orderID
	writeJSON(w, http.StatusCreated, m.orderDocument(order))
}

func (m *paypalMock) getOrder(w http.ResponseWriter, orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "RESOURCE_NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, m.orderDocument(order))
}

func (m *paypalMock) orderDocument(order *paypalMockOrder) map[string]any {
	doc := map[string]any{
		"id":     order.ID,
		"status": order.Status,
	}
	if order.CaptureID != "" {
		doc["purchase_units"] = []map[string]any{
			{"payments": map[string]any{"captures": []map[string]any{{"id": order.CaptureID, "status": "COMPLETED"}}}},
		}
	}
	return doc
}

func (m *paypalMock) handleRefund(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/refund") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	captureID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/payments/captures/"), "/refund")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.CaptureID == captureID {
			if order.Refunded {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "CAPTURE_FULLY_REFUNDED"})
				return
			}
			order.Refunded = true
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":     "E2E-REFUND-" + captureID,
				"status": "COMPLETED",
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "RESOURCE_NOT_FOUND"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestMain(m *testing.M) {
	listener, err := net.Listen("tcp", paypalMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start paypal mock: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{Handler: newPayPalMock().handler()}
	go func() {
		_ = server.Serve(listener)
	}()

	exitCode := m.Run()

	_ = server.Close()
	_ = listener.Close()

	os.Exit(exitCode)
}
