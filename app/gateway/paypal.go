package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// Refresh slightly before PayPal's reported expiry to avoid racing it.
	tokenExpirySlack = 60 * time.Second
)

type Config struct {
	ClientID     string
	ClientSecret string
	Mode         string
	BaseURL      string
	HTTPTimeout  time.Duration
}

// Client is a PayPal REST v2 client. The OAuth token is cached per client
// instance and guarded by a mutex; on a 401 the token is refreshed once and
// the rejected request is reissued a single time. Business failures are
// never retried.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		if strings.EqualFold(strings.TrimSpace(cfg.Mode), "live") {
			baseURL = liveBaseURL
		} else {
			baseURL = sandboxBaseURL
		}
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PurchaseUnitPayments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	Payments *PurchaseUnitPayments `json:"payments"`
}

// Order is the typed slice of a PayPal order response. Raw carries the full
// response body for passthrough reads.
type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`

	Raw json.RawMessage `json:"-"`
}

// FirstCaptureID returns the capture identifier nested under the first
// purchase unit, or "" when the response carries none.
func (o *Order) FirstCaptureID() string {
	if o == nil || len(o.PurchaseUnits) == 0 {
		return ""
	}
	payments := o.PurchaseUnits[0].Payments
	if payments == nil || len(payments.Captures) == 0 {
		return ""
	}
	return strings.TrimSpace(payments.Captures[0].ID)
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CreateOrderInput struct {
	Value       string
	Currency    string
	Description string
}

type RefundInput struct {
	CaptureID string
	// Value empty means a full refund on the gateway side.
	Value    string
	Currency string
}

func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	purchaseUnit := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": input.Currency,
			"value":         input.Value,
		},
	}
	if strings.TrimSpace(input.Description) != "" {
		purchaseUnit["description"] = input.Description
	}

	payload := map[string]interface{}{
		"intent":         "CAPTURE",
		"purchase_units": []interface{}{purchaseUnit},
	}

	body, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return nil, err
	}

	return parseOrder(body)
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	body, err := c.do(ctx, http.MethodPost, path, struct{}{})
	if err != nil {
		return nil, err
	}

	return parseOrder(body)
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return parseOrder(body)
}

func (c *Client) RefundCapture(ctx context.Context, input RefundInput) (*Refund, error) {
	path := "/v2/payments/captures/" + url.PathEscape(input.CaptureID) + "/refund"

	payload := map[string]interface{}{}
	if strings.TrimSpace(input.Value) != "" {
		payload["amount"] = map[string]string{
			"value":         input.Value,
			"currency_code": input.Currency,
		}
	}

	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var refund Refund
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, &APIError{Kind: KindUnknown, Message: "malformed refund response: " + err.Error()}
	}
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	token, err := c.token(ctx, false)
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		token, err = c.token(ctx, true)
		if err != nil {
			return nil, err
		}
		status, body, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return nil, err
		}
	}

	if status >= 400 {
		return nil, classifyStatus(status, string(body))
	}

	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}, token string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &APIError{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &APIError{Kind: KindUnavailable, Message: err.Error()}
	}

	return resp.StatusCode, body, nil
}

// token returns the cached access token, fetching a fresh one when absent,
// expired, or force is set.
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if strings.TrimSpace(c.cfg.ClientID) == "" || strings.TrimSpace(c.cfg.ClientSecret) == "" {
		return "", errors.New("paypal credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &APIError{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Kind: KindUnavailable, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &APIError{Kind: KindUnknown, Message: "malformed token response: " + err.Error()}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", &APIError{Kind: KindUnauthorized, Message: "token response missing access_token"}
	}

	c.accessToken = payload.AccessToken
	expiry := time.Duration(payload.ExpiresIn) * time.Second
	if expiry > tokenExpirySlack {
		expiry -= tokenExpirySlack
	}
	c.tokenExpiry = time.Now().Add(expiry)

	return c.accessToken, nil
}

func parseOrder(body []byte) (*Order, error) {
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, &APIError{Kind: KindUnknown, Message: "malformed order response: " + err.Error()}
	}
	order.Raw = json.RawMessage(body)
	return &order, nil
}
