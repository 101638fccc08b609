package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"legal-docs-platform/internal/config"
	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*VitaClient)(nil)

// VitaClient talks to the Vita Wallet business API. Credentials are injected
// through the constructor; nothing here is package-level state.
type VitaClient struct {
	baseURL     string
	login       string
	transKey    string
	secret      string
	frontendURL string
	client      *http.Client
	now         func() time.Time
}

func NewVitaClient(cfg config.GatewayConfig) *VitaClient {
	return &VitaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		login:       cfg.Login,
		transKey:    cfg.TransKey,
		secret:      cfg.Secret,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		client:      &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
	}
}

func (c *VitaClient) Name() string { return "vita" }

// createOrderResponse mirrors the JSON:API-ish envelope Vita returns:
// { "data": { "id": "37", "type": "payment_order", "attributes": {...} } }
type createOrderResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			URL        string `json:"url"`
			PublicCode string `json:"public_code"`
			ExpiresAt  string `json:"expires_at"`
			Status     string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

type eventFeedResponse struct {
	Events []struct {
		EventType string         `json:"event_type"`
		EventID   string         `json:"event_id"`
		CreatedAt string         `json:"created_at"`
		Payload   map[string]any `json:"payload"`
	} `json:"events"`
	Total int `json:"total"`
}

// CreateOrder implements adapter.PaymentGateway.CreateOrder. No internal
// retry: a timeout or connection error surfaces as ErrGatewayUnavailable
// and the caller decides.
func (c *VitaClient) CreateOrder(ctx context.Context, amount int64, documentID string, kind model.DocumentKind, description string) (*adapter.PaymentOrder, error) {
	if c.transKey == "" || c.secret == "" {
		return nil, fmt.Errorf("%w: gateway credentials not configured", domain.ErrInvalidArgument)
	}

	issue := description
	if issue == "" {
		issue = fmt.Sprintf("%s payment - Case #%s", kindLabel(kind), documentID)
	}

	// country_iso_code must be upper case, Vita rejects "co".
	payload := map[string]any{
		"amount":           amount,
		"country_iso_code": "CO",
		"issue":            issue,
	}
	for k, v := range c.redirectURLs(documentID) {
		payload[k] = v
	}

	body, err := c.do(ctx, http.MethodPost, "/api/businesses/payment_orders", payload)
	if err != nil {
		return nil, err
	}

	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode payment_orders response: %w, body: %s", err, string(body))
	}
	if resp.Data.Attributes.PublicCode == "" {
		return nil, fmt.Errorf("payment_orders response missing public_code: %s", string(body))
	}

	status := resp.Data.Attributes.Status
	if status == "" {
		status = "pending"
	}
	return &adapter.PaymentOrder{
		GatewayOrderID: resp.Data.ID,
		PublicCode:     resp.Data.Attributes.PublicCode,
		CheckoutURL:    resp.Data.Attributes.URL,
		ExpiresAt:      resp.Data.Attributes.ExpiresAt,
		Status:         status,
	}, nil
}

// ListRecentEvents pulls the business event feed used by the reconciliation
// poll. Feed items carry the event body under "payload" where webhooks use
// "data"; both funnel through the same parser.
func (c *VitaClient) ListRecentEvents(ctx context.Context) ([]model.GatewayEvent, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/businesses/events", nil)
	if err != nil {
		return nil, err
	}

	var feed eventFeedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	out := make([]model.GatewayEvent, 0, len(feed.Events))
	for _, item := range feed.Events {
		out = append(out, eventFromEnvelope(webhookEnvelope{
			EventType: item.EventType,
			EventID:   item.EventID,
			CreatedAt: item.CreatedAt,
			Data:      item.Payload,
		}))
	}
	return out, nil
}

func (c *VitaClient) do(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers(payload) {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("vita API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// headers builds the signed header set: X-Login, X-Trans-Key, X-Date and the
// V2-HMAC-SHA256 Authorization computed over login + date + body digest.
func (c *VitaClient) headers(payload map[string]any) map[string]string {
	xDate := FormatXDate(c.now())
	signature := Sign(c.secret, c.login, xDate, payload)
	return map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"X-Login":       c.login,
		"X-Trans-Key":   c.transKey,
		"X-Date":        xDate,
		"Authorization": fmt.Sprintf("%s, Signature: %s", authScheme, signature),
	}
}

// redirectURLs sends the payer back depending on outcome. Success lands on
// the marketing thank-you page (conversion tracking), the rest return to the
// case list.
func (c *VitaClient) redirectURLs(documentID string) map[string]string {
	caseURL := fmt.Sprintf("%s/app/cases/%s", c.frontendURL, documentID)
	casesURL := c.frontendURL + "/app/cases"
	return map[string]string{
		"success_redirect_url": fmt.Sprintf("%s/thanks?case_id=%s", c.frontendURL, documentID),
		"pending_redirect_url": caseURL + "?payment=pending",
		"cancel_redirect_url":  fmt.Sprintf("%s?payment=cancelled&case_id=%s", casesURL, documentID),
		"error_redirect_url":   fmt.Sprintf("%s?payment=error&case_id=%s", casesURL, documentID),
	}
}

func kindLabel(kind model.DocumentKind) string {
	if kind == model.DocumentKindPeticion {
		return "Right of petition"
	}
	return "Tutela"
}
