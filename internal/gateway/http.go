package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saasykit/atlas/internal/config"
	"go.uber.org/zap"
)

// httpGateway speaks a generic JSON billing API. The wire shape follows
// the provider configured in billing.yaml; auth is a bearer key plus a
// merchant header.
type httpGateway struct {
	client     *http.Client
	log        *zap.Logger
	baseURL    string
	apiKey     string
	merchantID string
}

func newHTTPGateway(cfg config.GatewayConfig, log *zap.Logger) Gateway {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpGateway{
		client:     &http.Client{Timeout: timeout},
		log:        log.Named("gateway.http"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		merchantID: cfg.MerchantID,
	}
}

func (g *httpGateway) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	var out Customer
	if err := g.do(ctx, http.MethodPost, "/customers", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) UpdateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	var out Customer
	if err := g.do(ctx, http.MethodPut, "/customers/"+input.ID, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error) {
	var out Subscription
	if err := g.do(ctx, http.MethodPost, "/subscriptions", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) UpdateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error) {
	var out Subscription
	if err := g.do(ctx, http.MethodPut, "/subscriptions/"+input.ID, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) DeleteSubscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	if err := g.do(ctx, http.MethodDelete, "/subscriptions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) CreatePlan(ctx context.Context, input Plan) (*Plan, error) {
	var out Plan
	if err := g.do(ctx, http.MethodPost, "/plans", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) UpdatePlan(ctx context.Context, input Plan) (*Plan, error) {
	var out Plan
	if err := g.do(ctx, http.MethodPut, "/plans/"+input.ID, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *httpGateway) DeletePlan(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/plans/"+id, nil, nil)
}

func (g *httpGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("X-Merchant-Id", g.merchantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Network failures and timeouts are retryable.
		return Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		// Deletes may answer 204 with no body.
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Transient(fmt.Errorf("gateway responded %d", resp.StatusCode))
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		g.log.Warn("gateway rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("gateway responded %d: %s", resp.StatusCode, string(payload))
	}
}
