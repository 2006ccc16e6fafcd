// Package paymentprovider клиент HTTP API платежного шлюза.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const serviceName = "payment"

// maxBody ограничивает размер читаемого ответа.
const maxBody = 1 << 20

type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewClient создает клиент шлюза по настройкам из конфига.
func NewClient(cfg config.Payment) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*Charge, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return DecodeCharge(raw)
}

// CreateCharge создает платеж. Возвращенный Charge содержит id и transaction.url для оплаты.
func (c *Client) CreateCharge(ctx context.Context, in ChargeRequest) (*Charge, error) {
	const op = "paymentprovider.CreateCharge"
	req, err := c.newRequest(ctx, http.MethodPost, "/charges", in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: serviceName, Err: err})
	}
	if ch.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: serviceName, Err: fmt.Errorf("charge id is missing")})
	}
	return ch, nil
}

// GetCharge запрашивает текущее состояние платежа.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	const op = "paymentprovider.GetCharge"
	req, err := c.newRequest(ctx, http.MethodGet, "/charges/"+url.PathEscape(chargeID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: serviceName, Err: err})
	}
	return ch, nil
}
