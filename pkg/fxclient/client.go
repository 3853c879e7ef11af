/**
 * @description
 * This package provides a client for the upstream FX rate provider. It
 * encapsulates the authenticated HTTP call that fetches quote-currency rates
 * against a base currency, and maps transport failures onto the core's
 * ProviderUnavailable error so callers can decide to retry or keep the
 * previous snapshot.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package fxclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one currency's rate against the requested base, as reported by the
// provider.
type Quote struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Fee      decimal.Decimal `json:"fee"`
}

// RatesResponse is the provider's payload for a rates request.
type RatesResponse struct {
	Data struct {
		Provider    string  `json:"provider"`
		Base        string  `json:"base"`
		Quotes      []Quote `json:"quotes"`
		VarianceBps *int    `json:"variance_bps,omitempty"`
	} `json:"data"`
}

// ErrorResponse is the provider's error payload.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("fx provider error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown fx provider error"
}

// RateProvider is the contract the FX snapshot manager depends on. The HTTP
// client below is the production implementation; tests substitute stubs.
type RateProvider interface {
	Name() string
	GetRates(ctx context.Context, baseCurrency string, targetCurrencies []string) (*RatesResponse, error)
}

// Client is a client for one FX rate provider endpoint.
type Client struct {
	ProviderName string
	BaseURL      string
	APIKey       string
	HTTPClient   *http.Client
}

// NewClient creates a new FX provider client.
func NewClient(providerName, baseURL, apiKey string) *Client {
	return &Client{
		ProviderName: providerName,
		BaseURL:      baseURL,
		APIKey:       apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the provider identifier recorded on snapshots.
func (c *Client) Name() string {
	return c.ProviderName
}

// GetRates fetches quotes for the target currencies against the base currency.
// Any transport-level failure is returned as-is for the caller to wrap as
// ProviderUnavailable; a non-2xx with a parsable body becomes a typed
// *ErrorResponse.
func (c *Client) GetRates(ctx context.Context, baseCurrency string, targetCurrencies []string) (*RatesResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/rates?base=%s&targets=%s",
		c.BaseURL,
		url.QueryEscape(strings.ToUpper(baseCurrency)),
		url.QueryEscape(strings.ToUpper(strings.Join(targetCurrencies, ","))),
	)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-fx-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute rates request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=fx_client provider=%s op=rates status=%d msg=\"non-2xx response (unparsable error body)\"", c.ProviderName, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		return nil, &errResp
	}

	var rates RatesResponse
	if err := json.Unmarshal(bodyBytes, &rates); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}
	if rates.Data.Provider == "" {
		rates.Data.Provider = c.ProviderName
	}
	return &rates, nil
}
