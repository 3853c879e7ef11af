/**
 * @description
 * This package provides a client for the country compliance-rules evaluator.
 * It encapsulates the internal API call that checks whether a payee's record
 * satisfies the requirements of their country (bank details, tax identifiers)
 * and returns the readiness verdict with blocking issues and warnings.
 */
package complianceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the compliance service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new compliance service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EvaluateRequest defines the payload for a readiness evaluation.
type EvaluateRequest struct {
	WorkerID    string `json:"worker_id"`
	CountryCode string `json:"country_code"`
	Currency    string `json:"currency"`
}

// EvaluateResponse is the evaluator's verdict.
type EvaluateResponse struct {
	Ready          bool     `json:"ready"`
	BlockingIssues []string `json:"blocking_issues"`
	Warnings       []string `json:"warnings"`
}

// Evaluator is the contract the payee ledger depends on; tests substitute stubs.
type Evaluator interface {
	Evaluate(ctx context.Context, workerID, countryCode, currency string) (*EvaluateResponse, error)
}

// Evaluate calls the compliance service to check a payee's readiness. The
// core records the verdict verbatim; country law is never evaluated locally.
func (c *Client) Evaluate(ctx context.Context, workerID, countryCode, currency string) (*EvaluateResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("compliance service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/compliance/evaluate", c.baseURL)

	body, err := json.Marshal(EvaluateRequest{
		WorkerID:    workerID,
		CountryCode: countryCode,
		Currency:    currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to compliance service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("compliance service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var verdict EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("failed to decode compliance response: %w", err)
	}
	return &verdict, nil
}
