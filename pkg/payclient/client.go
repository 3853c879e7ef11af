/**
 * @description
 * This package provides a client for the payment dispatcher. It submits one
 * payment instruction per payee and returns the provider's reference
 * synchronously; the terminal settlement receipt arrives later through the
 * reconciliation engine's ingestion entrypoints.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package payclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the payment dispatch API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payment dispatcher client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DispatchRequest is the payload for one payment instruction.
type DispatchRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			BatchID  string `json:"batch_id"`
			PayeeID  string `json:"payee_id"`
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"attributes"`
	} `json:"data"`
}

// DispatchResponse is the dispatcher's synchronous acknowledgement.
type DispatchResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// ErrorResponse is the dispatcher's error payload.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("payment dispatcher error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown payment dispatcher error"
}

// IsExplicitRejection reports whether the dispatcher affirmatively refused the
// instruction (4xx with a parsed body), as opposed to an ambiguous failure
// where the payment may still have been accepted.
func (e *ErrorResponse) IsExplicitRejection() bool {
	for _, item := range e.Errors {
		status := strings.TrimSpace(item.Status)
		if strings.HasPrefix(status, "4") {
			return true
		}
	}
	return false
}

// Dispatcher is the contract the batch executor depends on; tests substitute stubs.
type Dispatcher interface {
	DispatchPayment(ctx context.Context, batchID, payeeID, amount, currency string) (string, error)
}

// DispatchPayment submits one payment instruction and returns the provider ref.
func (c *Client) DispatchPayment(ctx context.Context, batchID, payeeID, amount, currency string) (string, error) {
	payload := DispatchRequest{}
	payload.Data.Type = "PayrollPayment"
	payload.Data.Attributes.BatchID = batchID
	payload.Data.Attributes.PayeeID = payeeID
	payload.Data.Attributes.Amount = amount
	payload.Data.Attributes.Currency = currency

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/payments", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-pay-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute dispatch request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read dispatch response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=pay_client op=dispatch status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return "", fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		return "", &errResp
	}

	var ack DispatchResponse
	if err := json.Unmarshal(bodyBytes, &ack); err != nil {
		return "", fmt.Errorf("failed to decode dispatch response: %w", err)
	}
	return strings.TrimSpace(ack.Data.ID), nil
}
