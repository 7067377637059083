/**
 * @description
 * This package provides a client for the external disbursement provider's
 * API. It encapsulates authenticated HTTP requests for submitting payouts to
 * bank and e-wallet destinations.
 *
 * The external id we send is the withdrawal id, which the provider echoes
 * back in the asynchronous callback and uses for idempotent matching on its
 * side: resubmitting the same external id never creates a second payout.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */

package disburseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the disbursement provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new disbursement API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DisbursementRequest is the payload for submitting a payout.
type DisbursementRequest struct {
	ExternalID        string `json:"external_id"`
	Amount            int64  `json:"amount"` // smallest currency unit
	BankCode          string `json:"bank_code"`
	AccountNumber     string `json:"account_number"`
	AccountHolderName string `json:"account_holder_name"`
	Description       string `json:"description"`
}

// DisbursementResponse is the provider's synchronous acknowledgement. The
// final outcome arrives later via the disbursement callback.
type DisbursementResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// ErrorResponse represents an error returned by the provider API.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("disbursement api error: %s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("disbursement api error: status %d", e.StatusCode)
}

// SubmitDisbursement sends a payout request to the provider.
func (c *Client) SubmitDisbursement(ctx context.Context, req DisbursementRequest) (*DisbursementResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal disbursement request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/disbursements", c.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("disbursement request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read disbursement response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &ErrorResponse{StatusCode: resp.StatusCode}
		// Best effort decode; the status code alone is still a usable error.
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}

	var out DisbursementResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode disbursement response: %w", err)
	}
	return &out, nil
}
