// Package gateway holds the clients for the sales backend: sale submission,
// today stats, and voice settings.
package gateway

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

// SubmissionError reports a rejected or failed sale write. The cart is left
// intact so the cashier can retry.
type SubmissionError struct {
	Detail string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("sale submission failed: %s", e.Detail)
}

// SaleLine is one ordered line of the sale payload.
type SaleLine struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Sale is the payload sent on confirm.
type Sale struct {
	Items            []SaleLine `json:"items"`
	PaymentMethod    string     `json:"payment_method"`
	PaymentReference *string    `json:"payment_reference"`
	CustomerName     *string    `json:"customer_name"`
	IsCredit         bool       `json:"is_credit"`
}

// SaleResult is the accepted sale record.
type SaleResult struct {
	ID    int64   `json:"id"`
	Total float64 `json:"total,omitempty"`
}

// Client talks to the sales backend.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	AuthToken  string
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthToken:  authToken,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &er) == nil && er.Detail != "" {
			return &SubmissionError{Detail: er.Detail}
		}
		return &SubmissionError{Detail: fmt.Sprintf("status=%d", resp.StatusCode)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}

// Submit posts the sale. On failure the returned error carries the server's
// detail when available.
func (c *Client) Submit(ctx context.Context, sale Sale) (SaleResult, error) {
	var res SaleResult
	if err := c.do(ctx, http.MethodPost, "/api/sales/", sale, &res); err != nil {
		return SaleResult{}, err
	}
	return res, nil
}
