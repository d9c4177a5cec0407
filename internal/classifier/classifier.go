// Package classifier sends transcribed text to the backend that turns it into
// a structured command.
package classifier

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

// ClassificationError reports a failed or malformed remote classification.
// The caller recovers by speaking a "didn't understand" message; there is no
// retry at this layer.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

// Client calls the voice parse endpoint.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	AuthToken  string
}

type parseRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthToken:  authToken,
	}
}

// Classify posts the utterance text and returns the raw command body. A non-2xx
// status or an unreadable payload becomes a *ClassificationError, never a
// silent failure.
func (c *Client) Classify(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ClassificationError{Reason: "empty utterance"}
	}

	reqBody, _ := json.Marshal(parseRequest{Text: text})
	endpoint := c.BaseURL + "/api/sales/voice/parse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ClassificationError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClassificationError{Reason: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Detail != "" {
			return nil, &ClassificationError{Reason: er.Detail}
		}
		return nil, &ClassificationError{Reason: fmt.Sprintf("status=%d", resp.StatusCode)}
	}
	return body, nil
}
