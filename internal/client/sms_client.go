// Package client wraps the outbound SMS provider. The client is a pure
// boundary: one request per call, no retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type SMSClient struct {
	url        string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewSMSClient(url, accountSID, authToken, from string) *SMSClient {
	return &SMSClient{
		url:        url,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
	SID    string `json:"sid"`
}

// Send delivers one message body to one phone number and returns the
// provider's message reference.
func (c *SMSClient) Send(ctx context.Context, phone, body string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		From: c.from,
		To:   phone,
		Body: body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(respBody))
	}
	if sr.SID == "" {
		return "", fmt.Errorf("missing sid in response body=%q", string(respBody))
	}

	return sr.SID, nil
}
