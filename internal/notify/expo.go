// Package notify delivers push notifications to offline receivers, either through
// the Kafka notifications topic or directly to the Expo push service.
package notify

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

	"dm-go/internal/imtypes"
	"dm-go/internal/services"
)

// ErrInvalidPushToken is returned for tokens that are not Expo push tokens.
var ErrInvalidPushToken = errors.New("not an Expo push token")

// ExpoClient sends notifications to the Expo push API.
type ExpoClient struct {
	url        string
	httpClient *http.Client
}

var _ services.PushSender = (*ExpoClient)(nil)

// NewExpoClient creates a client for the given push endpoint.
func NewExpoClient(url string, timeout time.Duration) *ExpoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExpoClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// IsExpoPushToken reports whether token looks like ExponentPushToken[...] or ExpoPushToken[...].
func IsExpoPushToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

// Send posts one notification and checks the returned ticket.
func (c *ExpoClient) Send(ctx context.Context, n imtypes.PushNotification) error {
	if !IsExpoPushToken(n.Token) {
		return fmt.Errorf("%w: %q", ErrInvalidPushToken, n.Token)
	}

	body, err := json.Marshal([]expoMessage{{
		To:    n.Token,
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
		Sound: "default",
	}})
	if err != nil {
		return fmt.Errorf("marshal expo message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build expo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to expo: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read expo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed expoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode expo response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("expo request error %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}
	for _, ticket := range parsed.Data {
		if ticket.Status == "error" {
			return fmt.Errorf("expo ticket error %s: %s", ticket.Details.Error, ticket.Message)
		}
	}
	return nil
}
