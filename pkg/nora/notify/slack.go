package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/norahq/nora/pkg/nora/models"
)

// Sender delivers a selection link to a channel
type Sender interface {
	Send(ctx context.Context, channel, deliveryToken string) error
}

// SlackSender posts selection links to Slack incoming webhooks
type SlackSender struct {
	baseURL    string
	serviceURL string
	client     *http.Client
}

// NewSlackSender creates a Slack sender. baseURL prefixes the selection
// path; serviceURL is joined with the channel to form the webhook URL.
func NewSlackSender(baseURL, serviceURL string, client *http.Client) *SlackSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SlackSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceURL: serviceURL,
		client:     client,
	}
}

// Message returns the text sent for a delivery token
func (s *SlackSender) Message(deliveryToken string) string {
	link := s.baseURL + models.SelectionPath(deliveryToken)
	return fmt.Sprintf("Hola\n El menu lo puedes encontar \n <%s|Aqui>\nQue tengas un bello dia", link)
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

// Send posts the message as a single mrkdwn section block
func (s *SlackSender) Send(ctx context.Context, channel, deliveryToken string) error {
	payload := slackPayload{Blocks: []slackBlock{{
		Type: "section",
		Text: slackText{Type: "mrkdwn", Text: s.Message(deliveryToken)},
	}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serviceURL+channel, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Nora/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
