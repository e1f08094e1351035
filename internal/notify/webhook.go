package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/user/hcaptcha-monitor/internal/domain"
)

const (
	webhookUsername = "hCaptcha Monitor"
	webhookAvatar   = "https://i.imgur.com/lhYfz5H.png"
	embedColor      = 0x00A36C
)

// Webhook posts a Discord-style embed to a URL. It does not retry; the next
// detected version simply produces a new message.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client}
}

type webhookPayload struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
	Embeds    []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Thumbnail   embedImage   `json:"thumbnail"`
	Fields      []embedField `json:"fields"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func buildPayload(r domain.Release) webhookPayload {
	e := embed{
		Title:       "hCaptcha version changed",
		Description: fmt.Sprintf("A new hCaptcha asset bundle was detected for %s.", r.Target.Host),
		Color:       embedColor,
		Thumbnail:   embedImage{URL: webhookAvatar},
		Fields: []embedField{
			{Name: "Website", Value: r.Target.Host, Inline: true},
			{Name: "Sitekey", Value: r.Target.SiteKey, Inline: true},
			{Name: "Version", Value: r.Version, Inline: false},
			{Name: "Resource", Value: fmt.Sprintf("[%s](%s)", r.ResourceURL, r.ResourceURL), Inline: false},
		},
	}
	if !r.DetectedAt.IsZero() {
		e.Timestamp = r.DetectedAt.UTC().Format(time.RFC3339)
	}
	return webhookPayload{Username: webhookUsername, AvatarURL: webhookAvatar, Embeds: []embed{e}}
}

func (w *Webhook) Notify(ctx context.Context, release domain.Release) error {
	body, err := json.Marshal(buildPayload(release))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}
