package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Discord embed accent colors per event class.
const (
	colorSettled = 0x2ECC71 // opens, closes, fills, swaps
	colorError   = 0xE74C3C
)

// DiscordSender posts settlement events to a Discord webhook as embeds, with
// an accent color distinguishing settlements from failures.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

// Send posts the event to the webhook. Discord returns 204 No Content on
// success.
func (d *DiscordSender) Send(ctx context.Context, event, title, message string) error {
	embed := discordEmbed{
		Title:       title,
		Description: message,
		Color:       eventColor(event),
	}
	embed.Footer.Text = event

	payload := map[string]any{
		"embeds": []discordEmbed{embed},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func eventColor(event string) int {
	if event == EventError {
		return colorError
	}
	return colorSettled
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
