package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender posts notifications to a Discord channel webhook.
type DiscordSender struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscordSender creates a DiscordSender from a full webhook URL of the
// form https://discord.com/api/webhooks/<id>/<token>. Executing a webhook
// needs no bot token, so the underlying session is unauthenticated.
func NewDiscordSender(webhookURL string) (*DiscordSender, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordSender{
		session: s,
		id:      id,
		token:   token,
	}, nil
}

func (d *DiscordSender) Name() string { return "discord" }

// Send delivers the message as a single webhook execution with the title
// rendered bold above the body.
func (d *DiscordSender) Send(ctx context.Context, title, body string) error {
	_, err := d.session.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{
		Content: "**" + title + "**\n" + body,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook execute: %w", err)
	}
	return nil
}

// parseWebhookURL extracts the webhook id and token from the URL path.
func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook URL: %w", err)
	}

	// Expected path: api/webhooks/<id>/<token>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, p := range parts {
		if p == "webhooks" {
			idx = i
			break
		}
	}
	if idx == -1 || len(parts) < idx+3 || parts[idx+1] == "" || parts[idx+2] == "" {
		return "", "", fmt.Errorf("discord webhook URL %q: missing id/token", raw)
	}
	return parts[idx+1], parts[idx+2], nil
}
