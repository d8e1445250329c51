package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// SlackPager posts critical messages to a Slack incoming webhook.
type SlackPager struct {
	webhookURL string
	post       webhookPoster
}

// NewSlackPager returns nil when webhookURL is empty so callers can treat a
// missing pager as disabled.
func NewSlackPager(webhookURL string) *SlackPager {
	if strings.TrimSpace(webhookURL) == "" {
		return nil
	}
	return &SlackPager{webhookURL: webhookURL, post: slack.PostWebhookContext}
}

// Page posts msg to the webhook.
func (p *SlackPager) Page(ctx context.Context, msg Message) error {
	if p == nil {
		return nil
	}
	text := msg.Subject
	if msg.Body != "" {
		text = fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body)
	}
	if msg.Critical {
		text = ":rotating_light: " + text
	}
	if err := p.post(ctx, p.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
