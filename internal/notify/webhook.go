package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// fence wraps the report in a code block so the fixed-width layout
// survives rich-text rendering.
func fence(message string) string {
	return "```\n" + message + "\n```"
}

// webhookChannel posts the report as a single JSON field. Discord and
// Slack incoming webhooks share this shape and differ in the field name,
// whether the report is fenced, and which status codes count as
// delivered.
type webhookChannel struct {
	name   string
	url    string
	field  string
	wrap   bool
	accept func(code int) bool
	client *http.Client
	log    logx.Logger
}

func newDiscord(cfg config.DiscordConfig, log logx.Logger) *webhookChannel {
	return &webhookChannel{
		name:  "discord",
		url:   cfg.WebhookURL,
		field: "content",
		wrap:  true,
		// Discord returns 204 unless ?wait=true is set.
		accept: func(code int) bool { return code == http.StatusOK || code == http.StatusNoContent },
		client: newHTTPClient(),
		log:    log,
	}
}

func newSlack(cfg config.SlackConfig, log logx.Logger) *webhookChannel {
	return &webhookChannel{
		name:   "slack",
		url:    cfg.WebhookURL,
		field:  "text",
		accept: func(code int) bool { return code == http.StatusOK },
		client: newHTTPClient(),
		log:    log,
	}
}

func (c *webhookChannel) Name() string { return c.name }

func (c *webhookChannel) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(c.url) == "" {
		return fmt.Errorf("%s webhook URL not configured", c.name)
	}

	text := message
	if c.wrap {
		text = fence(message)
	}
	payload, err := json.Marshal(map[string]string{c.field: text})
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", c.name, err)
	}
	defer resp.Body.Close()

	if !c.accept(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s webhook returned %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.Info("notification sent", logx.String("channel", c.name))
	return nil
}
