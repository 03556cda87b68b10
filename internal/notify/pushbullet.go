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

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

const pushbulletPushURL = "https://api.pushbullet.com/v2/pushes"

type pushbulletChannel struct {
	apiKey string
	url    string
	client *http.Client
	log    logx.Logger
}

func newPushbullet(cfg config.PushbulletConfig, log logx.Logger) *pushbulletChannel {
	return &pushbulletChannel{
		apiKey: cfg.APIKey,
		url:    pushbulletPushURL,
		client: newHTTPClient(),
		log:    log,
	}
}

func (c *pushbulletChannel) Name() string { return "pushbullet" }

func (c *pushbulletChannel) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return errors.New("pushbullet API key not configured")
	}

	payload, err := json.Marshal(struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}{
		Type:  "note",
		Title: Subject,
		Body:  message,
	})
	if err != nil {
		return fmt.Errorf("encode pushbullet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build pushbullet request: %w", err)
	}
	req.Header.Set("Access-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushbullet notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("pushbullet returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.Info("notification sent", logx.String("channel", "pushbullet"))
	return nil
}
