// Package notify delivers availability reports over a single configured
// channel.
//
// A Channel is handed one formatted report per monitor pass and delivers
// it once. There are no retries: a failed delivery is logged by the
// caller and dropped, and the next scheduled pass produces a fresh
// report anyway.
//
// Channel construction only fails for an unknown method name. A known
// method with incomplete settings (empty webhook URL, missing SMTP
// password) fails at Send time instead, so a half-filled config section
// degrades to a logged delivery error rather than stopping the run.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// Subject is used wherever a channel carries a message title
// (email subject, pushbullet note title).
const Subject = "TDF Title Alert"

// ErrUnknownChannel reports a notifications.method value New cannot build.
var ErrUnknownChannel = errors.New("unknown notification method")

// Channel delivers one plain-text report.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// New builds the channel selected by cfg.Method.
func New(cfg config.NotificationsConfig, log logx.Logger) (Channel, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Method)) {
	case "console":
		return NewConsole(os.Stdout), nil
	case "email":
		return newEmail(cfg.Email, log), nil
	case "telegram":
		return newTelegram(cfg.Telegram, log), nil
	case "discord":
		return newDiscord(cfg.Discord, log), nil
	case "slack":
		return newSlack(cfg.Slack, log), nil
	case "pushbullet":
		return newPushbullet(cfg.Pushbullet, log), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownChannel, cfg.Method)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
