package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultLoginURL     = "https://my.tdf.org/account/login"
	DefaultOfferingsURL = "https://nycgw47.tdf.org/TDFCustomOfferings/Current"
	DefaultLedgerPath   = "state.json"
	DefaultScheduleSpec = "@every 30m"
)

// Methods lists the accepted notifications.method values.
var Methods = []string{"email", "telegram", "discord", "slack", "pushbullet", "console"}

// Finalize overlays environment variables, fills defaults and validates.
// It is the single entry point between a freshly parsed Config and the rest
// of the program; the watch-mode validator hook runs it on reload candidates
// so a bad edit never replaces a good running config.
func Finalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg.Validate()
}

// ApplyEnv overlays environment variables onto file values.
// A set, non-empty variable wins over the file.
func (c *Config) ApplyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	overlay(&c.Credentials.Email, "TDF_EMAIL")
	overlay(&c.Credentials.Password, "TDF_PASSWORD")
	overlay(&c.Notifications.Email.Password, "EMAIL_PASSWORD")
	overlay(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overlay(&c.Notifications.Discord.WebhookURL, "DISCORD_WEBHOOK")
	overlay(&c.Notifications.Slack.WebhookURL, "SLACK_WEBHOOK")
	overlay(&c.Notifications.Pushbullet.APIKey, "PUSHBULLET_API_KEY")
}

// ApplyDefaults fills omitted fields and normalizes the notification method.
func (c *Config) ApplyDefaults() {
	c.Notifications.Method = strings.ToLower(strings.TrimSpace(c.Notifications.Method))

	if strings.TrimSpace(c.Ledger.Driver) == "" {
		c.Ledger.Driver = "file"
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = DefaultLedgerPath
	}
	if strings.TrimSpace(c.Scrape.LoginURL) == "" {
		c.Scrape.LoginURL = DefaultLoginURL
	}
	if strings.TrimSpace(c.Scrape.OfferingsURL) == "" {
		c.Scrape.OfferingsURL = DefaultOfferingsURL
	}
	if strings.TrimSpace(c.Scrape.Timeout) == "" {
		c.Scrape.Timeout = "30s"
	}
	if strings.TrimSpace(c.Scrape.SearchDelay) == "" {
		c.Scrape.SearchDelay = "1s"
	}
	if strings.TrimSpace(c.Schedule.Spec) == "" {
		c.Schedule.Spec = DefaultScheduleSpec
	}
	if c.Notifications.Email.SMTPPort == 0 {
		c.Notifications.Email.SMTPPort = 587
	}
}

// Validate rejects configs the monitor cannot run with. Everything caught
// here is fatal at startup, before any network or ledger activity.
//
// Per-channel completeness (a telegram method without a token, say) is
// deliberately NOT checked here: those settings may arrive via environment
// on the machine that sends, and a gap surfaces as a logged delivery
// failure rather than a refused start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Credentials.Email) == "" || strings.TrimSpace(c.Credentials.Password) == "" {
		return fmt.Errorf("tdf_credentials: email and password are required (config file or TDF_EMAIL/TDF_PASSWORD)")
	}

	if len(c.Titles) == 0 {
		return fmt.Errorf("titles: must be a non-empty list")
	}
	for i, t := range c.Titles {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("titles[%d]: blank title", i)
		}
	}

	m := c.Notifications.Method
	if m == "" {
		return fmt.Errorf("notifications.method: required (one of %s)", strings.Join(Methods, ", "))
	}
	if !knownMethod(m) {
		return fmt.Errorf("notifications.method: unknown method %q (one of %s)", m, strings.Join(Methods, ", "))
	}

	switch c.Ledger.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("ledger.driver: unknown driver %q (file or sqlite)", c.Ledger.Driver)
	}
	if _, err := ParseDurationField("ledger.busy_timeout", c.Ledger.BusyTimeout); err != nil {
		return err
	}

	if _, err := ParseDurationField("scrape.timeout", c.Scrape.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scrape.search_delay", c.Scrape.SearchDelay); err != nil {
		return err
	}

	return nil
}

func knownMethod(m string) bool {
	for _, k := range Methods {
		if m == k {
			return true
		}
	}
	return false
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
