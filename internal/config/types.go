package config

type Config struct {
	Credentials CredentialsConfig `json:"tdf_credentials"`
	Titles      []string          `json:"titles"`

	// FilterDate switches the monitor into fixed-date mode (MM/DD/YYYY).
	// The value is passed through to the offerings date filter and alert
	// payloads verbatim; no format normalization is applied.
	FilterDate string `json:"filter_date,omitempty"`

	Notifications NotificationsConfig `json:"notifications"`
	Ledger        LedgerConfig        `json:"ledger,omitempty"`
	Scrape        ScrapeConfig        `json:"scrape,omitempty"`
	Schedule      ScheduleConfig      `json:"schedule,omitempty"`
	Logging       LoggingConfig       `json:"logging,omitempty"`
}

type CredentialsConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NotificationsConfig selects exactly one delivery channel via Method.
// Settings for the other channels may stay in the file; only the selected
// block is consulted at send time.
type NotificationsConfig struct {
	Method     string           `json:"method"`
	Email      EmailConfig      `json:"email,omitempty"`
	Telegram   TelegramConfig   `json:"telegram,omitempty"`
	Discord    DiscordConfig    `json:"discord,omitempty"`
	Slack      SlackConfig      `json:"slack,omitempty"`
	Pushbullet PushbulletConfig `json:"pushbullet,omitempty"`
}

type EmailConfig struct {
	SMTPServer string `json:"smtp_server"`
	SMTPPort   int    `json:"smtp_port,omitempty"` // default: 587
	Sender     string `json:"sender"`
	Password   string `json:"password,omitempty"` // env EMAIL_PASSWORD wins
	Recipient  string `json:"recipient"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"` // env TELEGRAM_BOT_TOKEN wins
	ChatID   int64  `json:"chat_id"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"` // env DISCORD_WEBHOOK wins
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"` // env SLACK_WEBHOOK wins
}

type PushbulletConfig struct {
	APIKey string `json:"api_key,omitempty"` // env PUSHBULLET_API_KEY wins
}

// LedgerConfig controls the availability ledger's persistence.
//
// Example:
//
//	"ledger": { "driver": "file", "path": "state.json" }
type LedgerConfig struct {
	Driver      string `json:"driver,omitempty"`       // "file" (default) or "sqlite"
	Path        string `json:"path,omitempty"`         // default: "state.json"
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ScrapeConfig tunes the TDF site client.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ScrapeConfig struct {
	LoginURL     string `json:"login_url,omitempty"`
	OfferingsURL string `json:"offerings_url,omitempty"`

	// Timeout bounds each HTTP call (login, search, date fetch).
	Timeout string `json:"timeout,omitempty"` // default: "30s"

	// SearchDelay paces consecutive title searches.
	SearchDelay string `json:"search_delay,omitempty"` // default: "1s"
}

// ScheduleConfig controls watch (daemon) mode.
//
// Spec accepts 5-field cron expressions and the @every/@hourly descriptors.
type ScheduleConfig struct {
	Spec     string `json:"spec,omitempty"`     // default: "@every 30m"
	Timezone string `json:"timezone,omitempty"` // default: system local

	// RunOnStart triggers an immediate pass when the daemon comes up,
	// before the first scheduled tick.
	RunOnStart bool `json:"run_on_start,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
