package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// telegramTextLimit stays under Telegram's 4096-character message cap
// with headroom for entity expansion.
const telegramTextLimit = 4000

// telegramChannel is a send-only bot. No poller is attached; the bot is
// never started, only Send is used.
type telegramChannel struct {
	log    logx.Logger
	token  string
	chatID int64
	apiURL string // overridden in tests
	client *http.Client

	mu  sync.Mutex
	bot *tele.Bot
}

func newTelegram(cfg config.TelegramConfig, log logx.Logger) *telegramChannel {
	return &telegramChannel{
		log:    log,
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		client: newHTTPClient(),
	}
}

func (c *telegramChannel) Name() string { return "telegram" }

// connect builds the bot on first use, so a bad token fails the send
// rather than channel construction.
func (c *telegramChannel) connect() (*tele.Bot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}
	b, err := tele.NewBot(tele.Settings{
		URL:    c.apiURL,
		Token:  c.token,
		Client: c.client,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	c.bot = b
	return b, nil
}

func (c *telegramChannel) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(c.token) == "" || c.chatID == 0 {
		return errors.New("telegram bot token or chat ID not configured")
	}

	bot, err := c.connect()
	if err != nil {
		return err
	}

	chat := &tele.Chat{ID: c.chatID}
	chunks := splitMessage(message, telegramTextLimit)
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := bot.Send(chat, chunk); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}

	c.log.Info("notification sent", logx.String("channel", "telegram"), logx.Int("chunks", len(chunks)))
	return nil
}

// splitMessage splits long reports into chunks under limit runes,
// preferring newline boundaries so title blocks and date lists stay
// intact.
func splitMessage(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Cut at a newline near the end of the window, but never so
		// early that chunks degenerate.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
