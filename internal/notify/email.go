package notify

import (
	"context"
	"fmt"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

type emailChannel struct {
	cfg config.EmailConfig
	log logx.Logger
}

func newEmail(cfg config.EmailConfig, log logx.Logger) *emailChannel {
	return &emailChannel{cfg: cfg, log: log}
}

func (c *emailChannel) Name() string { return "email" }

func (c *emailChannel) Send(ctx context.Context, message string) error {
	if err := c.incomplete(); err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(c.cfg.Sender); err != nil {
		return fmt.Errorf("email sender: %w", err)
	}
	if err := msg.To(c.cfg.Recipient); err != nil {
		return fmt.Errorf("email recipient: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextPlain, message)

	port := c.cfg.SMTPPort
	if port <= 0 {
		port = 587
	}
	client, err := mail.NewClient(c.cfg.SMTPServer,
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.cfg.Sender),
		mail.WithPassword(c.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("email client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email send: %w", err)
	}

	c.log.Info("notification sent", logx.String("channel", "email"), logx.String("recipient", c.cfg.Recipient))
	return nil
}

func (c *emailChannel) incomplete() error {
	var missing []string
	if strings.TrimSpace(c.cfg.SMTPServer) == "" {
		missing = append(missing, "smtp_server")
	}
	if strings.TrimSpace(c.cfg.Sender) == "" {
		missing = append(missing, "sender")
	}
	if strings.TrimSpace(c.cfg.Password) == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(c.cfg.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete email configuration: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
