// Package email delivers plain-text mail over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"thriftly_backend/config"
)

// Sender delivers a fully formatted message, headers included.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSender returns an SMTP sender, or a LoggingSender when no SMTP host is
// configured.
func NewSender(cfg *config.Config) Sender {
	if cfg.SMTPHost == "" {
		slog.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{}
	}

	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		from: envelopeAddress(cfg.SMTPFrom),
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	slog.Info("email sent", "to", to, "subject", subject)
	return nil
}

// LoggingSender writes messages to the log instead of sending them.
type LoggingSender struct{}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	slog.Info("email (logged, not sent)", "to", to, "subject", subject, "message", string(rawMessage))
	return nil
}

// envelopeAddress pulls the bare address out of "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}

// BuildMessage formats a plain-text message. Non-ASCII subjects are
// Q-encoded.
func BuildMessage(from, to, subject, body string, date time.Time) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}
