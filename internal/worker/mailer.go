package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// LogMailer writes codes to the log. It is the development default.
type LogMailer struct{}

func (LogMailer) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	slog.InfoContext(ctx, "OTP for delivery", "email", email, "code", code, "expires_at", expiresAt)
	return nil
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends codes as plain text mail.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{email}, buildMessage(m.cfg.From, email, code, expiresAt)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	slog.InfoContext(ctx, "OTP mailed", "email", email)
	return nil
}

func buildMessage(from, to, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Expenzoo login code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Your Expenzoo login code is %s.\r\n", code)
	if !expiresAt.IsZero() {
		fmt.Fprintf(&b, "It expires at %s.\r\n", expiresAt.UTC().Format(time.RFC1123))
	}
	return []byte(b.String())
}
