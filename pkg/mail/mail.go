// Package mail sends transactional email (one-time codes, payment and KYC
// updates) over SMTP, or writes it to the log when MAIL_DRIVER=log.
//
//	err := mail.Default().Send(ctx, mail.Message{
//	    To:      []string{customer.Email},
//	    Subject: "Your RR Nagar login code",
//	    HTML:    body,
//	})
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/logger"
)

type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

var (
	mu  sync.RWMutex
	std Mailer
)

// Default returns the configured mailer, building it from MAIL_DRIVER
// ("smtp" or "log") on first use.
func Default() Mailer {
	mu.RLock()
	m := std
	mu.RUnlock()
	if m != nil {
		return m
	}

	mu.Lock()
	defer mu.Unlock()
	if std == nil {
		if config.Get("MAIL_DRIVER", "log") == "smtp" {
			std = NewSMTPMailer(SMTPConfigFromEnv())
		} else {
			std = LogMailer{}
		}
	}
	return std
}

// Use replaces the default mailer (tests install a recorder).
func Use(m Mailer) {
	mu.Lock()
	std = m
	mu.Unlock()
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

func SMTPConfigFromEnv() SMTPConfig {
	return SMTPConfig{
		Host:     config.Get("MAIL_HOST", "localhost"),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "no-reply@rrnagar.in"),
		FromName: config.Get("MAIL_FROM_NAME", "RR Nagar Market"),
	}
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer { return &SMTPMailer{cfg: cfg} }

// Send uses implicit TLS on port 465 and STARTTLS (when offered) otherwise.
func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	if len(m.To) == 0 {
		return errors.New("mail: no recipients")
	}
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	raw := s.build(m)

	d := net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if s.cfg.Port == "465" {
		conn, err = tls.DialWithDialer(&d, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok && s.cfg.Port != "465" {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	for _, rcpt := range m.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("mail: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: close data: %w", err)
	}
	return c.Quit()
}

func (s *SMTPMailer) build(m Message) []byte {
	contentType, body := "text/html", m.HTML
	if body == "" {
		contentType, body = "text/plain", m.Text
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	b.WriteString(body)
	return []byte(b.String())
}

// LogMailer logs instead of sending. The body is omitted so one-time codes
// do not end up in log storage.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, m Message) error {
	logger.WithCtx(ctx).Info("mail: not sent (log driver)", "to", m.To, "subject", m.Subject)
	return nil
}

// Render executes an html/template string with data.
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("mail").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("mail: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render template: %w", err)
	}
	return buf.String(), nil
}
