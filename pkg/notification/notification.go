// Package notification fans a notification out over named channels.
//
// "mail" and "webhook" are built in. The application registers "sms" and
// "database" (the admin feed table plus its websocket broadcast) on its own
// Dispatcher.
//
//	type PaymentApproved struct{ Order models.Order; Email string }
//	func (n PaymentApproved) Via() []string { return []string{"mail", "database"} }
//	func (n PaymentApproved) ToMail() notification.MailData { ... }
//	func (n PaymentApproved) ToDatabase() notification.DatabaseData { ... }
//
//	d := notification.NewDispatcher()
//	d.Register("database", feedChannel)
//	d.Send(ctx, notification.Route{Email: c.Email}, PaymentApproved{...})
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/mail"
)

// Route says where the recipient can be reached.
type Route struct {
	Email   string
	Phone   string
	AdminID *uint // nil means every admin for feed notifications
}

type MailData struct {
	Subject string
	HTML    string
	Text    string
}

type SMSData struct {
	Message string
}

type DatabaseData struct {
	Type    string
	Title   string
	Message string
	Data    map[string]any
}

type WebhookData struct {
	URL     string
	Payload any
	Headers map[string]string
}

// Notification lists the channels it should go out on.
type Notification interface {
	Via() []string
}

type Mailable interface{ ToMail() MailData }

type SMSable interface{ ToSMS() SMSData }

type Databaseable interface{ ToDatabase() DatabaseData }

type Webhookable interface{ ToWebhook() WebhookData }

// Channel delivers a notification to a route.
type Channel interface {
	Send(ctx context.Context, to Route, n Notification) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, to Route, n Notification) error

func (f ChannelFunc) Send(ctx context.Context, to Route, n Notification) error { return f(ctx, to, n) }

// Dispatcher routes notifications to its registered channels.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewDispatcher starts with the built-in "mail" and "webhook" channels.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: map[string]Channel{
		"mail":    mailChannel{},
		"webhook": webhookChannel{client: &http.Client{Timeout: 10 * time.Second}},
	}}
}

var std = NewDispatcher()

func Default() *Dispatcher { return std }

func RegisterChannel(name string, c Channel) { std.Register(name, c) }

func Send(ctx context.Context, to Route, n Notification) error { return std.Send(ctx, to, n) }

// Register adds or replaces a channel.
func (d *Dispatcher) Register(name string, c Channel) {
	d.mu.Lock()
	d.channels[name] = c
	d.mu.Unlock()
}

var ErrUnknownChannel = errors.New("notification: unknown channel")

// Send delivers n on every channel it names and returns the joined errors.
// Each failing channel is logged; the others still run.
func (d *Dispatcher) Send(ctx context.Context, to Route, n Notification) error {
	var errs []error
	for _, name := range n.Via() {
		d.mu.RLock()
		c, ok := d.channels[name]
		d.mu.RUnlock()

		var err error
		if !ok {
			err = fmt.Errorf("%w %q", ErrUnknownChannel, name)
		} else {
			err = c.Send(ctx, to, n)
		}
		if err != nil {
			logger.WithCtx(ctx).Warn("notification: channel failed", "channel", name, "type", fmt.Sprintf("%T", n), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type mailChannel struct{}

func (mailChannel) Send(ctx context.Context, to Route, n Notification) error {
	m, ok := n.(Mailable)
	if !ok {
		return fmt.Errorf("notification: %T does not implement Mailable", n)
	}
	if to.Email == "" {
		return errors.New("notification: route has no email")
	}
	d := m.ToMail()
	return mail.Default().Send(ctx, mail.Message{To: []string{to.Email}, Subject: d.Subject, HTML: d.HTML, Text: d.Text})
}

type webhookChannel struct {
	client *http.Client
}

func (c webhookChannel) Send(ctx context.Context, _ Route, n Notification) error {
	wh, ok := n.(Webhookable)
	if !ok {
		return fmt.Errorf("notification: %T does not implement Webhookable", n)
	}
	d := wh.ToWebhook()
	if d.URL == "" {
		return errors.New("notification: webhook URL is empty")
	}

	raw, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("notification: webhook marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notification: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification: webhook send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
