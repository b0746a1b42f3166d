package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/http"
	"github.com/rrnagar/marketplace/pkg/logger"
)

// SMSSender delivers a text message to an Indian mobile number.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

var (
	smsMu  sync.RWMutex
	smsStd SMSSender
)

// DefaultSMS is the gateway sender when SMS_GATEWAY_URL is set, otherwise
// the log sender.
func DefaultSMS() SMSSender {
	smsMu.RLock()
	s := smsStd
	smsMu.RUnlock()
	if s != nil {
		return s
	}
	if url := config.SMSGatewayURL(); url != "" {
		return GatewaySMS{URL: url, Key: config.SMSGatewayKey()}
	}
	return LogSMS{}
}

// UseSMS replaces the sender; nil restores the default.
func UseSMS(s SMSSender) {
	smsMu.Lock()
	smsStd = s
	smsMu.Unlock()
}

// GatewaySMS posts {to, message} as JSON to an HTTP SMS gateway.
type GatewaySMS struct {
	URL string
	Key string
}

func (g GatewaySMS) Send(ctx context.Context, to, message string) error {
	resp, err := http.Post(g.URL).
		WithContext(ctx).
		Bearer(g.Key).
		Body(map[string]string{"to": to, "message": message}).
		Retry(3, 500*time.Millisecond).
		Send()
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	return resp.Throw()
}

// LogSMS logs the recipient only.
type LogSMS struct{}

func (LogSMS) Send(ctx context.Context, to, _ string) error {
	logger.WithCtx(ctx).Info("sms: not sent (log driver)", "to", to)
	return nil
}
