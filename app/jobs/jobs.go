// Package jobs defines the queued background jobs and the scheduled
// maintenance tasks.
package jobs

import (
	"context"
	"fmt"

	"github.com/rrnagar/marketplace/pkg/mail"
	"github.com/rrnagar/marketplace/pkg/queue"
)

const (
	MailJob = "mail.send"
	SMSJob  = "sms.send"
)

// Register adds every job type to m.
func Register(m *queue.Manager) {
	m.Register(MailJob, func() queue.Job { return &SendMail{} })
	m.Register(SMSJob, func() queue.Job { return &SendSMS{} })
}

type SendMail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

func (j *SendMail) Handle(ctx context.Context) error {
	if len(j.To) == 0 {
		return fmt.Errorf("jobs: mail %q has no recipients", j.Subject)
	}
	return mail.Default().Send(ctx, mail.Message{To: j.To, Subject: j.Subject, HTML: j.HTML, Text: j.Text})
}

type SendSMS struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (j *SendSMS) Handle(ctx context.Context) error {
	return DefaultSMS().Send(ctx, j.To, j.Message)
}
