package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/pkg/mail"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	o.sent = append(o.sent, m)
	o.mu.Unlock()
	return nil
}

type kycApproved struct {
	hook string
}

func (n kycApproved) Via() []string { return []string{"mail", "webhook", "database"} }

func (n kycApproved) ToMail() MailData {
	return MailData{Subject: "KYC approved", Text: "You can now list products."}
}

func (n kycApproved) ToWebhook() WebhookData {
	return WebhookData{URL: n.hook, Payload: map[string]any{"event": "supplier.approved"}}
}

func TestSendFansOutAndJoinsErrors(t *testing.T) {
	box := &outbox{}
	mail.Use(box)
	t.Cleanup(func() { mail.Use(nil) })

	var hookBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&hookBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher()
	d.Register("database", ChannelFunc(func(context.Context, Route, Notification) error {
		return errors.New("feed table missing")
	}))

	err := d.Send(context.Background(), Route{Email: "shop@rrnagar.in"}, kycApproved{hook: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed table missing")

	require.Len(t, box.sent, 1)
	assert.Equal(t, []string{"shop@rrnagar.in"}, box.sent[0].To)
	assert.Equal(t, "supplier.approved", hookBody["event"])
}

func TestUnknownChannel(t *testing.T) {
	err := Send(context.Background(), Route{}, viaOnly{"pigeon"})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestMailChannelRequiresMailable(t *testing.T) {
	err := Send(context.Background(), Route{Email: "a@b.in"}, viaOnly{"mail"})
	assert.ErrorContains(t, err, "does not implement Mailable")
}

type viaOnly []string

func (v viaOnly) Via() []string { return v }
