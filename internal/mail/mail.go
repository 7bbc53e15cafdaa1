// Package mail delivers transactional email: order confirmations and
// contact form messages.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const defaultSendGridHost = "https://api.sendgrid.com"

// SendGridSender sends through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey   string
	from     string
	fromName string
	host     string
	log      *zap.Logger
}

// NewSendGridSender returns a sender using apiKey. host may be empty to
// use the public API endpoint.
func NewSendGridSender(apiKey, from, host string, log *zap.Logger) *SendGridSender {
	if host == "" {
		host = defaultSendGridHost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SendGridSender{apiKey: apiKey, from: from, fromName: "Vinylverse", host: host, log: log}
}

// Send sends msg and fails on any non-2xx answer.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return errors.New("sendgrid api key is empty")
	}
	if s.from == "" {
		return errors.New("from address is empty")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("to address is empty")
	}

	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	m := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.fromName, s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		text,
		msg.HTML,
	)
	if msg.ReplyTo != "" {
		m.SetReplyTo(sgmail.NewEmail("", msg.ReplyTo))
	}

	req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	req.Method = "POST"
	req.Body = sgmail.GetRequestBody(m)
	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.log.Warn("sendgrid rejected message",
			zap.Int("status", resp.StatusCode), zap.String("body", resp.Body))
		return fmt.Errorf("sendgrid send failed: status=%d", resp.StatusCode)
	}
	s.log.Info("mail sent", zap.Int("status", resp.StatusCode), zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no mail provider is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("mail not sent (no provider configured)",
		zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
