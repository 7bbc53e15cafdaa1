package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/mail"
	"github.com/vinylverse/storefront/internal/model"
)

const maxContactMessage = 5000

// ContactService forwards contact form messages to the support inbox.
type ContactService struct {
	sender mail.Sender
	inbox  string
	policy *bluemonday.Policy
	log    *zap.Logger
}

// NewContactService wires a ContactService delivering to inbox.
func NewContactService(sender mail.Sender, inbox string, log *zap.Logger) *ContactService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactService{sender: sender, inbox: inbox, policy: bluemonday.UGCPolicy(), log: log}
}

// Send sanitizes message and mails it with the caller as reply-to.
func (s *ContactService) Send(ctx context.Context, id model.Identity, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(message) > maxContactMessage {
		return fmt.Errorf("%w: message is too long", ErrInvalidInput)
	}
	clean := strings.ReplaceAll(s.policy.Sanitize(message), "\n", "<br>")
	msg, err := mail.ContactMessage(s.inbox, id.Email, id.UserID, clean)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("contact message not delivered", zap.Uint64("user_id", id.UserID), zap.Error(err))
		return fmt.Errorf("send contact message: %w", err)
	}
	return nil
}
