// Package notify delivers ticket notifications to people outside the API:
// email, SMS and a Slack pager for critical work.
package notify

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// ErrNoAddress is returned when the recipient has no address for the channel.
var ErrNoAddress = errors.New("recipient has no address for this channel")

// Message is a rendered notification.
type Message struct {
	Subject  string
	Body     string
	Critical bool
}

// Notifier sends person-addressed messages.
type Notifier interface {
	SendEmail(ctx context.Context, recipient *domain.User, msg Message) error
	SendSMS(ctx context.Context, recipient *domain.User, msg Message) error
}

// Pager raises a message on an operations channel rather than to a person.
type Pager interface {
	Page(ctx context.Context, msg Message) error
}

// LogNotifier records deliveries in the log instead of calling a provider.
// It is the default until a mail or SMS gateway is configured.
type LogNotifier struct {
	logger    *zap.Logger
	emailFrom string
	smsFrom   string
}

// NewLogNotifier creates a LogNotifier. Empty sender addresses disable the
// matching channel.
func NewLogNotifier(logger *zap.Logger, emailFrom, smsFrom string) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, emailFrom: emailFrom, smsFrom: smsFrom}
}

func (n *LogNotifier) SendEmail(_ context.Context, recipient *domain.User, msg Message) error {
	if strings.TrimSpace(n.emailFrom) == "" {
		return nil
	}
	if recipient == nil || strings.TrimSpace(recipient.Email) == "" {
		return ErrNoAddress
	}
	n.logger.Info("email notification",
		zap.String("from", n.emailFrom),
		zap.String("to", recipient.Email),
		zap.String("subject", msg.Subject),
		zap.Bool("critical", msg.Critical))
	return nil
}

func (n *LogNotifier) SendSMS(_ context.Context, recipient *domain.User, msg Message) error {
	if strings.TrimSpace(n.smsFrom) == "" {
		return nil
	}
	if recipient == nil || strings.TrimSpace(recipient.Phone) == "" {
		return ErrNoAddress
	}
	n.logger.Info("sms notification",
		zap.String("from", n.smsFrom),
		zap.String("to", recipient.Phone),
		zap.String("subject", msg.Subject))
	return nil
}
