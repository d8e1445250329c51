package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/broadcast"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
	"github.com/spec-kit/helpdesk-dispatch/internal/notify"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

const (
	maxBroadcastLength    = 1000
	defaultRetention      = 7 * 24 * time.Hour
	notificationListLimit = 50
)

// NotificationService owns administrator broadcasts and the delivery side of
// ticket events: realtime fan-out, email, SMS and Slack pages.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	broadcaster   broadcast.Broadcaster
	notifier      notify.Notifier
	pager         notify.Pager
	settings      settings.Reader
	auditor       Auditor
	dispatcher    events.Dispatcher
	clock         clock.Clock
	retention     time.Duration
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Broadcaster      broadcast.Broadcaster
	Notifier         notify.Notifier
	Pager            notify.Pager
	Settings         settings.Reader
	Auditor          Auditor
	Dispatcher       events.Dispatcher
	Clock            clock.Clock
	Retention        time.Duration
	Logger           *zap.Logger
}

// BroadcastInput is an administrator broadcast request.
type BroadcastInput struct {
	Message  string
	Severity domain.Severity
	Target   domain.Target
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	reader := deps.Settings
	if reader == nil {
		reader = settings.Static(settings.Defaults())
	}
	retention := deps.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		broadcaster:   deps.Broadcaster,
		notifier:      deps.Notifier,
		pager:         deps.Pager,
		settings:      reader,
		auditor:       deps.Auditor,
		dispatcher:    deps.Dispatcher,
		clock:         clk,
		retention:     retention,
		logger:        logger,
	}
}

// SendBroadcast authorizes, stores and fans out an administrator broadcast.
func (n *NotificationService) SendBroadcast(ctx context.Context, sender domain.Actor, input BroadcastInput) (*domain.Notification, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}
	if utf8.RuneCountInString(message) > maxBroadcastLength {
		return nil, apperrors.NewValidationError("message is too long", map[string]any{"max_length": maxBroadcastLength})
	}
	severity := input.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}
	if !severity.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown severity %q", severity), nil)
	}

	target, err := broadcast.NormalizeTarget(input.Target)
	if err != nil {
		return nil, translate(err, "notification")
	}
	if !scope.ResolveBroadcastScope(sender).Allowed {
		return nil, translate(broadcast.ErrForbiddenSender, "notification")
	}
	if target.Type == domain.TargetSpecific {
		// The recipient's tenant decides whether a pinned sender may reach it.
		recipient, err := n.users.GetByID(ctx, target.Value)
		if err != nil {
			return nil, translate(err, "recipient")
		}
		target.CompanyID = recipient.CompanyID
	}
	channels, target, err := broadcast.ResolveChannels(target, sender)
	if err != nil {
		return nil, translate(err, "notification")
	}

	now := n.clock.Now()
	notification := &domain.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		Target:    target,
		CompanyID: target.CompanyID,
		SenderID:  sender.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(n.retention),
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return nil, translate(err, "notification")
	}

	if n.auditor != nil {
		names := make([]string, len(channels))
		for i, ch := range channels {
			names[i] = string(ch)
		}
		var targetUser *string
		if target.Type == domain.TargetSpecific {
			targetUser = &target.Value
		}
		n.auditor.Record(ctx, audit.Record{
			Action:       domain.AuditNotificationSent,
			Actor:        sender,
			TargetUserID: targetUser,
			CompanyID:    target.CompanyID,
			Metadata: map[string]any{
				"notification_id": notification.ID,
				"target_type":     string(target.Type),
				"target_value":    target.Value,
				"severity":        string(severity),
				"channels":        names,
			},
		})
	}
	if n.dispatcher != nil {
		if err := n.dispatcher.Publish(ctx, events.Event{
			ID:           uuid.NewString(),
			Type:         events.EventNotificationAdded,
			Action:       domain.AuditNotificationSent,
			Actor:        sender,
			Notification: notification,
			Timestamp:    now,
		}); err != nil {
			n.logger.Warn("event publish failed",
				zap.Error(err),
				zap.String("notification_id", notification.ID),
				zap.String("company_id", notification.CompanyID),
				zap.String("action", string(domain.AuditNotificationSent)))
		}
	}
	return notification, nil
}

// ListNotifications returns unexpired notifications addressed to actor.
func (n *NotificationService) ListNotifications(ctx context.Context, actor domain.Actor) ([]domain.Notification, error) {
	now := n.clock.Now()
	candidates, err := n.notifications.ListActive(ctx, actor, now, notificationListLimit)
	if err != nil {
		return nil, translate(err, "notification")
	}
	result := make([]domain.Notification, 0, len(candidates))
	for i := range candidates {
		if candidates[i].Expired(now) || !broadcast.Addressed(candidates[i].Target, actor) {
			continue
		}
		result = append(result, candidates[i])
	}
	return result, nil
}

// PurgeExpired deletes notifications past their lifetime.
func (n *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := n.notifications.PurgeExpired(ctx, n.clock.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		n.logger.Info("expired notifications purged", zap.Int64("count", removed))
	}
	return removed, nil
}

// RegisterHandlers subscribes the delivery handlers to dispatcher.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.TicketEventTypes {
		dispatcher.Subscribe(eventType, n.handleTicketRealtime)
		dispatcher.Subscribe(eventType, n.handleTicketDelivery)
	}
	dispatcher.Subscribe(events.EventNotificationAdded, n.handleNotificationRealtime)
}

func (n *NotificationService) handleTicketRealtime(ctx context.Context, event events.Event) error {
	if event.Ticket == nil || n.broadcaster == nil || !n.settings.Snapshot().RealtimeEnabled {
		return nil
	}
	name := broadcast.EventTicketUpdated
	if event.Type == events.EventTicketCreated {
		name = broadcast.EventTicketCreated
	}
	channel := broadcast.TicketChannel(event.Ticket.CompanyID)
	if err := n.broadcaster.Emit(ctx, channel, name, broadcast.NewTicketPayload(event.Ticket)); err != nil {
		return fmt.Errorf("realtime emit on %s: %w", channel, err)
	}
	return nil
}

func (n *NotificationService) handleNotificationRealtime(ctx context.Context, event events.Event) error {
	if event.Notification == nil || n.broadcaster == nil || !n.settings.Snapshot().RealtimeEnabled {
		return nil
	}
	channels, _, err := broadcast.ResolveChannels(event.Notification.Target, event.Actor)
	if err != nil {
		return err
	}
	payload := broadcast.NewNotificationPayload(event.Notification)
	var errs []error
	for _, ch := range channels {
		if err := n.broadcaster.Emit(ctx, ch, broadcast.EventNotificationSent, payload); err != nil {
			errs = append(errs, fmt.Errorf("realtime emit on %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// handleTicketDelivery sends person-addressed notifications for a ticket
// event. SMS and Slack pages are reserved for Critical assignments.
func (n *NotificationService) handleTicketDelivery(ctx context.Context, event events.Event) error {
	snap := n.settings.Snapshot()
	if event.Ticket == nil || n.notifier == nil || !snap.NotificationsEnabled {
		return nil
	}
	ticket := event.Ticket
	critical := ticket.Priority == domain.TicketPriorityCritical

	var errs []error
	email := func(userID string, msg notify.Message) {
		if !snap.EmailAllowed() || userID == "" || userID == event.Actor.UserID {
			return
		}
		recipient, err := n.users.GetByID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load recipient %s: %w", userID, err))
			return
		}
		if err := n.notifier.SendEmail(ctx, recipient, msg); err != nil {
			errs = append(errs, fmt.Errorf("email %s: %w", userID, err))
		}
	}

	switch event.Type {
	case events.EventTicketCreated:
		email(ticket.RequesterID, notify.Message{
			Subject: fmt.Sprintf("[%s] Ticket received: %s", ticket.ExternalKey, ticket.Title),
			Body:    fmt.Sprintf("Priority %s, due by %s.", ticket.Priority, ticket.SLADueAt.Format(time.RFC1123)),
		})

	case events.EventTicketAssigned:
		if !ticket.HasTechnician() {
			break
		}
		msg := notify.Message{
			Subject:  fmt.Sprintf("[%s] Assigned to you: %s", ticket.ExternalKey, ticket.Title),
			Body:     fmt.Sprintf("Priority %s, due by %s.", ticket.Priority, ticket.SLADueAt.Format(time.RFC1123)),
			Critical: critical,
		}
		email(*ticket.TechnicianID, msg)
		if critical {
			errs = append(errs, n.sendCriticalAlerts(ctx, snap, *ticket.TechnicianID, msg)...)
		}

	case events.EventTicketStatus:
		if ticket.Status == domain.TicketStatusResolved {
			email(ticket.RequesterID, notify.Message{
				Subject: fmt.Sprintf("[%s] Resolved: %s", ticket.ExternalKey, ticket.Title),
				Body:    "Please rate the resolution so the ticket can be reviewed.",
			})
		}

	case events.EventTicketReviewed:
		if ticket.HasTechnician() {
			email(*ticket.TechnicianID, notify.Message{
				Subject: fmt.Sprintf("[%s] Review %s: %s", ticket.ExternalKey, strings.ToLower(string(ticket.ReviewStatus)), ticket.Title),
				Body:    derefOr(ticket.ReviewNotes, ""),
			})
		}

	case events.EventTicketCommented:
		msg := notify.Message{Subject: fmt.Sprintf("[%s] New comment: %s", ticket.ExternalKey, ticket.Title)}
		email(ticket.RequesterID, msg)
		if ticket.HasTechnician() {
			email(*ticket.TechnicianID, msg)
		}
	}
	return errors.Join(errs...)
}

func (n *NotificationService) sendCriticalAlerts(ctx context.Context, snap settings.Snapshot, technicianID string, msg notify.Message) []error {
	var errs []error
	if snap.SMSAllowed() {
		recipient, err := n.users.GetByID(ctx, technicianID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load recipient %s: %w", technicianID, err))
		} else if err := n.notifier.SendSMS(ctx, recipient, msg); err != nil {
			errs = append(errs, fmt.Errorf("sms %s: %w", technicianID, err))
		}
	}
	if n.pager != nil {
		if err := n.pager.Page(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("page: %w", err))
		}
	}
	return errs
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
