package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/api/dto"
	"github.com/spec-kit/helpdesk-dispatch/internal/broadcast"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// NotificationActions covers administrator broadcasts and inbox reads.
type NotificationActions interface {
	SendBroadcast(ctx context.Context, sender domain.Actor, input service.BroadcastInput) (*domain.Notification, error)
	ListNotifications(ctx context.Context, actor domain.Actor) ([]domain.Notification, error)
}

// Subscriber opens a realtime subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...broadcast.Channel) *redis.PubSub
}

// NotificationsHandler serves broadcasts, the inbox and the realtime stream.
type NotificationsHandler struct {
	notifications NotificationActions
	subscriber    Subscriber
	heartbeat     time.Duration
	logger        *zap.Logger
}

// NewNotificationsHandler constructs handler. A nil subscriber disables the stream.
func NewNotificationsHandler(notifications NotificationActions, subscriber Subscriber, logger *zap.Logger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{
		notifications: notifications,
		subscriber:    subscriber,
		heartbeat:     25 * time.Second,
		logger:        logger,
	}
}

// Send handles POST /notifications.
func (h *NotificationsHandler) Send(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	n, err := h.notifications.SendBroadcast(c.UserContext(), actor, service.BroadcastInput{
		Message:  req.Message,
		Severity: req.Severity,
		Target: domain.Target{
			Type:      req.Target.Type,
			Value:     req.Target.Value,
			CompanyID: req.Target.CompanyID,
		},
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": notificationResponse(n)})
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.ListNotifications(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		resp = append(resp, notificationResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Stream handles GET /notifications/stream as server-sent events. The caller
// receives every envelope published on its global, company, role and user
// channels until it disconnects.
func (h *NotificationsHandler) Stream(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if h.subscriber == nil {
		return apperrors.NewDomainError("REALTIME_UNAVAILABLE", "realtime stream is not configured", http.StatusServiceUnavailable, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.subscriber.Subscribe(ctx, broadcast.SubscriptionChannels(actor)...)
	heartbeat := h.heartbeat
	logger := h.logger.With(zap.String("user_id", actor.UserID), zap.String("company_id", actor.CompanyID))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		messages := sub.Channel()
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var envelope struct {
					Event string `json:"event"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
					logger.Warn("dropping malformed realtime envelope", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", envelope.Event, msg.Payload)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				logger.Debug("realtime client disconnected", zap.Error(err))
				return
			}
		}
	})
	return nil
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:         n.ID,
		Message:    n.Message,
		Severity:   n.Severity,
		TargetType: n.Target.Type,
		Target:     n.Target.Value,
		CompanyID:  n.CompanyID,
		SenderID:   n.SenderID,
		CreatedAt:  n.CreatedAt,
		ExpiresAt:  n.ExpiresAt,
	}
}
