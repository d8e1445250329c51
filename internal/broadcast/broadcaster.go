package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// Event names emitted on realtime channels.
const (
	EventTicketCreated    = "ticket:created"
	EventTicketUpdated    = "ticket:updated"
	EventNotificationSent = "notification:new"
)

// Broadcaster fans a payload out to every subscriber of a channel.
type Broadcaster interface {
	Emit(ctx context.Context, channel Channel, event string, payload any) error
}

// Envelope is the wire shape published on a channel.
type Envelope struct {
	Channel   Channel   `json:"channel"`
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// RedisBroadcaster publishes envelopes with Redis PUBLISH so every API
// instance's realtime gateway can relay them.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

// NewRedisBroadcaster builds a broadcaster that prefixes channel names.
func NewRedisBroadcaster(client *redis.Client, prefix string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, prefix: prefix}
}

// Emit publishes payload on channel.
func (b *RedisBroadcaster) Emit(ctx context.Context, channel Channel, event string, payload any) error {
	if b == nil || b.client == nil {
		return errors.New("redis broadcaster not configured")
	}
	body, err := json.Marshal(Envelope{Channel: channel, Event: event, Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+string(channel), body).Err()
}

// Subscribe opens a Redis subscription for channels.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, channels ...Channel) *redis.PubSub {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, b.prefix+string(ch))
	}
	return b.client.Subscribe(ctx, names...)
}

// TicketPayload is the realtime view of a ticket. It omits the collaboration
// log; clients fetch the full ticket when they need it.
type TicketPayload struct {
	ID           string     `json:"id"`
	ExternalKey  string     `json:"external_key"`
	CompanyID    string     `json:"company_id"`
	RequesterID  string     `json:"requester_id"`
	TechnicianID *string    `json:"technician_id,omitempty"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	ReviewStatus string     `json:"review_status"`
	SLADueAt     time.Time  `json:"sla_due_at"`
	SLABreached  bool       `json:"sla_breached"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Version      int        `json:"version"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTicketPayload projects t for realtime delivery.
func NewTicketPayload(t *domain.Ticket) TicketPayload {
	return TicketPayload{
		ID:           t.ID,
		ExternalKey:  t.ExternalKey,
		CompanyID:    t.CompanyID,
		RequesterID:  t.RequesterID,
		TechnicianID: t.TechnicianID,
		Title:        t.Title,
		Category:     string(t.Category),
		Priority:     string(t.Priority),
		Status:       string(t.Status),
		ReviewStatus: string(t.ReviewStatus),
		SLADueAt:     t.SLADueAt,
		SLABreached:  t.SLABreached,
		ResolvedAt:   t.ResolvedAt,
		Version:      t.Version,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NotificationPayload is the realtime view of a broadcast.
type NotificationPayload struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewNotificationPayload projects n for realtime delivery.
func NewNotificationPayload(n *domain.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Message:   n.Message,
		Severity:  string(n.Severity),
		SenderID:  n.SenderID,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}
}
