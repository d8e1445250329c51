package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// BroadcastRequest is an administrator broadcast.
type BroadcastRequest struct {
	Message  string          `json:"message"`
	Severity domain.Severity `json:"severity"`
	Target   TargetRequest   `json:"target"`
}

// TargetRequest selects the audience. CompanyID optionally scopes role targets.
type TargetRequest struct {
	Type      domain.TargetType `json:"type"`
	Value     string            `json:"value"`
	CompanyID string            `json:"company_id,omitempty"`
}

// NotificationResponse is a stored notification.
type NotificationResponse struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Severity   domain.Severity   `json:"severity"`
	TargetType domain.TargetType `json:"target_type"`
	Target     string            `json:"target"`
	CompanyID  string            `json:"company_id,omitempty"`
	SenderID   string            `json:"sender_id"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// AuditEntryResponse is one audit log row.
type AuditEntryResponse struct {
	ID           string             `json:"id"`
	Action       domain.AuditAction `json:"action"`
	ActorID      string             `json:"actor_id"`
	TargetUserID *string            `json:"target_user_id"`
	CompanyID    string             `json:"company_id"`
	Metadata     map[string]any     `json:"metadata"`
	IPAddress    string             `json:"ip_address"`
	UserAgent    string             `json:"user_agent"`
	CreatedAt    time.Time          `json:"created_at"`
}

// SettingsResponse mirrors the active feature toggles.
type SettingsResponse struct {
	NotificationsEnabled bool      `json:"notifications_enabled"`
	EmailEnabled         bool      `json:"email_enabled"`
	SMSEnabled           bool      `json:"sms_enabled"`
	RealtimeEnabled      bool      `json:"realtime_enabled"`
	AutoAssignOnCreate   bool      `json:"auto_assign_on_create"`
	LoadedAt             time.Time `json:"loaded_at"`
}
