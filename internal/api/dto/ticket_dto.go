package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest patches ticket metadata. Omitted fields are untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Category    *domain.TicketCategory `json:"category"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// AssignTicketRequest selects a technician or asks for automatic dispatch.
type AssignTicketRequest struct {
	TechnicianID string `json:"technician_id"`
	AutoAssign   bool   `json:"auto_assign"`
}

// TransitionRequest moves a ticket to a new status.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// ReviewTicketRequest carries an approve or reject decision.
type ReviewTicketRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text string `json:"text"`
}

// WorkLogRequest payload.
type WorkLogRequest struct {
	Note string `json:"note"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ExternalKey  string                `json:"external_key"`
	CompanyID    string                `json:"company_id"`
	RequesterID  string                `json:"requester_id"`
	TechnicianID *string               `json:"technician_id"`
	Title        string                `json:"title"`
	Category     domain.TicketCategory `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	ReviewStatus domain.ReviewStatus   `json:"review_status"`
	SLADueAt     time.Time             `json:"sla_due_at"`
	SLABreached  bool                  `json:"sla_breached"`
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string            `json:"description"`
	Rating      *int              `json:"rating"`
	Feedback    *string           `json:"feedback"`
	ReviewNotes *string           `json:"review_notes"`
	ResolvedAt  *time.Time        `json:"resolved_at"`
	ClosedAt    *time.Time        `json:"closed_at"`
	Comments    []CommentResponse `json:"comments"`
	WorkLog     []WorkLogResponse `json:"work_log"`
}

// CommentResponse represents one discussion entry.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkLogResponse represents one technician note.
type WorkLogResponse struct {
	ID           string    `json:"id"`
	TechnicianID string    `json:"technician_id"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

// DashboardResponse holds SLA aggregates.
type DashboardResponse struct {
	ByStatus         map[domain.TicketStatus]int `json:"by_status"`
	Total            int                         `json:"total"`
	OpenBreached     int                         `json:"open_breached"`
	ResolvedBreached int                         `json:"resolved_breached"`
	AverageRating    *float64                    `json:"average_rating"`
	ComputedAt       time.Time                   `json:"computed_at"`
}
