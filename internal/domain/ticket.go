package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "New"
	TicketStatusAssigned   TicketStatus = "Assigned"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// ReviewStatus tracks the post-resolution approval cycle.
type ReviewStatus string

const (
	ReviewStatusNone     ReviewStatus = "None"
	ReviewStatusPending  ReviewStatus = "Pending"
	ReviewStatusApproved ReviewStatus = "Approved"
	ReviewStatusRejected ReviewStatus = "Rejected"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory classifies the problem area.
type TicketCategory string

const (
	CategorySoftware TicketCategory = "Software"
	CategoryHardware TicketCategory = "Hardware"
	CategoryNetwork  TicketCategory = "Network"
	CategoryAccount  TicketCategory = "Account"
	CategoryBuilding TicketCategory = "Building"
	CategoryOther    TicketCategory = "Other"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategorySoftware, CategoryHardware, CategoryNetwork, CategoryAccount, CategoryBuilding, CategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	ExternalKey  string
	CompanyID    string
	RequesterID  string
	TechnicianID *string
	Title        string
	Description  string
	Category     TicketCategory
	Priority     TicketPriority
	Status       TicketStatus
	ReviewStatus ReviewStatus
	SLADueAt     time.Time
	SLABreached  bool
	Rating       *int
	Feedback     *string
	ReviewNotes  *string
	ResolvedAt   *time.Time
	ClosedAt     *time.Time
	Comments     []Comment
	WorkLog      []WorkLogEntry
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasTechnician reports whether a technician is attached.
func (t *Ticket) HasTechnician() bool {
	return t.TechnicianID != nil && *t.TechnicianID != ""
}

// IsTerminal reports whether no further transitions are defined.
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusClosed && t.ReviewStatus == ReviewStatusApproved
}

// IsOpen reports whether the ticket still counts against its SLA.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusResolved && t.Status != TicketStatusClosed
}

// Clone returns a deep copy safe to hand to asynchronous side effects.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.TechnicianID = cloneString(t.TechnicianID)
	cp.Feedback = cloneString(t.Feedback)
	cp.ReviewNotes = cloneString(t.ReviewNotes)
	if t.Rating != nil {
		rating := *t.Rating
		cp.Rating = &rating
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		cp.ResolvedAt = &resolved
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		cp.ClosedAt = &closed
	}
	cp.Comments = append([]Comment(nil), t.Comments...)
	cp.WorkLog = append([]WorkLogEntry(nil), t.WorkLog...)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Comment is an append-only discussion entry on a ticket.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// WorkLogEntry records technician effort on a ticket.
type WorkLogEntry struct {
	ID           string
	TicketID     string
	TechnicianID string
	Note         string
	CreatedAt    time.Time
}

// TicketStats aggregates dashboard figures within a scope.
type TicketStats struct {
	ByStatus         map[TicketStatus]int
	Total            int
	OpenBreached     int
	ResolvedBreached int
	AverageRating    *float64
}
