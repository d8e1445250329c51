package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-dispatch/internal/api/dto"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	"github.com/spec-kit/helpdesk-dispatch/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// TicketActions is the ticket lifecycle surface used by the handler.
type TicketActions interface {
	CreateTicket(ctx context.Context, actor domain.Actor, input workflow.CreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, actor domain.Actor, filter service.TicketListFilter) ([]domain.Ticket, error)
	UpdateTicketDetails(ctx context.Context, actor domain.Actor, ticketID string, patch service.TicketDetailsPatch) (*domain.Ticket, error)
	TransitionStatus(ctx context.Context, actor domain.Actor, ticketID string, next domain.TicketStatus) (*domain.Ticket, error)
	ResolveTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	RateTicket(ctx context.Context, actor domain.Actor, ticketID string, rating int, feedback string) (*domain.Ticket, error)
	ReviewTicket(ctx context.Context, actor domain.Actor, ticketID string, decision workflow.ReviewDecision, notes string) (*domain.Ticket, error)
	AddComment(ctx context.Context, actor domain.Actor, ticketID, text string) (*domain.Comment, error)
	AddWorkLog(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.WorkLogEntry, error)
}

// Assigner dispatches tickets to technicians.
type Assigner interface {
	AssignTicket(ctx context.Context, actor domain.Actor, ticketID string, input service.AssignInput) (*domain.Ticket, error)
}

// TicketsHandler manages ticket endpoints for every role; the service layer
// applies scope and permission rules.
type TicketsHandler struct {
	tickets  TicketActions
	assigner Assigner
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketActions, assigner Assigner) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assigner: assigner}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, workflow.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateTicketDetails(c.UserContext(), actor, c.Params("id"), service.TicketDetailsPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.assigner.AssignTicket(c.UserContext(), actor, c.Params("id"), service.AssignInput{
		TechnicianID: req.TechnicianID,
		Auto:         req.AutoAssign,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// TransitionTicket POST /tickets/:id/transition.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, ok := parseStatus(string(req.Status))
	if !ok {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}
	ticket, err := h.tickets.TransitionStatus(c.UserContext(), actor, c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.ResolveTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// RateTicket POST /tickets/:id/rate.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.RateTicket(c.UserContext(), actor, c.Params("id"), req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ReviewTicket POST /tickets/:id/review.
func (h *TicketsHandler) ReviewTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReviewTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	decision := workflow.ReviewDecision(strings.ToLower(strings.TrimSpace(req.Action)))
	ticket, err := h.tickets.ReviewTicket(c.UserContext(), actor, c.Params("id"), decision, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.tickets.AddComment(c.UserContext(), actor, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// AddWorkLog POST /tickets/:id/worklog.
func (h *TicketsHandler) AddWorkLog(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.WorkLogRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.tickets.AddWorkLog(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": workLogResponse(entry)})
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		Statuses:       csvOf[domain.TicketStatus](c.Query("status")),
		Priorities:     csvOf[domain.TicketPriority](c.Query("priority")),
		Categories:     csvOf[domain.TicketCategory](c.Query("category")),
		ReviewStatuses: csvOf[domain.ReviewStatus](c.Query("review_status")),
		CompanyID:      optional(c.Query("company_id")),
		RequesterID:    optional(c.Query("requester_id")),
		TechnicianID:   optional(c.Query("technician_id")),
		SearchTerm:     optional(c.Query("search")),
		CreatedFrom:    parseTime(c.Query("created_from")),
		CreatedTo:      parseTime(c.Query("created_to")),
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

var knownStatuses = []domain.TicketStatus{
	domain.TicketStatusNew,
	domain.TicketStatusAssigned,
	domain.TicketStatusInProgress,
	domain.TicketStatusResolved,
	domain.TicketStatusClosed,
}

// parseStatus accepts "In Progress", "in_progress" and "in-progress" alike.
func parseStatus(raw string) (domain.TicketStatus, bool) {
	key := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw))
	for _, s := range knownStatuses {
		if strings.EqualFold(key, string(s)) {
			return s, true
		}
	}
	return "", false
}

func csvOf[T ~string](raw string) []T {
	if raw == "" {
		return nil
	}
	var out []T
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, T(part))
		}
	}
	return out
}

func optional(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		ExternalKey:  ticket.ExternalKey,
		CompanyID:    ticket.CompanyID,
		RequesterID:  ticket.RequesterID,
		TechnicianID: ticket.TechnicianID,
		Title:        ticket.Title,
		Category:     ticket.Category,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		ReviewStatus: ticket.ReviewStatus,
		SLADueAt:     ticket.SLADueAt,
		SLABreached:  ticket.SLABreached,
		Version:      ticket.Version,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(ticket.Comments))
	for i := range ticket.Comments {
		comments = append(comments, commentResponse(&ticket.Comments[i]))
	}
	workLog := make([]dto.WorkLogResponse, 0, len(ticket.WorkLog))
	for i := range ticket.WorkLog {
		workLog = append(workLog, workLogResponse(&ticket.WorkLog[i]))
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		Rating:        ticket.Rating,
		Feedback:      ticket.Feedback,
		ReviewNotes:   ticket.ReviewNotes,
		ResolvedAt:    ticket.ResolvedAt,
		ClosedAt:      ticket.ClosedAt,
		Comments:      comments,
		WorkLog:       workLog,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
}

func workLogResponse(entry *domain.WorkLogEntry) dto.WorkLogResponse {
	return dto.WorkLogResponse{
		ID:           entry.ID,
		TechnicianID: entry.TechnicianID,
		Note:         entry.Note,
		CreatedAt:    entry.CreatedAt,
	}
}
