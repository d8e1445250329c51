package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/observability"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	"github.com/spec-kit/helpdesk-dispatch/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

type stubTickets struct {
	err        error
	lastStatus domain.TicketStatus
	lastInput  workflow.CreateInput
	lastFilter service.TicketListFilter
}

func (s *stubTickets) ticket() *domain.Ticket {
	return &domain.Ticket{ID: "t-1", ExternalKey: "TCK-1", CompanyID: "acme", Status: domain.TicketStatusNew, Version: 1}
}

func (s *stubTickets) CreateTicket(_ context.Context, _ domain.Actor, in workflow.CreateInput) (*domain.Ticket, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	t := s.ticket()
	t.Title = in.Title
	return t, nil
}

func (s *stubTickets) GetTicket(context.Context, domain.Actor, string) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

func (s *stubTickets) ListTickets(_ context.Context, _ domain.Actor, f service.TicketListFilter) ([]domain.Ticket, error) {
	s.lastFilter = f
	return []domain.Ticket{*s.ticket()}, s.err
}

func (s *stubTickets) UpdateTicketDetails(context.Context, domain.Actor, string, service.TicketDetailsPatch) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

func (s *stubTickets) TransitionStatus(_ context.Context, _ domain.Actor, _ string, next domain.TicketStatus) (*domain.Ticket, error) {
	s.lastStatus = next
	if s.err != nil {
		return nil, s.err
	}
	t := s.ticket()
	t.Status = next
	return t, nil
}

func (s *stubTickets) ResolveTicket(context.Context, domain.Actor, string) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

func (s *stubTickets) RateTicket(context.Context, domain.Actor, string, int, string) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

func (s *stubTickets) ReviewTicket(context.Context, domain.Actor, string, workflow.ReviewDecision, string) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

func (s *stubTickets) AddComment(_ context.Context, actor domain.Actor, id, text string) (*domain.Comment, error) {
	return &domain.Comment{ID: "c-1", TicketID: id, AuthorID: actor.UserID, Text: text}, s.err
}

func (s *stubTickets) AddWorkLog(_ context.Context, actor domain.Actor, id, note string) (*domain.WorkLogEntry, error) {
	return &domain.WorkLogEntry{ID: "w-1", TicketID: id, TechnicianID: actor.UserID, Note: note}, s.err
}

func (s *stubTickets) AssignTicket(context.Context, domain.Actor, string, service.AssignInput) (*domain.Ticket, error) {
	return s.ticket(), s.err
}

type stubNotifications struct{}

func (stubNotifications) SendBroadcast(_ context.Context, sender domain.Actor, in service.BroadcastInput) (*domain.Notification, error) {
	return &domain.Notification{ID: "n-1", Message: in.Message, SenderID: sender.UserID}, nil
}

func (stubNotifications) ListNotifications(context.Context, domain.Actor) ([]domain.Notification, error) {
	return nil, nil
}

type stubAdmin struct{}

func (stubAdmin) ListAuditLog(context.Context, domain.Actor, repository.AuditFilter) ([]domain.AuditLogEntry, error) {
	return nil, nil
}

func (stubAdmin) SLADashboard(context.Context, domain.Actor) (*service.SLADashboard, error) {
	return &service.SLADashboard{Stats: domain.TicketStats{Total: 3, OpenBreached: 1}, ComputedAt: time.Now()}, nil
}

func (stubAdmin) Current() settings.Snapshot { return settings.Defaults() }

func (stubAdmin) Invalidate(context.Context, domain.Actor) (settings.Snapshot, error) {
	return settings.Defaults(), nil
}

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (*domain.User, string, time.Time, error) {
	return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
}

// newTestApp authenticates every request as user.
func newTestApp(t *testing.T, tickets *stubTickets, user domain.User) *fiber.App {
	t.Helper()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:        handlers.NewHealthHandler("helpdesk", "test", nil),
		Auth:          handlers.NewAuthHandler(stubAuth{}),
		Tickets:       handlers.NewTicketsHandler(tickets, tickets),
		Notifications: handlers.NewNotificationsHandler(stubNotifications{}, nil, nil),
		Admin:         handlers.NewAdminHandler(stubAdmin{}, stubAdmin{}, stubAdmin{}, observability.NewMetrics()),
		AuthMiddleware: func(c *fiber.Ctx) error {
			auth.WithPrincipal(c, &auth.Principal{User: &user, Actor: domain.ActorFromUser(&user, c.IP(), "test")})
			return c.Next()
		},
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

var employee = domain.User{ID: "emp-1", Role: domain.RoleEmployee, CompanyID: "acme", Active: true}

func TestCreateTicketReturnsCreated(t *testing.T) {
	tickets := &stubTickets{}
	app := newTestApp(t, tickets, employee)

	status, body := do(t, app, "POST", "/tickets", map[string]any{
		"title": "Printer jam", "description": "Tray 2", "priority": "High", "category": "Hardware",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if tickets.lastInput.Priority != domain.TicketPriorityHigh || tickets.lastInput.Category != domain.CategoryHardware {
		t.Fatalf("payload not mapped: %+v", tickets.lastInput)
	}
	data, _ := body["data"].(map[string]any)
	if data["title"] != "Printer jam" || data["status"] != "New" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestDomainErrorsRenderWithStatusAndCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NewInvalidTransition("closed", nil), fiber.StatusConflict, "INVALID_TRANSITION"},
		{apperrors.NewConflict("stale", nil), fiber.StatusConflict, "CONFLICT"},
		{apperrors.NewNotFound("ticket", nil), fiber.StatusNotFound, "NOT_FOUND"},
		{apperrors.NewNoEligibleCandidate("empty pool", nil), fiber.StatusConflict, "NO_ELIGIBLE_TECHNICIAN"},
		{context.DeadlineExceeded, fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			app := newTestApp(t, &stubTickets{err: tc.err}, employee)
			status, body := do(t, app, "POST", "/tickets/t-1/resolve", nil)
			if status != tc.status || errorCode(body) != tc.code {
				t.Fatalf("got %d %q, want %d %q", status, errorCode(body), tc.status, tc.code)
			}
		})
	}
}

func TestTransitionParsesStatusSpellings(t *testing.T) {
	tickets := &stubTickets{}
	app := newTestApp(t, tickets, employee)

	status, _ := do(t, app, "POST", "/tickets/t-1/transition", map[string]any{"status": "in_progress"})
	if status != fiber.StatusOK || tickets.lastStatus != domain.TicketStatusInProgress {
		t.Fatalf("status = %d, parsed %q", status, tickets.lastStatus)
	}
	status, body := do(t, app, "POST", "/tickets/t-1/transition", map[string]any{"status": "Archived"})
	if status != fiber.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("got %d %v", status, body)
	}
}

func TestListTicketsParsesFilters(t *testing.T) {
	tickets := &stubTickets{}
	app := newTestApp(t, tickets, employee)

	status, _ := do(t, app, "GET", "/tickets?status=New,Assigned&priority=Critical&page=2&page_size=10&search=vpn", nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	f := tickets.lastFilter
	if len(f.Statuses) != 2 || len(f.Priorities) != 1 || f.Offset != 10 || f.Limit != 10 || f.SearchTerm == nil || *f.SearchTerm != "vpn" {
		t.Fatalf("unexpected filter %+v", f)
	}
}

func TestRoleGuards(t *testing.T) {
	app := newTestApp(t, &stubTickets{}, employee)

	status, body := do(t, app, "POST", "/notifications", map[string]any{"message": "hi", "target": map[string]any{"type": "all"}})
	if status != fiber.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("employee broadcast: %d %v", status, body)
	}
	status, _ = do(t, app, "GET", "/audit-log", nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("employee audit read: %d", status)
	}

	admin := domain.User{ID: "adm-1", Role: domain.RoleAdmin, CompanyID: "acme", Active: true}
	app = newTestApp(t, &stubTickets{}, admin)
	status, _ = do(t, app, "POST", "/notifications", map[string]any{"message": "hi", "target": map[string]any{"type": "company", "value": "acme"}})
	if status != fiber.StatusCreated {
		t.Fatalf("admin broadcast: %d", status)
	}
	status, _ = do(t, app, "POST", "/settings/refresh", nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("admin settings refresh: %d", status)
	}
}

func TestLoginFailureAndUnknownRoute(t *testing.T) {
	app := newTestApp(t, &stubTickets{}, employee)

	status, body := do(t, app, "POST", "/auth/login", map[string]any{"email": "a@b.c", "password": "nope"})
	if status != fiber.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("login: %d %v", status, body)
	}
	status, body = do(t, app, "POST", "/auth/login", map[string]any{"email": ""})
	if status != fiber.StatusBadRequest {
		t.Fatalf("empty login: %d %v", status, body)
	}
	status, body = do(t, app, "GET", "/nowhere", nil)
	if status != fiber.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %v", status, body)
	}
}

func TestStreamWithoutSubscriberIsUnavailable(t *testing.T) {
	app := newTestApp(t, &stubTickets{}, employee)
	status, body := do(t, app, "GET", "/notifications/stream", nil)
	if status != fiber.StatusServiceUnavailable || errorCode(body) != "REALTIME_UNAVAILABLE" {
		t.Fatalf("got %d %v", status, body)
	}
}
