package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-dispatch/internal/api/dto"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/observability"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// AuditReader lists audit entries within the caller's scope.
type AuditReader interface {
	ListAuditLog(ctx context.Context, actor domain.Actor, filter repository.AuditFilter) ([]domain.AuditLogEntry, error)
}

// Dashboard computes SLA aggregates.
type Dashboard interface {
	SLADashboard(ctx context.Context, actor domain.Actor) (*service.SLADashboard, error)
}

// SettingsAdmin reads and reloads feature toggles.
type SettingsAdmin interface {
	Current() settings.Snapshot
	Invalidate(ctx context.Context, actor domain.Actor) (settings.Snapshot, error)
}

// AdminHandler serves the audit log, the SLA dashboard, settings and metrics.
type AdminHandler struct {
	audit     AuditReader
	dashboard Dashboard
	settings  SettingsAdmin
	metrics   *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(audit AuditReader, dashboard Dashboard, settings SettingsAdmin, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{audit: audit, dashboard: dashboard, settings: settings, metrics: metrics}
}

// AuditLog GET /audit-log.
func (h *AdminHandler) AuditLog(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter := repository.AuditFilter{
		CompanyID: optional(c.Query("company_id")),
		ActorID:   optional(c.Query("actor_id")),
		Actions:   csvOf[domain.AuditAction](strings.ToUpper(c.Query("action"))),
		From:      parseTime(c.Query("from")),
		To:        parseTime(c.Query("to")),
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	if pageSize > 200 {
		pageSize = 200
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	entries, err := h.audit.ListAuditLog(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:           e.ID,
			Action:       e.Action,
			ActorID:      e.ActorID,
			TargetUserID: e.TargetUserID,
			CompanyID:    e.CompanyID,
			Metadata:     e.Metadata,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			CreatedAt:    e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SLADashboard GET /dashboard/sla.
func (h *AdminHandler) SLADashboard(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	dash, err := h.dashboard.SLADashboard(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		ByStatus:         dash.Stats.ByStatus,
		Total:            dash.Stats.Total,
		OpenBreached:     dash.Stats.OpenBreached,
		ResolvedBreached: dash.Stats.ResolvedBreached,
		AverageRating:    dash.Stats.AverageRating,
		ComputedAt:       dash.ComputedAt,
	}})
}

// Settings GET /settings.
func (h *AdminHandler) Settings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": settingsResponse(h.settings.Current())})
}

// RefreshSettings POST /settings/refresh.
func (h *AdminHandler) RefreshSettings(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	snap, err := h.settings.Invalidate(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settingsResponse(snap)})
}

// Metrics GET /metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return apperrors.NewNotFound("metrics", nil)
	}
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func settingsResponse(s settings.Snapshot) dto.SettingsResponse {
	return dto.SettingsResponse{
		NotificationsEnabled: s.NotificationsEnabled,
		EmailEnabled:         s.EmailEnabled,
		SMSEnabled:           s.SMSEnabled,
		RealtimeEnabled:      s.RealtimeEnabled,
		AutoAssignOnCreate:   s.AutoAssignOnCreate,
		LoadedAt:             s.LoadedAt,
	}
}
