package service

import (
	"context"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// SettingsInvalidator evicts and reloads the shared settings snapshot.
type SettingsInvalidator interface {
	settings.Reader
	Invalidate(ctx context.Context) error
}

// SettingsService lets a System Admin force a settings reload.
type SettingsService struct {
	provider SettingsInvalidator
	auditor  Auditor
}

// NewSettingsService constructs the service.
func NewSettingsService(provider SettingsInvalidator, auditor Auditor) *SettingsService {
	return &SettingsService{provider: provider, auditor: auditor}
}

// Current returns the snapshot in effect.
func (s *SettingsService) Current() settings.Snapshot {
	return s.provider.Snapshot()
}

// Invalidate drops the cached snapshot and reloads it from the source.
func (s *SettingsService) Invalidate(ctx context.Context, actor domain.Actor) (settings.Snapshot, error) {
	if actor.Role != domain.RoleSystemAdmin {
		return settings.Snapshot{}, apperrors.NewForbidden("only a System Admin may reload settings")
	}
	if err := s.provider.Invalidate(ctx); err != nil {
		return settings.Snapshot{}, apperrors.NewInternalError(err)
	}
	snap := s.provider.Snapshot()
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Record{
			Action:    domain.AuditSettingsInvalidated,
			Actor:     actor,
			CompanyID: actor.CompanyID,
			Metadata: map[string]any{
				"notifications_enabled": snap.NotificationsEnabled,
				"auto_assign_on_create": snap.AutoAssignOnCreate,
			},
		})
	}
	return snap, nil
}
