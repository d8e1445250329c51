package service

import (
	"context"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	entries repository.AuditRepository
}

// NewAuditService constructs the service.
func NewAuditService(entries repository.AuditRepository) *AuditService {
	return &AuditService{entries: entries}
}

// ListAuditLog returns entries visible to actor. Company administrators only
// see their own tenant regardless of the requested filter.
func (s *AuditService) ListAuditLog(ctx context.Context, actor domain.Actor, filter repository.AuditFilter) ([]domain.AuditLogEntry, error) {
	companyID, ok := scope.AuditScope(actor)
	if !ok {
		return nil, apperrors.NewForbidden("audit log is restricted to administrators")
	}
	if companyID != nil {
		filter.CompanyID = companyID
	}
	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "audit entry")
	}
	return entries, nil
}
