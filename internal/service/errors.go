package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-dispatch/internal/assignment"
	"github.com/spec-kit/helpdesk-dispatch/internal/broadcast"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// invalidTextRepresentation is the SQLSTATE Postgres returns when an id is
// not a valid UUID literal.
const invalidTextRepresentation = "22P02"

// translate maps package sentinels onto the DomainError taxonomy. resource
// names the entity used in NOT_FOUND messages.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	var de *apperrors.DomainError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound(resource, nil)
	case errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation:
		// A malformed id cannot name an existing row.
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified by another request; reload and retry", nil)
	case errors.Is(err, workflow.ErrTerminal):
		return apperrors.NewInvalidTransition("ticket is closed and approved; no further transitions", nil)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return apperrors.NewInvalidTransition(err.Error(), nil)
	case errors.Is(err, workflow.ErrNotPermitted):
		return apperrors.NewForbidden("not permitted for this ticket")
	case errors.Is(err, workflow.ErrInvalidInput):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, assignment.ErrNoEligibleTechnician):
		return apperrors.NewNoEligibleCandidate("no eligible technician available", nil)
	case errors.Is(err, broadcast.ErrInvalidTarget):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, broadcast.ErrForbiddenSender), errors.Is(err, broadcast.ErrForbiddenTarget):
		return apperrors.NewForbidden(err.Error())
	}
	return apperrors.NewInternalError(err)
}
