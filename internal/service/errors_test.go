package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"no rows", pgx.ErrNoRows, "NOT_FOUND", 404},
		{"malformed uuid", &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}, "NOT_FOUND", 404},
		{"wrapped malformed uuid", fmt.Errorf("get ticket: %w", &pgconn.PgError{Code: "22P02"}), "NOT_FOUND", 404},
		{"other postgres error", &pgconn.PgError{Code: "23505"}, "INTERNAL_ERROR", 500},
		{"version conflict", repository.ErrVersionConflict, "CONFLICT", 409},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := apperrors.ToDomainError(translate(tc.err, "ticket"))
			if de.Code != tc.code || de.HTTPStatus != tc.status {
				t.Fatalf("translate(%v) = %s/%d, want %s/%d", tc.err, de.Code, de.HTTPStatus, tc.code, tc.status)
			}
		})
	}
}

// malformedIDTickets behaves like Postgres for ids that are not UUIDs.
type malformedIDTickets struct {
	*fakeTickets
}

func (m malformedIDTickets) GetByID(context.Context, string) (*domain.Ticket, error) {
	return nil, &pgconn.PgError{Code: "22P02"}
}

func TestMalformedTicketIDIsNotFound(t *testing.T) {
	h := newHarness(defaultUsers())
	_, err := loadTicketInScope(context.Background(), malformedIDTickets{h.tickets}, actorOf(employee), "abc")
	assertCode(t, err, "NOT_FOUND")
}
