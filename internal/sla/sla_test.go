package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func TestComputeDueAtByPriority(t *testing.T) {
	cases := []struct {
		priority domain.TicketPriority
		want     time.Duration
	}{
		{domain.TicketPriorityCritical, time.Hour},
		{domain.TicketPriorityHigh, 4 * time.Hour},
		{domain.TicketPriorityMedium, 12 * time.Hour},
		{domain.TicketPriorityLow, 24 * time.Hour},
		{domain.TicketPriority("Urgent"), 24 * time.Hour},
		{domain.TicketPriority(""), 24 * time.Hour},
	}
	for _, tc := range cases {
		got := ComputeDueAt(t0, tc.priority)
		if !got.Equal(t0.Add(tc.want)) {
			t.Fatalf("priority %q: got %s, want %s", tc.priority, got, t0.Add(tc.want))
		}
	}
}

func TestComputeDueAtIsDeterministic(t *testing.T) {
	a := ComputeDueAt(t0, domain.TicketPriorityHigh)
	b := ComputeDueAt(t0, domain.TicketPriorityHigh)
	if !a.Equal(b) {
		t.Fatalf("expected identical deadlines, got %s and %s", a, b)
	}
}

func TestIsBreachedBoundary(t *testing.T) {
	due := t0.Add(time.Hour)
	if IsBreached(due, due.Add(-time.Nanosecond)) {
		t.Fatal("resolving before the deadline must not breach")
	}
	if !IsBreached(due, due) {
		t.Fatal("resolving exactly at the deadline must breach")
	}
	if !IsBreached(due, t0.Add(90*time.Minute)) {
		t.Fatal("resolving after the deadline must breach")
	}
}

func TestOpenBreachedSkipsResolvedTickets(t *testing.T) {
	now := t0.Add(5 * time.Hour)
	tickets := []domain.Ticket{
		{Status: domain.TicketStatusNew, SLADueAt: t0.Add(time.Hour)},
		{Status: domain.TicketStatusInProgress, SLADueAt: t0.Add(4 * time.Hour)},
		{Status: domain.TicketStatusAssigned, SLADueAt: t0.Add(24 * time.Hour)},
		{Status: domain.TicketStatusResolved, SLADueAt: t0.Add(time.Hour)},
		{Status: domain.TicketStatusClosed, SLADueAt: t0.Add(time.Hour)},
	}
	if got := OpenBreached(tickets, now); got != 2 {
		t.Fatalf("expected 2 open breached tickets, got %d", got)
	}
	if tickets[0].SLABreached {
		t.Fatal("dashboard evaluation must not persist breach flags")
	}
}
