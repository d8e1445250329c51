package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
	block   chan struct{}
}

func (s *memorySink) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var actor = domain.Actor{UserID: "adm-1", Role: domain.RoleAdmin, CompanyID: "acme", IPAddress: "10.0.0.7", UserAgent: "curl/8"}

func TestRecordAppendsEntryWithContext(t *testing.T) {
	sink := &memorySink{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewRecorder(sink, zap.NewNop(), clock.Fake(at))

	target := "tech-1"
	meta := map[string]any{"ticket_id": "t-1"}
	rec.Record(context.Background(), Record{
		Action:       domain.AuditTicketAssigned,
		Actor:        actor,
		TargetUserID: &target,
		CompanyID:    "acme",
		Metadata:     meta,
	})
	meta["ticket_id"] = "mutated"
	rec.Wait()

	if sink.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", sink.count())
	}
	got := sink.entries[0]
	if got.Action != domain.AuditTicketAssigned || got.ActorID != "adm-1" || *got.TargetUserID != "tech-1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.IPAddress != "10.0.0.7" || got.UserAgent != "curl/8" {
		t.Fatalf("network context not captured: %+v", got)
	}
	if got.Metadata["ticket_id"] != "t-1" {
		t.Fatalf("metadata must be copied at record time, got %v", got.Metadata["ticket_id"])
	}
	if !got.CreatedAt.Equal(at) || got.ID == "" {
		t.Fatalf("unexpected id/timestamp: %q %s", got.ID, got.CreatedAt)
	}
}

func TestRecordFailureIsLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &memorySink{err: errors.New("storage unavailable")}
	rec := NewRecorder(sink, zap.New(core), nil)

	rec.Record(context.Background(), Record{Action: domain.AuditTicketCreated, Actor: actor, CompanyID: "acme"})
	rec.Wait()

	if logs.FilterMessage("audit write failed").Len() != 1 {
		t.Fatalf("expected audit failure to be logged, got %d logs", logs.Len())
	}
}

func TestRecordDoesNotBlockCaller(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	rec := NewRecorder(sink, zap.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		rec.Record(context.Background(), Record{Action: domain.AuditTicketCommented, Actor: actor})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a slow sink")
	}
	close(sink.block)
	rec.Wait()
	if sink.count() != 1 {
		t.Fatalf("expected entry after sink unblocked, got %d", sink.count())
	}
}

func TestRecordSurvivesCancelledRequestContext(t *testing.T) {
	sink := &ctxCheckingSink{}
	rec := NewRecorder(sink, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, Record{Action: domain.AuditTicketResolved, Actor: actor})
	rec.Wait()

	if sink.sawCancelled {
		t.Fatal("audit write must not inherit request cancellation")
	}
}

type ctxCheckingSink struct {
	sawCancelled bool
}

func (s *ctxCheckingSink) Append(ctx context.Context, _ *domain.AuditLogEntry) error {
	s.sawCancelled = ctx.Err() != nil
	return nil
}
