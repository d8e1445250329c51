// Package audit appends immutable records of state-changing actions. Writes
// are fire-and-forget: a failing sink is logged and never reaches the caller.
package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
}

// Record describes one action to audit.
type Record struct {
	Action       domain.AuditAction
	Actor        domain.Actor
	TargetUserID *string
	CompanyID    string
	Metadata     map[string]any
}

// Recorder writes audit entries asynchronously.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
	clock  clock.Clock
	wg     sync.WaitGroup
}

// NewRecorder constructs a Recorder. A nil sink drops entries after logging them.
func NewRecorder(sink Sink, logger *zap.Logger, clk clock.Clock) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{sink: sink, logger: logger, clock: clk}
}

// Record builds an entry for rec and appends it in the background. The entry
// is returned so callers can correlate it; it is never mutated afterwards.
func (r *Recorder) Record(ctx context.Context, rec Record) domain.AuditLogEntry {
	entry := domain.AuditLogEntry{
		ID:           uuid.NewString(),
		Action:       rec.Action,
		ActorID:      rec.Actor.UserID,
		TargetUserID: rec.TargetUserID,
		CompanyID:    rec.CompanyID,
		Metadata:     copyMetadata(rec.Metadata),
		IPAddress:    rec.Actor.IPAddress,
		UserAgent:    rec.Actor.UserAgent,
		CreatedAt:    r.clock.Now(),
	}
	if r.sink == nil {
		r.logger.Warn("audit sink not configured; dropping entry", zap.String("action", string(entry.Action)))
		return entry
	}

	detached := context.WithoutCancel(ctx)
	stored := entry
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("audit sink panicked", zap.Any("panic", p), zap.String("action", string(stored.Action)))
			}
		}()
		if err := r.sink.Append(detached, &stored); err != nil {
			r.logger.Warn("audit write failed",
				zap.Error(err),
				zap.String("action", string(stored.Action)),
				zap.String("actor_id", stored.ActorID),
				zap.String("company_id", stored.CompanyID),
				zap.Any("metadata", stored.Metadata))
		}
	}()
	return entry
}

// Wait blocks until every pending write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
