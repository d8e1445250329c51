package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, time.Second)
	if err := s.Register("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.Register("settings-refresh", "@every 5m", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("descriptor must be accepted: %v", err)
	}
}

func TestRunLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewScheduler(zap.New(core), time.Second)

	var sawDeadline bool
	s.run("purge", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return errors.New("db down")
	})
	if !sawDeadline {
		t.Fatal("job context must carry the scheduler timeout")
	}
	entries := logs.FilterMessage("job failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["job"] != "purge" {
		t.Fatalf("expected one failure log for purge, got %v", logs.All())
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, time.Second)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
