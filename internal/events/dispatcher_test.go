package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

func TestPublishFansOutIndependently(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewAsyncDispatcher(zap.New(core))

	var delivered atomic.Int32
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error { return errors.New("smtp down") })
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error { panic("broken broadcaster") })
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		delivered.Add(1)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Error("handler for another event type must not run")
		return nil
	})

	ticket := &domain.Ticket{ID: "t-1", CompanyID: "acme"}
	if err := d.Publish(context.Background(), Event{Type: EventTicketAssigned, Ticket: ticket}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	d.Wait()

	if delivered.Load() != 1 {
		t.Fatalf("healthy handler must still run, got %d", delivered.Load())
	}
	if logs.FilterMessage("event handler failed").Len() != 2 {
		t.Fatalf("expected error and panic logged, got %v", logs.All())
	}
	if logs.All()[0].ContextMap()["ticket_id"] != "t-1" {
		t.Fatalf("log must carry the ticket id: %v", logs.All()[0].ContextMap())
	}
}

func TestPublishDoesNotWaitForHandlers(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	release := make(chan struct{})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = d.Publish(context.Background(), Event{Type: EventTicketCreated})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow handler")
	}
	close(release)
	d.Wait()
}

func TestHandlersOutliveCallerCancellation(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	var ctxErr atomic.Value
	d.Subscribe(EventTicketUpdated, func(ctx context.Context, _ Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Publish(ctx, Event{Type: EventTicketUpdated})
	d.Wait()
	if ok, _ := ctxErr.Load().(bool); !ok {
		t.Fatal("handler context must not inherit caller cancellation")
	}
}
