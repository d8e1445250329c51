package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// AsyncDispatcher runs every handler in its own goroutine. Handler errors and
// panics are logged and never reach the publisher.
type AsyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher instance.
func NewAsyncDispatcher(logger *zap.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		logger:    logger,
	}
}

// Publish schedules the handlers for event.Type and returns immediately. The
// handlers see a context detached from the caller's cancellation.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		d.wg.Add(1)
		go d.run(detached, handler, event)
	}
	return nil
}

func (d *AsyncDispatcher) run(ctx context.Context, handler EventHandler, event Event) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logFailure(event, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := handler(ctx, event); err != nil {
		d.logFailure(event, err)
	}
}

func (d *AsyncDispatcher) logFailure(event Event, err error) {
	d.logger.Warn("event handler failed",
		zap.String("event", string(event.Type)),
		zap.String("action", string(event.Action)),
		zap.String("ticket_id", event.TicketID()),
		zap.String("company_id", event.CompanyID()),
		zap.Error(err))
}

// Subscribe registers a handler for the given event type.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Wait blocks until every in-flight handler has returned.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
