// Package events provides the in-process event bus used by modules to
// announce sync runs, imports, links, and job executions.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventBus dispatches events to subscribers asynchronously.
type EventBus interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Publish(event Event)
	Subscribe(types []EventType, handler EventHandler) (unsubscribe func())
	RecentEvents() []Event
}

type subscription struct {
	id      string
	types   map[EventType]bool
	handler EventHandler
}

// eventBus implements the EventBus interface
type eventBus struct {
	config EventBusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	recentEvents []Event
}

// NewEventBus creates a new event bus instance
func NewEventBus(config EventBusConfig) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultEventBusConfig().BufferSize
	}
	if config.MaxStoredEvents <= 0 {
		config.MaxStoredEvents = DefaultEventBusConfig().MaxStoredEvents
	}
	return &eventBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		recentEvents:  make([]Event, 0, config.MaxStoredEvents),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the event processor.
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}
	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.processEvents()
	return nil
}

// Stop stops the event bus gracefully.
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish queues an event for dispatch. Events published while the bus is
// stopped, or while the buffer is full, are dropped; the bus is advisory
// and must never block domain code.
func (eb *eventBus) Publish(event Event) {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case eb.eventChannel <- event:
	default:
	}
}

// Subscribe registers a handler for the given event types. An empty type
// list subscribes to everything.
func (eb *eventBus) Subscribe(types []EventType, handler EventHandler) func() {
	sub := &subscription{
		id:      uuid.NewString(),
		types:   make(map[EventType]bool, len(types)),
		handler: handler,
	}
	for _, t := range types {
		sub.types[t] = true
	}

	eb.mu.Lock()
	eb.subscriptions[sub.id] = sub
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		delete(eb.subscriptions, sub.id)
		eb.mu.Unlock()
	}
}

// RecentEvents returns the most recent events, newest last.
func (eb *eventBus) RecentEvents() []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	out := make([]Event, len(eb.recentEvents))
	copy(out, eb.recentEvents)
	return out
}

func (eb *eventBus) processEvents() {
	defer eb.wg.Done()
	for {
		select {
		case <-eb.stopCh:
			return
		case event := <-eb.eventChannel:
			eb.remember(event)
			eb.dispatch(event)
		}
	}
}

func (eb *eventBus) remember(event Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.recentEvents = append(eb.recentEvents, event)
	if len(eb.recentEvents) > eb.config.MaxStoredEvents {
		eb.recentEvents = eb.recentEvents[len(eb.recentEvents)-eb.config.MaxStoredEvents:]
	}
}

func (eb *eventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := make([]*subscription, 0, len(eb.subscriptions))
	for _, s := range eb.subscriptions {
		if len(s.types) == 0 || s.types[event.Type] {
			subs = append(subs, s)
		}
	}
	eb.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}
