package core

import "sync"

// EventContext carries the payload of a cook event.
type EventContext struct {
	// Step is the name of the step the event belongs to, empty for
	// pipeline-wide events.
	Step string
	// Progress is the global progress in [0, 1].
	Progress float32
	Message  string
	Err      error
}

type EventCode int

const (
	// A cook began.
	/* Context usage:
	 * Message = session id
	 */
	EventCookStarted EventCode = iota + 1

	// A step is about to perform.
	EventStepStarted

	// A step reported progress.
	/* Context usage:
	 * Message = progress label
	 * Progress = global progress
	 */
	EventStepProgress

	// A step finished, Err is set on failure.
	EventStepFinished

	// The cook ended, Err is set on failure or cancellation.
	EventCookFinished

	// Project content changed while watching.
	/* Context usage:
	 * Message = changed path
	 */
	EventContentChanged

	maxEventCode
)

// Should return true if handled.
type FnOnEvent func(code EventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches cook events to registered listeners in registration
// order. It is safe for concurrent use.
type EventBus struct {
	mu         sync.RWMutex
	registered [maxEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

/**
 * Register to listen for when events are sent with the provided code. A
 * listener can only be registered once per code.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code <= 0 || code >= maxEventCode || onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{listener: listener, callback: onEvent})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns true if the event is successfully unregistered; otherwise false.
 */
func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	if code <= 0 || code >= maxEventCode {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(code EventCode, sender interface{}, data EventContext) bool {
	if b == nil || code <= 0 || code >= maxEventCode {
		return false
	}
	b.mu.RLock()
	events := b.registered[code]
	b.mu.RUnlock()
	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}
