package events

import "daochain/core/types"

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload renders any event into its broadcastable form. Events that do not
// provide their own payload are rendered with an empty attribute set.
func Payload(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			return payload
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer collects events until the owning transaction decides to publish or
// drop them.
type Buffer struct {
	events []*types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if payload := Payload(evt); payload != nil {
		b.events = append(b.events, payload)
	}
}

// Events returns the buffered payloads in emission order.
func (b *Buffer) Events() []*types.Event {
	if b == nil {
		return nil
	}
	return append([]*types.Event(nil), b.events...)
}

// Reset drops all buffered events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.events = nil
}

// Append adds already rendered payloads, used when a nested scope commits
// into its parent.
func (b *Buffer) Append(payloads ...*types.Event) {
	if b == nil {
		return
	}
	for _, payload := range payloads {
		if payload != nil {
			b.events = append(b.events, payload)
		}
	}
}
