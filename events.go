package weave

import (
	"cmp"
	"slices"
)

const (
	BODY_CONTACT_ENTER EventType = iota
	SELF_CONTACT_ENTER
	BODY_CONTACT_STAY
	SELF_CONTACT_STAY
	BODY_CONTACT_EXIT
	SELF_CONTACT_EXIT
	STITCH_CLOSED
)

// contactKey identifies a contact. Body contacts use Triangle = -1.
type contactKey struct {
	vertex   int
	triangle int
}

func compareContactKeys(a, b contactKey) int {
	if c := cmp.Compare(a.vertex, b.vertex); c != 0 {
		return c
	}
	return cmp.Compare(a.triangle, b.triangle)
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Body contact events, between a cloth vertex and the body level set
type BodyContactEnterEvent struct {
	Vertex int
}

func (e BodyContactEnterEvent) Type() EventType { return BODY_CONTACT_ENTER }

type BodyContactStayEvent struct {
	Vertex int
}

func (e BodyContactStayEvent) Type() EventType { return BODY_CONTACT_STAY }

type BodyContactExitEvent struct {
	Vertex int
}

func (e BodyContactExitEvent) Type() EventType { return BODY_CONTACT_EXIT }

// Self contact events, between a cloth vertex and a cloth triangle
type SelfContactEnterEvent struct {
	Vertex   int
	Triangle int
}

func (e SelfContactEnterEvent) Type() EventType { return SELF_CONTACT_ENTER }

type SelfContactStayEvent struct {
	Vertex   int
	Triangle int
}

func (e SelfContactStayEvent) Type() EventType { return SELF_CONTACT_STAY }

type SelfContactExitEvent struct {
	Vertex   int
	Triangle int
}

func (e SelfContactExitEvent) Type() EventType { return SELF_CONTACT_EXIT }

// StitchClosedEvent is sent when a stitch reached zero rest length and its
// vertices are about to be merged.
type StitchClosedEvent struct {
	Stitch int
	A, B   int
}

func (e StitchClosedEvent) Type() EventType { return STITCH_CLOSED }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Contact tracking for Enter/Stay/Exit detection
	previousContacts map[contactKey]bool
	currentContacts  map[contactKey]bool
}

func NewEvents() Events {
	return Events{
		listeners:        make(map[EventType][]EventListener),
		buffer:           make([]Event, 0, 256),
		previousContacts: make(map[contactKey]bool),
		currentContacts:  make(map[contactKey]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) enabled() bool {
	return len(e.listeners) > 0
}

// recordBodyContacts marks the vertices touching the body during this step.
func (e *Events) recordBodyContacts(inContact []bool) {
	if !e.enabled() {
		return
	}
	for v, in := range inContact {
		if in {
			e.currentContacts[contactKey{vertex: v, triangle: -1}] = true
		}
	}
}

// recordSelfContacts marks the vertex/triangle pairs touching during this step.
func (e *Events) recordSelfContacts(contacts []selfContact) {
	if !e.enabled() {
		return
	}
	for _, c := range contacts {
		e.currentContacts[contactKey{vertex: c.Vertex, triangle: c.Triangle}] = true
	}
}

func (e *Events) emitStitchClosed(stitch, a, b int) {
	e.buffer = append(e.buffer, StitchClosedEvent{Stitch: stitch, A: a, B: b})
}

// processContactEvents compares current and previous contacts to detect
// Enter/Stay/Exit. Events are emitted in (vertex, triangle) order.
func (e *Events) processContactEvents() {
	current := sortedKeys(e.currentContacts)
	for _, c := range current {
		stay := e.previousContacts[c]
		switch {
		case c.triangle < 0 && stay:
			e.buffer = append(e.buffer, BodyContactStayEvent{Vertex: c.vertex})
		case c.triangle < 0:
			e.buffer = append(e.buffer, BodyContactEnterEvent{Vertex: c.vertex})
		case stay:
			e.buffer = append(e.buffer, SelfContactStayEvent{Vertex: c.vertex, Triangle: c.triangle})
		default:
			e.buffer = append(e.buffer, SelfContactEnterEvent{Vertex: c.vertex, Triangle: c.triangle})
		}
	}

	for _, c := range sortedKeys(e.previousContacts) {
		if e.currentContacts[c] {
			continue
		}
		if c.triangle < 0 {
			e.buffer = append(e.buffer, BodyContactExitEvent{Vertex: c.vertex})
		} else {
			e.buffer = append(e.buffer, SelfContactExitEvent{Vertex: c.vertex, Triangle: c.triangle})
		}
	}

	// Swap for next step and clear current
	e.previousContacts, e.currentContacts = e.currentContacts, e.previousContacts
	clear(e.currentContacts)
}

func sortedKeys(m map[contactKey]bool) []contactKey {
	keys := make([]contactKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareContactKeys)
	return keys
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processContactEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}

// reset forgets the tracked contacts, so the next step reports only enters.
func (e *Events) reset() {
	clear(e.previousContacts)
	clear(e.currentContacts)
	e.buffer = e.buffer[:0]
}
