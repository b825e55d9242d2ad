// Package wire defines the event stream that crosses the server/client
// boundary: a closed set of typed events and an SSE framer (encode + decode)
// that carries them over a single unidirectional byte stream.
package wire

// EventType identifies the kind of wire event.
type EventType string

const (
	// EventResearchStart signals the sourcing phase has begun.
	EventResearchStart EventType = "research-start"
	// EventResearchDone carries one side's finalized source list.
	EventResearchDone EventType = "research-done"
	// EventStart signals a turn has begun.
	EventStart EventType = "start"
	// EventReasoning carries a cumulative reasoning-channel snapshot.
	EventReasoning EventType = "reasoning"
	// EventContent carries a cumulative answer-channel snapshot.
	EventContent EventType = "content"
	// EventDone signals a turn has finished with its final text.
	EventDone EventType = "done"
	// EventComplete signals the run finished. Terminal.
	EventComplete EventType = "complete"
	// EventError signals the run aborted with a user-facing message. Terminal.
	EventError EventType = "error"
)

var knownTypes = map[EventType]bool{
	EventResearchStart: true,
	EventResearchDone:  true,
	EventStart:         true,
	EventReasoning:     true,
	EventContent:       true,
	EventDone:          true,
	EventComplete:      true,
	EventError:         true,
}

// Known reports whether t is part of the closed event enum. Decoders drop
// events with unknown types rather than failing.
func Known(t EventType) bool {
	return knownTypes[t]
}

// Event is the unit crossing the framer boundary. Content and Reasoning are
// cumulative snapshots of the full accumulated text, never deltas, so a lost
// or reordered event is superseded wholesale by the next one.
type Event struct {
	Type      EventType `json:"type"`
	Speaker   string    `json:"speaker,omitempty"`
	Round     int       `json:"round,omitempty"`
	IsVerdict bool      `json:"isVerdict,omitempty"`
	Content   string    `json:"content,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
