package wire

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decoder reassembles events from a possibly-fragmented SSE byte stream. It
// may be fed arbitrary chunk splits, including splits inside a field name,
// inside the blank-line delimiter, or inside a multi-byte rune; leftover
// bytes are carried between calls. Malformed frames are dropped, never
// surfaced as errors.
type Decoder struct {
	buf []byte

	// pending frame state, carried across Feed calls
	eventType string
	data      []string
	sawField  bool
}

// Feed appends chunk to the internal buffer and returns every event whose
// frame is now complete, in stream order.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d == nil {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		line = bytes.TrimSuffix(line, []byte("\r"))

		if len(line) == 0 {
			if ev, ok := d.finishFrame(); ok {
				events = append(events, ev)
			}
			continue
		}
		d.feedLine(string(line))
	}
	// Keep the buffer from aliasing already-consumed backing storage.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events
}

func (d *Decoder) feedLine(line string) {
	// Comment lines start with a colon.
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value, found := strings.Cut(line, ":")
	if !found {
		// A field name with no colon carries an empty value per SSE; no
		// field we recognize is valueless, so drop it.
		return
	}
	value = strings.TrimPrefix(value, " ")
	switch name {
	case "event":
		d.eventType = value
		d.sawField = true
	case "data":
		d.data = append(d.data, value)
		d.sawField = true
	default:
		// Unknown fields (id, retry, anything future) are ignored.
	}
}

// finishFrame dispatches the pending frame at a blank-line delimiter.
// Frames with no data, undecodable payloads, or unknown types are dropped.
func (d *Decoder) finishFrame() (Event, bool) {
	eventType := d.eventType
	data := d.data
	sawField := d.sawField
	d.eventType = ""
	d.data = nil
	d.sawField = false

	if !sawField || len(data) == 0 {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ev); err != nil {
		return Event{}, false
	}
	if ev.Type == "" {
		ev.Type = EventType(eventType)
	}
	if !Known(ev.Type) {
		return Event{}, false
	}
	return ev, true
}
