package serialmux

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	EventTypeDigital = "digital"
	EventTypeAnalog  = "analog"
	EventTypeInfo    = "info"
	EventTypeUnknown = "unknown"
)

// Event is one decoded line from the IO board.
type Event struct {
	Type  string
	Pin   int
	Value int
	Text  string
}

// ClassifyPayload inspects a line and returns an event type token without
// validating its fields.
func ClassifyPayload(payload string) string {
	switch {
	case strings.HasPrefix(payload, "D "):
		return EventTypeDigital
	case strings.HasPrefix(payload, "A "):
		return EventTypeAnalog
	case strings.HasPrefix(payload, "#"):
		return EventTypeInfo
	}
	return EventTypeUnknown
}

// ParseEvent decodes `D <pin> <0|1>`, `A <pin> <value>` and `# <text>` lines.
func ParseEvent(payload string) (Event, error) {
	payload = strings.TrimSpace(payload)
	ev := Event{Type: ClassifyPayload(payload)}

	switch ev.Type {
	case EventTypeInfo:
		ev.Text = strings.TrimSpace(strings.TrimPrefix(payload, "#"))
		return ev, nil
	case EventTypeUnknown:
		ev.Text = payload
		return ev, nil
	}

	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return ev, fmt.Errorf("malformed %s line %q", ev.Type, payload)
	}
	pin, err := strconv.Atoi(fields[1])
	if err != nil || pin < 0 {
		return ev, fmt.Errorf("bad pin in %q", payload)
	}
	value, err := strconv.Atoi(fields[2])
	if err != nil {
		return ev, fmt.Errorf("bad value in %q: %w", payload, err)
	}
	switch ev.Type {
	case EventTypeDigital:
		if value != 0 && value != 1 {
			return ev, fmt.Errorf("digital level %d out of range in %q", value, payload)
		}
	case EventTypeAnalog:
		if value < 0 || value > 65535 {
			return ev, fmt.Errorf("analog value %d out of range in %q", value, payload)
		}
	}
	ev.Pin, ev.Value = pin, value
	return ev, nil
}
