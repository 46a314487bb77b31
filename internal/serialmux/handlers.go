package serialmux

import (
	"fmt"

	"github.com/banshee-data/dragtree/internal/monitoring"
)

// EventSink receives decoded pin reports.
type EventSink interface {
	OnDigital(pin int, level bool)
	OnAnalog(pin int, value uint16)
}

func HandleEvent(sink EventSink, payload string) error {
	ev, err := ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("failed to handle board line: %w", err)
	}
	switch ev.Type {
	case EventTypeDigital:
		sink.OnDigital(ev.Pin, ev.Value == 1)
	case EventTypeAnalog:
		sink.OnAnalog(ev.Pin, uint16(ev.Value))
	case EventTypeInfo:
		monitoring.Logf("board: %s", ev.Text)
	default:
		monitoring.Logf("unknown event type: %s", payload)
	}
	return nil
}
