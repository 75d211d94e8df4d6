package forwarder

import (
	"strings"

	"github.com/oshokin/sia-bridge/internal/domain/event"
)

// HeartbeatFilter decides whether a decoded event is suppressed from
// forwarding. Heartbeats are still acknowledged and replay-recorded so
// operators keep proof of panel liveness; they just never reach the
// downstream target.
type HeartbeatFilter struct {
	codes map[string]struct{}
}

// NewHeartbeatFilter builds a filter from the configured code set,
// falling back to the conventional periodic-test codes when empty.
func NewHeartbeatFilter(codes []string) *HeartbeatFilter {
	if len(codes) == 0 {
		codes = event.DefaultHeartbeatCodes()
	}

	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[strings.ToUpper(code)] = struct{}{}
	}

	return &HeartbeatFilter{codes: set}
}

// ShouldForward reports whether the event goes to the delivery queue.
func (f *HeartbeatFilter) ShouldForward(evt *event.AlarmEvent) bool {
	_, heartbeat := f.codes[strings.ToUpper(evt.Code)]

	return !heartbeat
}
