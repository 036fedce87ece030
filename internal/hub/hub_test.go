package hub

import (
	"testing"

	"go.uber.org/zap"
)

func TestStopLeavesInboundOpen(t *testing.T) {
	h := NewHub(nil, nil, zap.NewNop())
	h.Stop()

	// A read pump that lost the shutdown race may still hand off one
	// last event. The inbound channel must stay open so that send
	// cannot panic; workers are already gone, the event is simply
	// never processed.
	select {
	case h.inbound <- inboundMessage{}:
	default:
	}
}
