package hub_test

import (
	"Memoria/internal/event"
	"Memoria/internal/hub"
	"testing"
)

func TestChannelJoinAndBroadcast(t *testing.T) {
	channels := hub.NewChannelManager()
	a := newFakeSink("conn-a", 10)
	b := newFakeSink("conn-b", 20)

	channels.Join("group-1", a)
	channels.Join("group-1", b)

	delivered := channels.Broadcast("group-1", event.NewMessageDeleted("msg-1"))
	if delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", delivered)
	}
	if a.countByName(event.EventMessageDeleted) != 1 {
		t.Error("Expected conn-a to receive the broadcast")
	}
	if b.countByName(event.EventMessageDeleted) != 1 {
		t.Error("Expected conn-b to receive the broadcast")
	}
}

func TestChannelJoinIdempotent(t *testing.T) {
	channels := hub.NewChannelManager()
	a := newFakeSink("conn-a", 10)

	channels.Join("group-1", a)
	channels.Join("group-1", a)

	if got := channels.Subscribers("group-1"); got != 1 {
		t.Errorf("Expected 1 subscriber after double join, got %d", got)
	}

	delivered := channels.Broadcast("group-1", event.NewMessageDeleted("msg-1"))
	if delivered != 1 {
		t.Errorf("Expected a single delivery, got %d", delivered)
	}
}

func TestChannelLeaveGarbageCollects(t *testing.T) {
	channels := hub.NewChannelManager()
	a := newFakeSink("conn-a", 10)

	channels.Join("group-1", a)
	channels.Leave("group-1", "conn-a")

	if channels.Contains("group-1", "conn-a") {
		t.Error("Expected conn-a to be gone after leave")
	}
	if got := channels.Subscribers("group-1"); got != 0 {
		t.Errorf("Expected empty channel, got %d subscribers", got)
	}
	if got := len(channels.Snapshot()); got != 0 {
		t.Errorf("Expected channel to be garbage-collected, snapshot has %d entries", got)
	}

	// A fresh join after GC recreates the channel.
	channels.Join("group-1", a)
	if got := channels.Subscribers("group-1"); got != 1 {
		t.Errorf("Expected channel to be recreated, got %d subscribers", got)
	}
}

func TestChannelLeaveUnknownIsNoop(t *testing.T) {
	channels := hub.NewChannelManager()
	channels.Leave("never-created", "conn-a")

	a := newFakeSink("conn-a", 10)
	channels.Join("group-1", a)
	channels.Leave("group-1", "conn-b")

	if got := channels.Subscribers("group-1"); got != 1 {
		t.Errorf("Expected existing subscriber untouched, got %d", got)
	}
}

func TestChannelBroadcastSkipsClosedSinks(t *testing.T) {
	channels := hub.NewChannelManager()
	alive := newFakeSink("conn-a", 10)
	dead := newFakeSink("conn-b", 20)
	dead.close()

	channels.Join("group-1", alive)
	channels.Join("group-1", dead)

	delivered := channels.Broadcast("group-1", event.NewMessageDeleted("msg-1"))
	if delivered != 1 {
		t.Errorf("Expected 1 successful delivery, got %d", delivered)
	}
	if alive.countByName(event.EventMessageDeleted) != 1 {
		t.Error("Expected the live sink to receive the broadcast")
	}
}

func TestChannelTeardownCascade(t *testing.T) {
	// Mirrors the hub's disconnect path: the registry reports which
	// channels the connection joined, and each is left explicitly.
	registry := hub.NewRegistry()
	channels := hub.NewChannelManager()

	sink := newFakeSink("conn-a", 10)
	registry.Register(sink)
	channels.Join("group-1", sink)
	registry.TrackJoin("conn-a", "group-1")
	channels.Join("group-2", sink)
	registry.TrackJoin("conn-a", "group-2")

	_, joined, _, ok := registry.Unregister("conn-a")
	if !ok {
		t.Fatal("Expected Unregister to find the connection")
	}
	for _, groupID := range joined {
		channels.Leave(groupID, "conn-a")
	}

	if channels.Contains("group-1", "conn-a") || channels.Contains("group-2", "conn-a") {
		t.Error("Expected the disconnected connection to be removed from all channels")
	}
	if delivered := channels.Broadcast("group-1", event.NewMessageDeleted("msg-1")); delivered != 0 {
		t.Errorf("Expected no deliveries after teardown, got %d", delivered)
	}
}
