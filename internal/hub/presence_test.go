package hub_test

import (
	"Memoria/internal/event"
	"Memoria/internal/hub"
	"encoding/json"
	"testing"
	"time"
)

func presencePayload(t *testing.T, ev event.WsEvent) event.PresenceChangedPayload {
	t.Helper()
	var p event.PresenceChangedPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("Failed to decode presence payload: %v", err)
	}
	return p
}

func TestPresenceOnlineNotifiesFriends(t *testing.T) {
	registry := hub.NewRegistry()
	oracle := newFakeOracle()
	oracle.befriend(10, 20)
	oracle.befriend(10, 30)
	tracker := hub.NewPresenceTracker(registry, oracle, newTestLogger())

	friendSink := newFakeSink("friend-conn", 20)
	registry.Register(friendSink)
	strangerSink := newFakeSink("stranger-conn", 40)
	registry.Register(strangerSink)

	tracker.HandleOnline(10)

	events := waitForEvents(t, friendSink, 1)
	if len(events) != 1 {
		t.Fatalf("Expected 1 presence event for the online friend, got %d", len(events))
	}
	p := presencePayload(t, events[0])
	if p.UserID != 10 || !p.Online {
		t.Errorf("Expected online notice for user 10, got %+v", p)
	}

	// User 30 is a friend but offline: nothing is queued for later.
	// User 40 is online but not a friend: nothing is sent.
	if got := len(strangerSink.received()); got != 0 {
		t.Errorf("Expected no events for a non-friend, got %d", got)
	}
}

func TestPresenceOfflineNotifiesFriends(t *testing.T) {
	registry := hub.NewRegistry()
	oracle := newFakeOracle()
	oracle.befriend(10, 20)
	tracker := hub.NewPresenceTracker(registry, oracle, newTestLogger())

	friendSink := newFakeSink("friend-conn", 20)
	registry.Register(friendSink)

	tracker.HandleOffline(10)

	events := waitForEvents(t, friendSink, 1)
	p := presencePayload(t, events[0])
	if p.UserID != 10 || p.Online {
		t.Errorf("Expected offline notice for user 10, got %+v", p)
	}
}

func TestPresenceMultiDeviceFriendReceivesOnAll(t *testing.T) {
	registry := hub.NewRegistry()
	oracle := newFakeOracle()
	oracle.befriend(10, 20)
	tracker := hub.NewPresenceTracker(registry, oracle, newTestLogger())

	phone := newFakeSink("friend-phone", 20)
	laptop := newFakeSink("friend-laptop", 20)
	registry.Register(phone)
	registry.Register(laptop)

	tracker.HandleOnline(10)

	waitForEvents(t, phone, 1)
	waitForEvents(t, laptop, 1)

	if phone.countByName(event.EventPresenceChanged) != 1 {
		t.Error("Expected the friend's phone to receive the notice")
	}
	if laptop.countByName(event.EventPresenceChanged) != 1 {
		t.Error("Expected the friend's laptop to receive the notice")
	}
}

func TestPresenceNoFriendsIsQuiet(t *testing.T) {
	registry := hub.NewRegistry()
	tracker := hub.NewPresenceTracker(registry, newFakeOracle(), newTestLogger())

	bystander := newFakeSink("conn-b", 20)
	registry.Register(bystander)

	tracker.HandleOnline(10)

	// Give the drainer a moment to run before asserting silence.
	time.Sleep(50 * time.Millisecond)
	if got := len(bystander.received()); got != 0 {
		t.Errorf("Expected no notifications without friendships, got %d", got)
	}
}

func TestPresenceFlapKeepsTransitionOrder(t *testing.T) {
	registry := hub.NewRegistry()
	oracle := newFakeOracle()
	oracle.befriend(10, 20)
	tracker := hub.NewPresenceTracker(registry, oracle, newTestLogger())

	friendSink := newFakeSink("friend-conn", 20)
	registry.Register(friendSink)

	// A fast connect/disconnect: offline is enqueued right behind
	// online, before any fan-out has happened.
	tracker.HandleOnline(10)
	tracker.HandleOffline(10)

	events := waitForEvents(t, friendSink, 2)
	if len(events) != 2 {
		t.Fatalf("Expected 2 presence events, got %d", len(events))
	}

	first := presencePayload(t, events[0])
	last := presencePayload(t, events[1])
	if !first.Online {
		t.Error("Expected the online notice to arrive first")
	}
	if last.Online {
		t.Error("Expected the friend's last observed state to be offline")
	}
}

func TestPresenceRepeatedFlapsStayOrdered(t *testing.T) {
	registry := hub.NewRegistry()
	oracle := newFakeOracle()
	oracle.befriend(10, 20)
	tracker := hub.NewPresenceTracker(registry, oracle, newTestLogger())

	friendSink := newFakeSink("friend-conn", 20)
	registry.Register(friendSink)

	const flaps = 10
	for i := 0; i < flaps; i++ {
		tracker.HandleOnline(10)
		tracker.HandleOffline(10)
	}

	events := waitForEvents(t, friendSink, 2*flaps)
	for i, ev := range events {
		p := presencePayload(t, ev)
		wantOnline := i%2 == 0
		if p.Online != wantOnline {
			t.Fatalf("Transition %d out of order: got online=%v, want %v", i, p.Online, wantOnline)
		}
	}
}
