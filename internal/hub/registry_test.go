package hub_test

import (
	"Memoria/internal/hub"
	"fmt"
	"sync"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := hub.NewRegistry()
	sink := newFakeSink("conn-1", 10)

	first, err := registry.Register(sink)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !first {
		t.Error("Expected first connection to report the 0->1 edge")
	}
	if !registry.IsOnline(10) {
		t.Error("Expected user 10 to be online after registration")
	}
	if registry.ConnectionCount(10) != 1 {
		t.Errorf("Expected 1 connection, got %d", registry.ConnectionCount(10))
	}

	userID, joined, last, ok := registry.Unregister("conn-1")
	if !ok {
		t.Fatal("Expected Unregister to find the connection")
	}
	if userID != 10 {
		t.Errorf("Expected userID 10, got %d", userID)
	}
	if len(joined) != 0 {
		t.Errorf("Expected no joined channels, got %v", joined)
	}
	if !last {
		t.Error("Expected last connection to report the 1->0 edge")
	}
	if registry.IsOnline(10) {
		t.Error("Expected user 10 to be offline after unregistration")
	}
}

func TestRegistryUnknownUnregister(t *testing.T) {
	registry := hub.NewRegistry()

	_, _, _, ok := registry.Unregister("never-registered")
	if ok {
		t.Error("Expected Unregister of an unknown id to report ok=false")
	}
}

func TestRegistryDuplicateSameUser(t *testing.T) {
	registry := hub.NewRegistry()
	sink := newFakeSink("conn-1", 10)

	if _, err := registry.Register(sink); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	first, err := registry.Register(sink)
	if err != nil {
		t.Fatalf("Expected same-user re-registration to be a no-op, got: %v", err)
	}
	if first {
		t.Error("Re-registration must not report a 0->1 edge")
	}
	if registry.ConnectionCount(10) != 1 {
		t.Errorf("Expected 1 connection after re-registration, got %d", registry.ConnectionCount(10))
	}
}

func TestRegistryRejectsRebinding(t *testing.T) {
	registry := hub.NewRegistry()

	if _, err := registry.Register(newFakeSink("conn-1", 10)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := registry.Register(newFakeSink("conn-1", 20))
	if err != hub.ErrConnRebound {
		t.Fatalf("Expected ErrConnRebound, got: %v", err)
	}

	// The original binding must be intact.
	if registry.ConnectionCount(10) != 1 {
		t.Errorf("Expected user 10 to keep its connection, got %d", registry.ConnectionCount(10))
	}
	if registry.IsOnline(20) {
		t.Error("Expected user 20 to stay offline after the rejected registration")
	}
}

func TestRegistryMultiDeviceEdges(t *testing.T) {
	registry := hub.NewRegistry()

	first, _ := registry.Register(newFakeSink("phone", 10))
	if !first {
		t.Error("Expected the first device to report the 0->1 edge")
	}

	first, _ = registry.Register(newFakeSink("laptop", 10))
	if first {
		t.Error("Expected the second device to report no edge")
	}
	if registry.ConnectionCount(10) != 2 {
		t.Errorf("Expected 2 connections, got %d", registry.ConnectionCount(10))
	}

	_, _, last, _ := registry.Unregister("phone")
	if last {
		t.Error("Expected no 1->0 edge while a device remains")
	}
	if !registry.IsOnline(10) {
		t.Error("Expected user 10 to stay online on one device")
	}

	_, _, last, _ = registry.Unregister("laptop")
	if !last {
		t.Error("Expected the final disconnect to report the 1->0 edge")
	}
}

func TestRegistryConnectionsOf(t *testing.T) {
	registry := hub.NewRegistry()
	a := newFakeSink("conn-a", 10)
	b := newFakeSink("conn-b", 10)
	registry.Register(a)
	registry.Register(b)
	registry.Register(newFakeSink("conn-c", 20))

	sinks := registry.ConnectionsOf(10)
	if len(sinks) != 2 {
		t.Fatalf("Expected 2 sinks for user 10, got %d", len(sinks))
	}

	seen := make(map[string]bool)
	for _, s := range sinks {
		seen[s.ConnID()] = true
	}
	if !seen["conn-a"] || !seen["conn-b"] {
		t.Errorf("Expected conn-a and conn-b, got %v", seen)
	}

	if got := registry.ConnectionsOf(999); len(got) != 0 {
		t.Errorf("Expected no sinks for an offline user, got %d", len(got))
	}
}

func TestRegistryJoinTracking(t *testing.T) {
	registry := hub.NewRegistry()
	registry.Register(newFakeSink("conn-1", 10))

	registry.TrackJoin("conn-1", "group-a")
	registry.TrackJoin("conn-1", "group-b")
	registry.TrackLeave("conn-1", "group-b")

	_, joined, _, ok := registry.Unregister("conn-1")
	if !ok {
		t.Fatal("Expected Unregister to find the connection")
	}
	if len(joined) != 1 || joined[0] != "group-a" {
		t.Errorf("Expected joined channels [group-a], got %v", joined)
	}
}

func TestRegistryCounters(t *testing.T) {
	registry := hub.NewRegistry()
	registry.Register(newFakeSink("conn-1", 10))
	registry.Register(newFakeSink("conn-2", 10))
	registry.Register(newFakeSink("conn-3", 20))

	if got := registry.TotalConnections(); got != 3 {
		t.Errorf("Expected 3 total connections, got %d", got)
	}
	if got := registry.OnlineUsers(); got != 2 {
		t.Errorf("Expected 2 online users, got %d", got)
	}
	if got := len(registry.Snapshot()); got != 3 {
		t.Errorf("Expected 3 snapshot entries, got %d", got)
	}
}

func TestRegistryConcurrentFirstEdge(t *testing.T) {
	registry := hub.NewRegistry()
	const devices = 50

	var wg sync.WaitGroup
	firstEdges := make(chan bool, devices)

	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			first, err := registry.Register(newFakeSink(fmt.Sprintf("conn-%d", n), 10))
			if err != nil {
				t.Errorf("Register failed: %v", err)
				return
			}
			if first {
				firstEdges <- true
			}
		}(i)
	}
	wg.Wait()
	close(firstEdges)

	count := 0
	for range firstEdges {
		count++
	}
	if count != 1 {
		t.Errorf("Expected exactly one 0->1 edge across %d racing connects, got %d", devices, count)
	}
	if registry.ConnectionCount(10) != devices {
		t.Errorf("Expected %d connections, got %d", devices, registry.ConnectionCount(10))
	}
}
