package hub_test

import (
	"Memoria/internal/db"
	"Memoria/internal/event"
	"Memoria/internal/hub"
	"Memoria/internal/model"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// --- Test Suite Setup ---

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// fakeSink collects delivered events in memory, standing in for a live
// websocket connection.
type fakeSink struct {
	id     string
	userID int64

	mu     sync.Mutex
	events []event.WsEvent
	closed bool
}

func newFakeSink(id string, userID int64) *fakeSink {
	return &fakeSink{id: id, userID: userID}
}

func (s *fakeSink) ConnID() string { return s.id }
func (s *fakeSink) UserID() int64  { return s.userID }

func (s *fakeSink) Deliver(ev event.WsEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

func (s *fakeSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSink) received() []event.WsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.WsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// waitForEvents polls until the sink has received at least want events.
// Presence fan-out runs on drainer goroutines, so tests must wait for
// delivery rather than assert immediately.
func waitForEvents(t *testing.T, s *fakeSink, want int) []event.WsEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		events := s.received()
		if len(events) >= want {
			return events
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d events, got %d", want, len(events))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (s *fakeSink) countByName(name string) int {
	count := 0
	for _, ev := range s.received() {
		if ev.Event == name {
			count++
		}
	}
	return count
}

// fakeOracle is an in-memory relationship oracle.
type fakeOracle struct {
	mu      sync.Mutex
	friends map[string]bool           // normalized "a:b" pair -> accepted
	members map[string]map[int64]bool // groupID -> userID set
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		friends: make(map[string]bool),
		members: make(map[string]map[int64]bool),
	}
}

func pairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (o *fakeOracle) befriend(a, b int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.friends[pairKey(a, b)] = true
}

func (o *fakeOracle) addMember(groupID string, userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.members[groupID] == nil {
		o.members[groupID] = make(map[int64]bool)
	}
	o.members[groupID][userID] = true
}

func (o *fakeOracle) IsAccepted(ctx context.Context, userA, userB int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.friends[pairKey(userA, userB)], nil
}

func (o *fakeOracle) IsMember(ctx context.Context, userID int64, groupID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.members[groupID][userID], nil
}

func (o *fakeOracle) FriendsOf(ctx context.Context, userID int64) ([]int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	friends := make([]int64, 0)
	var a, b int64
	for key, accepted := range o.friends {
		if !accepted {
			continue
		}
		fmt.Sscanf(key, "%d:%d", &a, &b)
		if a == userID {
			friends = append(friends, b)
		} else if b == userID {
			friends = append(friends, a)
		}
	}
	return friends, nil
}

// fakeStore is an in-memory message store with the same conditional
// update semantics as the mongo-backed repository.
type fakeStore struct {
	mu     sync.Mutex
	msgs   map[string]*model.Message
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{msgs: make(map[string]*model.Message)}
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	stored := *msg
	f.msgs[id] = &stored
	return id, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, expectedStatuses []int, newStatus int, newBody *string, editedAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.msgs[id]
	if !ok {
		return false, nil
	}

	matched := false
	for _, status := range expectedStatuses {
		if msg.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	msg.Status = newStatus
	if newBody != nil {
		msg.Body = *newBody
	}
	if editedAt != nil {
		msg.EditedAt = editedAt
	}
	return true, nil
}

func (f *fakeStore) PrivateHistory(ctx context.Context, userA, userB int64, page int64) (*db.PaginatedResult[model.Message], error) {
	return &db.PaginatedResult[model.Message]{Data: []model.Message{}}, nil
}

func (f *fakeStore) GroupHistory(ctx context.Context, groupID string, page int64) (*db.PaginatedResult[model.Message], error) {
	return &db.PaginatedResult[model.Message]{Data: []model.Message{}}, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeStore) get(id string) *model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil
	}
	copied := *msg
	return &copied
}

// newTestRelay wires a relay with fresh in-memory collaborators.
func newTestRelay() (*hub.Relay, *hub.Registry, *hub.ChannelManager, *fakeOracle, *fakeStore) {
	registry := hub.NewRegistry()
	channels := hub.NewChannelManager()
	oracle := newFakeOracle()
	store := newFakeStore()
	relay := hub.NewRelay(registry, channels, hub.NewGate(oracle), store, newTestLogger())
	return relay, registry, channels, oracle, store
}
