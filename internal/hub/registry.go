package hub

import (
	"Memoria/internal/event"
	"Memoria/internal/model"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// ErrConnRebound means a live connection id was registered again under
// a different user. The transport layer guarantees this cannot happen,
// so seeing it is a programming bug, not a recoverable condition.
var ErrConnRebound = errors.New("connection already registered to a different user")

// Sink is the delivery end of one live connection. Deliver is
// best-effort and must never block the caller indefinitely: it returns
// false when the connection is closed or its buffer stayed full.
type Sink interface {
	ConnID() string
	UserID() int64
	Deliver(ev event.WsEvent) bool
}

type connEntry struct {
	sink   Sink
	userID int64
	joined map[string]struct{} // channels this connection subscribed to
}

type connBucket struct {
	sync.RWMutex
	conns map[string]*connEntry
}

type userBucket struct {
	sync.RWMutex
	users map[int64]map[string]Sink
}

// Registry owns the ConnectionId -> UserId binding and the per-user
// connection sets. The 0->1 and 1->0 transitions of a user's connection
// count are decided under the same bucket lock that mutates the set, so
// two racing connects can never both observe "first" and the count is
// never out of sync with the set.
type Registry struct {
	connShards [shardCount]*connBucket
	userShards [shardCount]*userBucket
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := 0; i < shardCount; i++ {
		r.connShards[i] = &connBucket{conns: make(map[string]*connEntry)}
		r.userShards[i] = &userBucket{users: make(map[int64]map[string]Sink)}
	}
	return r
}

func getShard(key string) uint32 {
	if key == "" {
		return 0
	}

	h := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

func getUserShard(userID int64) uint32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(userID))
	h := sha1.Sum(buf[:])
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Register records a new live connection. The returned first flag is
// true when this connection took its user from zero to one live
// connections. Re-registering the same id for the same user is a no-op;
// for a different user it is rejected with ErrConnRebound.
//
// Register and Unregister for one connection id must not run
// concurrently: the conn shard and the user shard are locked in
// sequence, and an Unregister interleaved between them would strand the
// sink in the user set. The hub's run loop serializes both per
// connection.
func (r *Registry) Register(s Sink) (first bool, err error) {
	connID := s.ConnID()
	userID := s.UserID()

	cb := r.connShards[getShard(connID)]
	cb.Lock()
	if existing, ok := cb.conns[connID]; ok {
		cb.Unlock()
		if existing.userID == userID {
			return false, nil
		}
		return false, ErrConnRebound
	}
	cb.conns[connID] = &connEntry{
		sink:   s,
		userID: userID,
		joined: make(map[string]struct{}),
	}
	cb.Unlock()

	ub := r.userShards[getUserShard(userID)]
	ub.Lock()
	defer ub.Unlock()

	set, ok := ub.users[userID]
	if !ok {
		set = make(map[string]Sink)
		ub.users[userID] = set
	}
	set[connID] = s

	return len(set) == 1, nil
}

// Unregister removes the binding. It returns the owning user, the
// channels the connection had joined (so the caller can cascade
// leaves), and whether this was the user's last live connection.
// Unknown ids are a no-op with ok=false.
func (r *Registry) Unregister(connID string) (userID int64, joined []string, last bool, ok bool) {
	cb := r.connShards[getShard(connID)]
	cb.Lock()
	entry, found := cb.conns[connID]
	if !found {
		cb.Unlock()
		return 0, nil, false, false
	}
	delete(cb.conns, connID)
	joined = make([]string, 0, len(entry.joined))
	for groupID := range entry.joined {
		joined = append(joined, groupID)
	}
	cb.Unlock()

	userID = entry.userID

	ub := r.userShards[getUserShard(userID)]
	ub.Lock()
	defer ub.Unlock()

	if set, exists := ub.users[userID]; exists {
		delete(set, connID)
		if len(set) == 0 {
			delete(ub.users, userID)
			last = true
		}
	}

	return userID, joined, last, true
}

// ConnectionsOf returns the live delivery sinks for a user. Empty slice
// when the user is offline.
func (r *Registry) ConnectionsOf(userID int64) []Sink {
	ub := r.userShards[getUserShard(userID)]
	ub.RLock()
	defer ub.RUnlock()

	set, ok := ub.users[userID]
	if !ok {
		return nil
	}

	sinks := make([]Sink, 0, len(set))
	for _, s := range set {
		sinks = append(sinks, s)
	}
	return sinks
}

// ConnectionCount returns the number of live connections for a user.
func (r *Registry) ConnectionCount(userID int64) int {
	ub := r.userShards[getUserShard(userID)]
	ub.RLock()
	defer ub.RUnlock()
	return len(ub.users[userID])
}

// IsOnline is a point-in-time read with no side effects.
func (r *Registry) IsOnline(userID int64) bool {
	return r.ConnectionCount(userID) > 0
}

// TrackJoin records that a connection subscribed to a channel, for the
// teardown cascade.
func (r *Registry) TrackJoin(connID, groupID string) {
	cb := r.connShards[getShard(connID)]
	cb.Lock()
	defer cb.Unlock()

	if entry, ok := cb.conns[connID]; ok {
		entry.joined[groupID] = struct{}{}
	}
}

// TrackLeave removes a channel from a connection's subscription record.
func (r *Registry) TrackLeave(connID, groupID string) {
	cb := r.connShards[getShard(connID)]
	cb.Lock()
	defer cb.Unlock()

	if entry, ok := cb.conns[connID]; ok {
		delete(entry.joined, groupID)
	}
}

// TotalConnections counts live connections across all shards.
func (r *Registry) TotalConnections() int {
	total := 0
	for _, cb := range r.connShards {
		cb.RLock()
		total += len(cb.conns)
		cb.RUnlock()
	}
	return total
}

// OnlineUsers counts distinct users with at least one live connection.
func (r *Registry) OnlineUsers() int {
	total := 0
	for _, ub := range r.userShards {
		ub.RLock()
		total += len(ub.users)
		ub.RUnlock()
	}
	return total
}

// Snapshot returns client info for the monitor API.
func (r *Registry) Snapshot() []model.ClientInfo {
	clients := make([]model.ClientInfo, 0)
	for _, cb := range r.connShards {
		cb.RLock()
		for connID, entry := range cb.conns {
			clients = append(clients, model.ClientInfo{
				ConnectionID: connID,
				UserID:       entry.userID,
			})
		}
		cb.RUnlock()
	}
	return clients
}
